package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"support-router/internal/domain"
	"support-router/internal/service"
	"support-router/internal/transport"
)

// ChatPipeline es la parte del servicio de chat que usan los endpoints REST.
type ChatPipeline interface {
	Chat(ctx context.Context, clientID string, in domain.InboundMessage) (domain.ChatReply, error)
	Conversation(ctx context.Context, clientID string) (domain.Conversation, bool)
}

// ChatHandler expone el pipeline de chat por REST.
type ChatHandler struct {
	logger *zap.Logger
	chat   ChatPipeline
	tokens *transport.TokenIssuer
}

func NewChatHandler(logger *zap.Logger, chat ChatPipeline, tokens *transport.TokenIssuer) *ChatHandler {
	return &ChatHandler{logger: logger, chat: chat, tokens: tokens}
}

type postMessageRequest struct {
	ClientID  string `json:"clientId"`
	ID        string `json:"id"`
	Content   string `json:"content"`
	Role      string `json:"role"`
	Timestamp string `json:"timestamp"`
}

// PostMessage maneja POST /messages. El cliente se identifica con X-Client-ID o clientId y
// su resume token; si no viene, se le asigna uno nuevo junto con su token.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid post message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	in := domain.InboundMessage{ID: req.ID, Content: req.Content, Role: req.Role}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC 3339"})
			return
		}
		in.Timestamp = ts
	}

	clientID := strings.TrimSpace(c.GetHeader("X-Client-ID"))
	if clientID == "" {
		clientID = strings.TrimSpace(req.ClientID)
	}
	issued := ""
	if clientID != "" {
		// Escribir en una conversacion existente exige su resume token.
		if status, msg := h.authorize(c, clientID); status != http.StatusOK {
			c.JSON(status, gin.H{"error": msg})
			return
		}
	} else {
		clientID = uuid.NewString()
		if h.tokens != nil {
			token, err := h.tokens.Issue(clientID)
			if err != nil {
				h.logger.Warn("resume token issue failed", zap.Error(err))
			}
			issued = token
		}
	}

	reply, err := h.chat.Chat(c.Request.Context(), clientID, in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many messages"})
		default:
			h.logger.Error("chat turn failed", zap.String("client_id", clientID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process message"})
		}
		return
	}

	resp := gin.H{
		"clientId": clientID,
		"reply":    transport.ChatFrame(reply),
	}
	if issued != "" {
		resp["resumeToken"] = issued
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) authorize(c *gin.Context, clientID string) (int, string) {
	if h.tokens == nil {
		return http.StatusInternalServerError, "client tokens not configured"
	}
	token, ok := bearerToken(c)
	if !ok {
		return http.StatusUnauthorized, "missing token"
	}
	sub, err := h.tokens.Verify(token)
	if err != nil {
		return http.StatusUnauthorized, "invalid token"
	}
	if sub != clientID {
		return http.StatusForbidden, "token does not match client"
	}
	return http.StatusOK, ""
}

// GetConversation maneja GET /conversations/:clientId.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	clientID := c.Param("clientId")
	conv, ok := h.chat.Conversation(c.Request.Context(), clientID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}
