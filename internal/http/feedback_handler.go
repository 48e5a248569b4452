package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"support-router/internal/domain"
	"support-router/internal/service"
)

type FeedbackSubmitter interface {
	Submit(ctx context.Context, fb domain.Feedback) (domain.Feedback, error)
}

type FeedbackHandler struct {
	logger   *zap.Logger
	feedback FeedbackSubmitter
}

func NewFeedbackHandler(logger *zap.Logger, feedback FeedbackSubmitter) *FeedbackHandler {
	return &FeedbackHandler{logger: logger, feedback: feedback}
}

// Submit maneja POST /feedback.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req struct {
		MessageID      string `json:"messageId" binding:"required"`
		ConversationID string `json:"conversationId"`
		Rating         int    `json:"rating" binding:"required"`
		Comment        string `json:"comment"`
		Timestamp      string `json:"timestamp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid feedback request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	fb := domain.Feedback{
		MessageID:      req.MessageID,
		ConversationID: req.ConversationID,
		Rating:         req.Rating,
		Comment:        req.Comment,
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC 3339"})
			return
		}
		fb.CreatedAt = ts.UTC()
	}

	saved, err := h.feedback.Submit(c.Request.Context(), fb)
	if err != nil {
		if errors.Is(err, service.ErrInvalidFeedback) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("feedback submit failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save feedback"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"feedback": saved})
}
