// Package transport implementa el protocolo de sesion sobre WebSocket: frames, maquina de
// reconexion, registro de sesiones, endpoint del servidor y cliente con reconexion.
package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"

	"support-router/internal/domain"
)

// FrameType es la etiqueta que discrimina la variante del frame.
type FrameType string

const (
	FrameChat    FrameType = "chat"
	FramePing    FrameType = "ping"
	FramePong    FrameType = "pong"
	FrameSession FrameType = "session"
	FrameError   FrameType = "error"
)

// Codigos de los frames de error.
const (
	CodeInvalidFrame   = "invalid_frame"
	CodeInvalidMessage = "invalid_message"
	CodeRateLimited    = "rate_limited"
	CodeUnavailable    = "unavailable"
	CodeInternal       = "internal_error"
)

var ErrInvalidFrame = errors.New("invalid frame")

// Frame es la union de todas las variantes; cada tipo usa solo sus campos.
type Frame struct {
	Type FrameType `json:"type"`

	// chat
	ID             string   `json:"id,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
	Role           string   `json:"role,omitempty"`
	Content        string   `json:"content,omitempty"`
	AgentID        string   `json:"agentId,omitempty"`
	AgentName      string   `json:"agentName,omitempty"`
	AnswerType     string   `json:"answerType,omitempty"`
	Intent         string   `json:"intent,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	Timestamp      string   `json:"timestamp,omitempty"`

	// session
	ClientID    string `json:"clientId,omitempty"`
	ResumeToken string `json:"resumeToken,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ParseFrame parsea un frame y verifica la etiqueta, sin validar el contenido.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	switch f.Type {
	case FrameChat, FramePing, FramePong, FrameSession, FrameError:
		return f, nil
	case "":
		return Frame{}, fmt.Errorf("%w: missing type", ErrInvalidFrame)
	default:
		return Frame{}, fmt.Errorf("%w: unknown type %q", ErrInvalidFrame, f.Type)
	}
}

// DecodeFrame parsea y valida un frame entrante del cliente. maxContent acota el contenido de
// chat en runas.
func DecodeFrame(data []byte, maxContent int) (Frame, error) {
	f, err := ParseFrame(data)
	if err != nil {
		return Frame{}, err
	}
	if f.Type == FrameChat {
		if err := validateChat(f, maxContent); err != nil {
			return Frame{}, err
		}
	}
	return f, nil
}

func validateChat(f Frame, maxContent int) error {
	content := strings.TrimSpace(f.Content)
	if content == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidFrame)
	}
	if maxContent > 0 && utf8.RuneCountInString(content) > maxContent {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidFrame, maxContent)
	}
	if f.Role != "" && f.Role != domain.RoleUser {
		return fmt.Errorf("%w: role must be user", ErrInvalidFrame)
	}
	if f.Timestamp != "" {
		if _, err := time.Parse(time.RFC3339, f.Timestamp); err != nil {
			return fmt.Errorf("%w: timestamp must be RFC 3339", ErrInvalidFrame)
		}
	}
	return nil
}

// EncodeFrame serializa un frame saliente.
func EncodeFrame(f Frame) ([]byte, error) {
	return sonic.Marshal(f)
}

// Inbound convierte un frame de chat ya validado al mensaje del pipeline.
func (f Frame) Inbound() domain.InboundMessage {
	in := domain.InboundMessage{ID: f.ID, Content: f.Content, Role: f.Role}
	if f.Timestamp != "" {
		in.Timestamp, _ = time.Parse(time.RFC3339, f.Timestamp)
	}
	return in
}

// ChatFrame construye un frame de chat saliente a partir de la respuesta del pipeline.
func ChatFrame(reply domain.ChatReply) Frame {
	msg := reply.AssistantMessage
	conf := reply.Confidence
	return Frame{
		Type:           FrameChat,
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           domain.RoleAssistant,
		Content:        msg.Content,
		AgentID:        string(reply.AgentID),
		AgentName:      reply.AgentName,
		AnswerType:     string(msg.AnswerSource),
		Intent:         reply.Intent,
		Confidence:     &conf,
		Timestamp:      msg.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func SessionFrame(clientID, conversationID, resumeToken string) Frame {
	return Frame{Type: FrameSession, ClientID: clientID, ConversationID: conversationID, ResumeToken: resumeToken}
}

func ErrorFrame(code, message string) Frame {
	return Frame{Type: FrameError, Code: code, Message: message}
}

func PingFrame() Frame { return Frame{Type: FramePing} }

func PongFrame() Frame { return Frame{Type: FramePong} }
