package transport

import (
	"errors"
	"strings"
	"testing"
	"time"

	"support-router/internal/domain"
)

func TestDecodeFrame(t *testing.T) {
	valid := []string{
		`{"type":"chat","id":"1","content":"hello","role":"user","timestamp":"2024-05-01T10:00:00Z"}`,
		`{"type":"chat","content":"hello"}`,
		`{"type":"ping"}`,
		`{"type":"pong"}`,
	}
	for _, raw := range valid {
		if _, err := DecodeFrame([]byte(raw), 100); err != nil {
			t.Fatalf("expected %s to be valid, got %v", raw, err)
		}
	}

	invalid := map[string]string{
		"json roto":        `{"type":`,
		"sin tipo":         `{"content":"hi"}`,
		"tipo desconocido": `{"type":"shout"}`,
		"contenido vacio":  `{"type":"chat","content":"   "}`,
		"rol invalido":     `{"type":"chat","content":"hi","role":"assistant"}`,
		"timestamp malo":   `{"type":"chat","content":"hi","timestamp":"yesterday"}`,
		"demasiado largo":  `{"type":"chat","content":"` + strings.Repeat("a", 101) + `"}`,
	}
	for name, raw := range invalid {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeFrame([]byte(raw), 100); !errors.Is(err, ErrInvalidFrame) {
				t.Fatalf("expected ErrInvalidFrame, got %v", err)
			}
		})
	}
}

func TestFrameInbound(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"type":"chat","id":"m1","content":"hi","timestamp":"2024-05-01T10:00:00Z"}`), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := f.Inbound()
	if in.ID != "m1" || in.Content != "hi" || in.Timestamp.IsZero() {
		t.Fatalf("unexpected inbound %+v", in)
	}
}

func TestChatFrame(t *testing.T) {
	reply := domain.ChatReply{
		AssistantMessage: domain.Message{
			ID:             "a1",
			ConversationID: "conv",
			Content:        "Unplug the modem.",
			AnswerSource:   domain.AnswerKB,
			CreatedAt:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		AgentID:    domain.AgentTechSupport,
		AgentName:  "Tech Support",
		Intent:     domain.IntentTechnical,
		Confidence: 0.9,
	}
	data, err := EncodeFrame(ChatFrame(reply))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Role != domain.RoleAssistant || got.AgentID != "tech_support" || got.AnswerType != "kb" {
		t.Fatalf("unexpected frame %+v", got)
	}
	if got.Timestamp != "2024-05-01T10:00:00Z" || got.Confidence == nil || *got.Confidence != 0.9 {
		t.Fatalf("unexpected metadata %+v", got)
	}
}
