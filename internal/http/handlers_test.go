package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"support-router/internal/domain"
	"support-router/internal/intent"
	"support-router/internal/knowledge"
	"support-router/internal/repository"
	"support-router/internal/service"
	"support-router/internal/transport"
)

func testKnowledgeIndex() *knowledge.Index {
	return knowledge.NewIndex(
		[]domain.Agent{{ID: domain.AgentTechSupport, Name: "Tech Support"}, {ID: domain.AgentGeneral, Name: "General Support"}},
		[]domain.KnowledgeEntry{
			{AgentID: domain.AgentTechSupport, Category: "modem_reset", Keywords: []string{"reset", "modem"}, Question: "How do I reset my modem?", Answer: "Unplug the modem for 30 seconds."},
		},
		knowledge.DefaultAcceptThreshold,
	)
}

type testServer struct {
	router *gin.Engine
	tokens *transport.TokenIssuer
	chat   *service.ChatService
	store  *repository.InMemoryStore
}

func setupRouter(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	idx := testKnowledgeIndex()
	store := repository.NewInMemoryStore()
	router := service.NewAgentRouter(intent.NewKeywordClassifier(nil, 5000), idx, service.NewFallbackEscalator(nil, idx.Agent, service.EscalatorOptions{}, nil), service.RouterOptions{ConfidenceFloor: 0.25}, logger)
	chat := service.NewChatService(service.NewConversationStore(store.Conversations(), store.Messages(), logger), router, nil, service.ChatOptions{MaxMessageLength: 100, Workers: 2}, logger)
	tokens, err := transport.NewTokenIssuer("secret", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}

	r := NewRouter(logger,
		NewChatHandler(logger, chat, tokens),
		NewFeedbackHandler(logger, service.NewFeedbackService(store.Feedback())),
		NewKnowledgeHandler(idx),
		NewHealthHandler(idx.Len, func() int { return 0 }),
		nil,
	)
	return testServer{router: r, tokens: tokens, chat: chat, store: store}
}

func performRequest(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPostMessage(t *testing.T) {
	srv := setupRouter(t)
	token, _ := srv.tokens.Issue("c1")
	auth := map[string]string{"X-Client-ID": "c1", "Authorization": "Bearer " + token}

	t.Run("modem por kb", func(t *testing.T) {
		rec := performRequest(srv.router, http.MethodPost, "/messages", map[string]string{"content": "How do I reset my modem?"}, auth)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			ClientID string          `json:"clientId"`
			Reply    transport.Frame `json:"reply"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.ClientID != "c1" || resp.Reply.AgentID != "tech_support" || resp.Reply.AnswerType != "kb" {
			t.Fatalf("unexpected response %+v", resp)
		}
	})

	t.Run("sin cliente asigna id y token", func(t *testing.T) {
		rec := performRequest(srv.router, http.MethodPost, "/messages", map[string]string{"content": "hello"}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			ClientID    string `json:"clientId"`
			ResumeToken string `json:"resumeToken"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.ClientID == "" {
			t.Fatalf("expected generated client id")
		}
		if sub, err := srv.tokens.Verify(resp.ResumeToken); err != nil || sub != resp.ClientID {
			t.Fatalf("expected resume token for %s, got %q (%v)", resp.ClientID, sub, err)
		}
	})

	t.Run("cliente existente sin token", func(t *testing.T) {
		rec := performRequest(srv.router, http.MethodPost, "/messages", map[string]string{"content": "hello"}, map[string]string{"X-Client-ID": "c1"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		rec = performRequest(srv.router, http.MethodPost, "/messages", map[string]string{"clientId": "c1", "content": "hello"}, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for body client id, got %d", rec.Code)
		}
	})

	t.Run("token de otro cliente", func(t *testing.T) {
		other, _ := srv.tokens.Issue("c2")
		rec := performRequest(srv.router, http.MethodPost, "/messages", map[string]string{"content": "hello"}, map[string]string{"X-Client-ID": "c1", "Authorization": "Bearer " + other})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		conv, ok := srv.chat.Conversation(context.Background(), "c1")
		if !ok || len(conv.Messages) != 2 {
			t.Fatalf("rejected write must not reach the conversation, got %+v", conv.Messages)
		}
	})

	t.Run("contenido vacio", func(t *testing.T) {
		rec := performRequest(srv.router, http.MethodPost, "/messages", map[string]string{"content": "  "}, auth)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("timestamp invalido", func(t *testing.T) {
		rec := performRequest(srv.router, http.MethodPost, "/messages", map[string]string{"content": "hi", "timestamp": "ayer"}, auth)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestGetConversation(t *testing.T) {
	srv := setupRouter(t)
	token, _ := srv.tokens.Issue("c1")
	performRequest(srv.router, http.MethodPost, "/messages", map[string]string{"content": "How do I reset my modem?"}, map[string]string{"X-Client-ID": "c1", "Authorization": "Bearer " + token})

	t.Run("sin token", func(t *testing.T) {
		if rec := performRequest(srv.router, http.MethodGet, "/conversations/c1", nil, nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("token de otro cliente", func(t *testing.T) {
		other, _ := srv.tokens.Issue("c2")
		rec := performRequest(srv.router, http.MethodGet, "/conversations/c1", nil, map[string]string{"Authorization": "Bearer " + other})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("historial completo", func(t *testing.T) {
		rec := performRequest(srv.router, http.MethodGet, "/conversations/c1", nil, map[string]string{"Authorization": "Bearer " + token})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Conversation domain.Conversation `json:"conversation"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if len(resp.Conversation.Messages) != 2 || resp.Conversation.Messages[0].Role != domain.RoleUser {
			t.Fatalf("unexpected conversation %+v", resp.Conversation)
		}
	})

	t.Run("inexistente", func(t *testing.T) {
		tok, _ := srv.tokens.Issue("ghost")
		rec := performRequest(srv.router, http.MethodGet, "/conversations/ghost", nil, map[string]string{"Authorization": "Bearer " + tok})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestSubmitFeedback(t *testing.T) {
	srv := setupRouter(t)

	rec := performRequest(srv.router, http.MethodPost, "/feedback", map[string]any{"messageId": "m1", "rating": 4, "comment": "useful"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	saved, _ := srv.store.Feedback().ListByMessageID(context.Background(), "m1")
	if len(saved) != 1 || saved[0].Rating != 4 {
		t.Fatalf("expected feedback stored, got %+v", saved)
	}

	if rec := performRequest(srv.router, http.MethodPost, "/feedback", map[string]any{"messageId": "m1", "rating": 9}, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for rating out of range, got %d", rec.Code)
	}
	if rec := performRequest(srv.router, http.MethodPost, "/feedback", map[string]any{"rating": 3}, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without message id, got %d", rec.Code)
	}
}

func TestKnowledgeSearchAndHealth(t *testing.T) {
	srv := setupRouter(t)

	rec := performRequest(srv.router, http.MethodGet, "/knowledge?q=modem", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 1 {
		t.Fatalf("expected one article, got %d", resp.Count)
	}

	rec = performRequest(srv.router, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") == "" {
		t.Fatalf("unexpected health response %d", rec.Code)
	}
}
