package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"support-router/internal/domain"
)

var (
	ErrChatServiceNotConfigured = errors.New("chat service not configured")
	ErrInvalidMessage           = errors.New("invalid message")
	ErrRateLimited              = errors.New("rate limited")
)

// Router es la vista del AgentRouter que usa el servicio de chat.
type Router interface {
	Route(ctx context.Context, conversationID string, history []domain.Message, text string) RouteOutcome
}

// ChatOptions agrupa los limites del servicio de chat.
type ChatOptions struct {
	MaxMessageLength int
	Workers          int
	HistoryLimit     int
}

// ChatService ejecuta un turno completo del pipeline para un cliente.
type ChatService struct {
	store   *ConversationStore
	router  Router
	slots   *semaphore.Weighted
	limiter MessageRateLimiter
	opts    ChatOptions
	logger  *zap.Logger
}

func NewChatService(store *ConversationStore, router Router, limiter MessageRateLimiter, opts ChatOptions, logger *zap.Logger) *ChatService {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 5000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		store:   store,
		router:  router,
		slots:   semaphore.NewWeighted(int64(opts.Workers)),
		limiter: limiter,
		opts:    opts,
		logger:  logger,
	}
}

// Validate rechaza mensajes vacios, demasiado largos o con rol distinto de user.
func (s *ChatService) Validate(in domain.InboundMessage) error {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(content) > s.opts.MaxMessageLength {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidMessage, s.opts.MaxMessageLength)
	}
	if in.Role != "" && in.Role != domain.RoleUser {
		return fmt.Errorf("%w: role must be user", ErrInvalidMessage)
	}
	return nil
}

// Chat valida, serializa el turno en la conversacion del cliente, rutea y registra la respuesta.
// Si ctx se cancela antes de registrar la respuesta, el resultado se descarta.
func (s *ChatService) Chat(ctx context.Context, clientID string, in domain.InboundMessage) (domain.ChatReply, error) {
	if s == nil || s.store == nil || s.router == nil {
		return domain.ChatReply{}, ErrChatServiceNotConfigured
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return domain.ChatReply{}, fmt.Errorf("%w: client id is required", ErrInvalidMessage)
	}
	if err := s.Validate(in); err != nil {
		return domain.ChatReply{}, err
	}
	if s.limiter != nil && !s.limiter.Allow(ctx, clientID) {
		return domain.ChatReply{}, ErrRateLimited
	}
	text := strings.TrimSpace(in.Content)

	session := s.store.Get(ctx, clientID)
	release, err := session.Acquire(ctx)
	if err != nil {
		return domain.ChatReply{}, err
	}
	defer release()

	userMsg := session.AppendUser(text)

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return domain.ChatReply{}, err
	}
	outcome := s.router.Route(ctx, session.ID(), session.History(s.opts.HistoryLimit), text)
	s.slots.Release(1)

	if err := ctx.Err(); err != nil {
		s.logger.Debug("turn cancelled, discarding reply", zap.String("client_id", clientID))
		return domain.ChatReply{}, err
	}
	if err := session.AppendAssistant(outcome.Message); err != nil {
		return domain.ChatReply{}, err
	}

	s.logger.Info("turn completed",
		zap.String("client_id", clientID),
		zap.String("conversation_id", session.ID()),
		zap.String("agent_id", string(outcome.AgentID)),
		zap.String("intent", outcome.Intent),
		zap.String("answer_source", string(outcome.Message.AnswerSource)),
	)

	states := make([]string, 0, len(outcome.States))
	for _, st := range outcome.States {
		states = append(states, string(st))
	}
	return domain.ChatReply{
		UserMessage:      userMsg,
		AssistantMessage: outcome.Message,
		AgentID:          outcome.AgentID,
		AgentName:        outcome.AgentName,
		Intent:           outcome.Intent,
		Confidence:       outcome.Confidence,
		States:           states,
	}, nil
}

// Conversation devuelve el historial del cliente.
func (s *ChatService) Conversation(ctx context.Context, clientID string) (domain.Conversation, bool) {
	if s == nil || s.store == nil {
		return domain.Conversation{}, false
	}
	return s.store.Lookup(ctx, clientID)
}

// Release libera la conversacion en memoria del cliente cuando su sesion de transporte termina.
// El cupo de mensajes del cliente se conserva.
func (s *ChatService) Release(clientID string) {
	if s == nil || s.store == nil {
		return
	}
	s.store.Evict(clientID)
}

// ConversationID devuelve el id de conversacion del cliente, creandola si no existe.
func (s *ChatService) ConversationID(ctx context.Context, clientID string) string {
	if s == nil || s.store == nil {
		return ""
	}
	return s.store.Get(ctx, clientID).ID()
}
