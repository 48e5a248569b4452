package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"support-router/internal/domain"
	"support-router/internal/repository"
)

const persistTimeout = 2 * time.Second

// ConversationSession es duena de una conversacion. Los turnos se serializan en orden FIFO
// con Acquire; History toma un read lock solo para copiar.
type ConversationSession struct {
	turn chan struct{}

	mu       sync.RWMutex
	conv     domain.Conversation
	messages []domain.Message

	persist func(domain.Message)
	now     func() time.Time
}

func newConversationSession(conv domain.Conversation, messages []domain.Message) *ConversationSession {
	return &ConversationSession{
		turn:     make(chan struct{}, 1),
		conv:     conv,
		messages: messages,
		persist:  func(domain.Message) {},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewConversationSession crea una sesion sin persistencia.
func NewConversationSession(clientID string) *ConversationSession {
	now := time.Now().UTC()
	return newConversationSession(domain.Conversation{
		ID:             uuid.NewString(),
		ClientID:       clientID,
		CreatedAt:      now,
		LastActivityAt: now,
	}, nil)
}

// Acquire espera el turno de la conversacion. El release devuelto debe llamarse una sola vez.
func (s *ConversationSession) Acquire(ctx context.Context) (func(), error) {
	select {
	case s.turn <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-s.turn }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *ConversationSession) tryAcquire() (func(), bool) {
	select {
	case s.turn <- struct{}{}:
		return func() { <-s.turn }, true
	default:
		return nil, false
	}
}

func (s *ConversationSession) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conv.ID
}

func (s *ConversationSession) ClientID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conv.ClientID
}

// AppendUser agrega el mensaje del usuario y lo devuelve con id y timestamp asignados.
func (s *ConversationSession) AppendUser(text string) domain.Message {
	s.mu.Lock()
	msg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: s.conv.ID,
		Role:           domain.RoleUser,
		Content:        text,
		CreatedAt:      s.now(),
	}
	s.messages = append(s.messages, msg)
	s.conv.LastActivityAt = msg.CreatedAt
	s.mu.Unlock()

	s.persist(msg)
	return msg
}

var ErrForeignMessage = errors.New("message belongs to another conversation")

// AppendAssistant agrega la respuesta producida por el router.
func (s *ConversationSession) AppendAssistant(msg domain.Message) error {
	s.mu.Lock()
	if msg.ConversationID != s.conv.ID {
		s.mu.Unlock()
		return ErrForeignMessage
	}
	msg.Role = domain.RoleAssistant
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	s.messages = append(s.messages, msg)
	s.conv.LastActivityAt = msg.CreatedAt
	s.mu.Unlock()

	s.persist(msg)
	return nil
}

// History devuelve una copia de los ultimos limit mensajes; limit <= 0 devuelve todos.
func (s *ConversationSession) History(limit int) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Snapshot devuelve la conversacion con todos sus mensajes.
func (s *ConversationSession) Snapshot() domain.Conversation {
	s.mu.RLock()
	conv := s.conv
	s.mu.RUnlock()
	conv.Messages = s.History(0)
	return conv
}

// ConversationStore mantiene una ConversationSession por cliente.
// Con repositorios configurados rehidrata desde la base y persiste cada append (best-effort).
type ConversationStore struct {
	mu       sync.Mutex
	sessions map[string]*ConversationSession

	convs  repository.ConversationRepository
	msgs   repository.MessageRepository
	logger *zap.Logger
}

func NewConversationStore(convs repository.ConversationRepository, msgs repository.MessageRepository, logger *zap.Logger) *ConversationStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationStore{
		sessions: make(map[string]*ConversationSession),
		convs:    convs,
		msgs:     msgs,
		logger:   logger,
	}
}

// Get devuelve la sesion del cliente, creandola o rehidratandola si hace falta.
func (st *ConversationStore) Get(ctx context.Context, clientID string) *ConversationSession {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[clientID]; ok {
		return s
	}
	s := st.load(ctx, clientID)
	st.sessions[clientID] = s
	return s
}

// Lookup devuelve la conversacion del cliente sin crearla.
func (st *ConversationStore) Lookup(ctx context.Context, clientID string) (domain.Conversation, bool) {
	st.mu.Lock()
	s, ok := st.sessions[clientID]
	st.mu.Unlock()
	if ok {
		return s.Snapshot(), true
	}
	if st.convs == nil {
		return domain.Conversation{}, false
	}
	conv, err := st.convs.GetByClientID(ctx, clientID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			st.logger.Warn("conversation lookup failed", zap.String("client_id", clientID), zap.Error(err))
		}
		return domain.Conversation{}, false
	}
	conv.Messages = st.loadMessages(ctx, conv.ID)
	if conv.Messages == nil {
		conv.Messages = []domain.Message{}
	}
	return conv, true
}

// Evict libera la sesion en memoria si no hay un turno en curso. Los mensajes ya persistidos se
// rehidratan en el proximo Get.
func (st *ConversationStore) Evict(clientID string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[clientID]
	if !ok {
		return false
	}
	release, idle := s.tryAcquire()
	if !idle {
		return false
	}
	defer release()
	delete(st.sessions, clientID)
	return true
}

// Len devuelve la cantidad de conversaciones en memoria.
func (st *ConversationStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *ConversationStore) load(ctx context.Context, clientID string) *ConversationSession {
	if st.convs != nil {
		conv, err := st.convs.GetByClientID(ctx, clientID)
		switch {
		case err == nil:
			s := newConversationSession(conv, st.loadMessages(ctx, conv.ID))
			s.persist = st.persister(conv.ID)
			return s
		case !errors.Is(err, repository.ErrNotFound):
			st.logger.Warn("conversation rehydrate failed, starting fresh", zap.String("client_id", clientID), zap.Error(err))
		}
	}

	s := NewConversationSession(clientID)
	if st.convs != nil {
		conv := s.Snapshot()
		if err := st.convs.Create(ctx, conv); err != nil {
			st.logger.Warn("conversation persist failed", zap.String("client_id", clientID), zap.Error(err))
		}
	}
	s.persist = st.persister(s.ID())
	return s
}

func (st *ConversationStore) loadMessages(ctx context.Context, conversationID string) []domain.Message {
	if st.msgs == nil {
		return nil
	}
	msgs, err := st.msgs.ListByConversationID(ctx, conversationID)
	if err != nil {
		st.logger.Warn("message history load failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return nil
	}
	return msgs
}

func (st *ConversationStore) persister(conversationID string) func(domain.Message) {
	return func(msg domain.Message) {
		if st.msgs == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := st.msgs.Create(ctx, msg); err != nil {
			st.logger.Warn("message persist failed",
				zap.String("conversation_id", conversationID),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			return
		}
		if st.convs != nil {
			if err := st.convs.Touch(ctx, conversationID, msg.CreatedAt); err != nil {
				st.logger.Debug("conversation touch failed", zap.String("conversation_id", conversationID), zap.Error(err))
			}
		}
	}
}
