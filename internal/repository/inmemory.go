package repository

import (
	"context"
	"sync"
	"time"

	"support-router/internal/domain"
)

// InMemoryStore implementa los tres repositorios en memoria.
// Se usa cuando DATABASE_URL no esta configurada y en tests.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]domain.Conversation // por client_id
	messages      map[string][]domain.Message    // por conversation_id
	feedback      []domain.Feedback
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
	}
}

// Conversations expone el store como ConversationRepository.
func (s *InMemoryStore) Conversations() ConversationRepository { return inMemoryConversations{s} }

// Messages expone el store como MessageRepository.
func (s *InMemoryStore) Messages() MessageRepository { return inMemoryMessages{s} }

// Feedback expone el store como FeedbackRepository.
func (s *InMemoryStore) Feedback() FeedbackRepository { return inMemoryFeedback{s} }

type inMemoryConversations struct{ s *InMemoryStore }

func (r inMemoryConversations) Create(_ context.Context, conv domain.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.conversations[conv.ClientID]; ok {
		return nil
	}
	conv.Messages = nil
	r.s.conversations[conv.ClientID] = conv
	return nil
}

func (r inMemoryConversations) GetByClientID(_ context.Context, clientID string) (domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	conv, ok := r.s.conversations[clientID]
	if !ok {
		return domain.Conversation{}, ErrNotFound
	}
	return conv, nil
}

func (r inMemoryConversations) Touch(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for clientID, conv := range r.s.conversations {
		if conv.ID == id {
			conv.LastActivityAt = at
			r.s.conversations[clientID] = conv
			return nil
		}
	}
	return ErrNotFound
}

type inMemoryMessages struct{ s *InMemoryStore }

func (r inMemoryMessages) Create(_ context.Context, msg domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.messages[msg.ConversationID] = append(r.s.messages[msg.ConversationID], msg)
	return nil
}

func (r inMemoryMessages) ListByConversationID(_ context.Context, conversationID string) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	msgs := r.s.messages[conversationID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

type inMemoryFeedback struct{ s *InMemoryStore }

func (r inMemoryFeedback) Create(_ context.Context, fb domain.Feedback) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.feedback = append(r.s.feedback, fb)
	return nil
}

func (r inMemoryFeedback) ListByMessageID(_ context.Context, messageID string) ([]domain.Feedback, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Feedback
	for _, fb := range r.s.feedback {
		if fb.MessageID == messageID {
			out = append(out, fb)
		}
	}
	return out, nil
}
