package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"support-router/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) error
	ListByConversationID(ctx context.Context, conversationID string) ([]domain.Message, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) error {
	const query = `
		INSERT INTO conversation_messages (id, conversation_id, role, content, intent, confidence, answer_source, agent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		message.ID,
		message.ConversationID,
		message.Role,
		message.Content,
		nullableString(message.Intent),
		message.Confidence,
		nullableString(string(message.AnswerSource)),
		nullableString(string(message.AgentID)),
		message.CreatedAt,
	)
	return err
}

// ListByConversationID devuelve los mensajes en orden de insercion.
func (r *PgMessageRepository) ListByConversationID(ctx context.Context, conversationID string) ([]domain.Message, error) {
	const query = `
		SELECT id, conversation_id, role, content, intent, confidence, answer_source, agent_id, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var intent, answerSource, agentID *string

		err = rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Content,
			&intent,
			&msg.Confidence,
			&answerSource,
			&agentID,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if intent != nil {
			msg.Intent = *intent
		}
		if answerSource != nil {
			msg.AnswerSource = domain.AnswerSource(*answerSource)
		}
		if agentID != nil {
			msg.AgentID = domain.AgentID(*agentID)
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
