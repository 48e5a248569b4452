package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"support-router/internal/domain"
)

type ConversationRepository interface {
	Create(ctx context.Context, conv domain.Conversation) error
	GetByClientID(ctx context.Context, clientID string) (domain.Conversation, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

func (r *PgConversationRepository) Create(ctx context.Context, conv domain.Conversation) error {
	const query = `
		INSERT INTO conversations (id, client_id, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		conv.ID,
		conv.ClientID,
		conv.CreatedAt,
		conv.LastActivityAt,
	)
	return err
}

// GetByClientID devuelve la conversacion sin mensajes; ErrNotFound si no existe.
func (r *PgConversationRepository) GetByClientID(ctx context.Context, clientID string) (domain.Conversation, error) {
	const query = `
		SELECT id, client_id, created_at, last_activity_at
		FROM conversations
		WHERE client_id = $1
	`
	var conv domain.Conversation
	err := r.pool.QueryRow(ctx, query, clientID).Scan(
		&conv.ID,
		&conv.ClientID,
		&conv.CreatedAt,
		&conv.LastActivityAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, ErrNotFound
	}
	return conv, err
}

func (r *PgConversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE conversations SET last_activity_at = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, at)
	return err
}
