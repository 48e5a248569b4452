package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"support-router/internal/domain"
)

type FeedbackRepository interface {
	Create(ctx context.Context, fb domain.Feedback) error
	ListByMessageID(ctx context.Context, messageID string) ([]domain.Feedback, error)
}

type PgFeedbackRepository struct {
	pool *pgxpool.Pool
}

func NewPgFeedbackRepository(pool *pgxpool.Pool) *PgFeedbackRepository {
	return &PgFeedbackRepository{pool: pool}
}

func (r *PgFeedbackRepository) Create(ctx context.Context, fb domain.Feedback) error {
	const query = `
		INSERT INTO feedback (id, message_id, conversation_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		fb.ID,
		fb.MessageID,
		nullableString(fb.ConversationID),
		fb.Rating,
		nullableString(fb.Comment),
		fb.CreatedAt,
	)
	return err
}

func (r *PgFeedbackRepository) ListByMessageID(ctx context.Context, messageID string) ([]domain.Feedback, error) {
	const query = `
		SELECT id, message_id, conversation_id, rating, comment, created_at
		FROM feedback
		WHERE message_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		var convID, comment *string
		if err := rows.Scan(&fb.ID, &fb.MessageID, &convID, &fb.Rating, &comment, &fb.CreatedAt); err != nil {
			return nil, err
		}
		if convID != nil {
			fb.ConversationID = *convID
		}
		if comment != nil {
			fb.Comment = *comment
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}
