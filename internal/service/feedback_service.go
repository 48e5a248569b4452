package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"support-router/internal/domain"
	"support-router/internal/repository"
)

const maxFeedbackComment = 1000

var (
	ErrFeedbackServiceNotConfigured = errors.New("feedback service not configured")
	ErrInvalidFeedback              = errors.New("invalid feedback")
)

type FeedbackService struct {
	repo repository.FeedbackRepository
}

func NewFeedbackService(repo repository.FeedbackRepository) *FeedbackService {
	return &FeedbackService{repo: repo}
}

// Submit valida y guarda el feedback; asigna id y timestamp si faltan.
func (s *FeedbackService) Submit(ctx context.Context, fb domain.Feedback) (domain.Feedback, error) {
	if s == nil || s.repo == nil {
		return domain.Feedback{}, ErrFeedbackServiceNotConfigured
	}

	fb.MessageID = strings.TrimSpace(fb.MessageID)
	fb.ConversationID = strings.TrimSpace(fb.ConversationID)
	fb.Comment = strings.TrimSpace(fb.Comment)

	switch {
	case fb.MessageID == "":
		return domain.Feedback{}, fmt.Errorf("%w: message id is required", ErrInvalidFeedback)
	case fb.Rating < 1 || fb.Rating > 5:
		return domain.Feedback{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidFeedback)
	case utf8.RuneCountInString(fb.Comment) > maxFeedbackComment:
		return domain.Feedback{}, fmt.Errorf("%w: comment exceeds %d characters", ErrInvalidFeedback, maxFeedbackComment)
	}

	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.Create(ctx, fb); err != nil {
		return domain.Feedback{}, fmt.Errorf("save feedback: %w", err)
	}
	return fb, nil
}
