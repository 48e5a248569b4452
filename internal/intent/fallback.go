package intent

import (
	"context"

	"go.uber.org/zap"

	"support-router/internal/domain"
)

// FallbackClassifier intenta primary y, si falla, usa secondary.
type FallbackClassifier struct {
	primary   Classifier
	secondary Classifier
	logger    *zap.Logger
}

func NewFallbackClassifier(primary, secondary Classifier, logger *zap.Logger) *FallbackClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackClassifier{primary: primary, secondary: secondary, logger: logger}
}

func (c *FallbackClassifier) Classify(ctx context.Context, text string) (domain.IntentResult, error) {
	res, err := c.primary.Classify(ctx, text)
	if err == nil {
		return res, nil
	}
	c.logger.Warn("primary intent classifier failed, using fallback", zap.Error(err))
	return c.secondary.Classify(ctx, text)
}
