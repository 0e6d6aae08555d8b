package repository

import (
	"context"

	"github.com/fastygo/taskpulse/domain"
)

// FeedbackRepository persists the last good advisory payload per user.
type FeedbackRepository interface {
	Get(ctx context.Context, userID string) (*domain.Feedback, error)
	Save(ctx context.Context, feedback domain.Feedback) error
	Delete(ctx context.Context, userID string) error
}
