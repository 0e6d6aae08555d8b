package memory

import (
	"context"
	"sync"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/repository"
)

// FeedbackRepo caches advisory payloads in process memory when Redis is not configured.
type FeedbackRepo struct {
	mu    sync.RWMutex
	items map[string]domain.Feedback
}

func NewFeedbackRepo() *FeedbackRepo {
	return &FeedbackRepo{items: make(map[string]domain.Feedback)}
}

var _ repository.FeedbackRepository = (*FeedbackRepo)(nil)

func (r *FeedbackRepo) Get(ctx context.Context, userID string) (*domain.Feedback, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	fb, ok := r.items[userID]
	if !ok {
		return nil, domain.ErrFeedbackNotFound
	}
	return &fb, nil
}

func (r *FeedbackRepo) Save(ctx context.Context, fb domain.Feedback) error {
	_ = ctx
	if fb.UserID == "" {
		return domain.ErrInvalidPayload
	}

	r.mu.Lock()
	r.items[fb.UserID] = fb
	r.mu.Unlock()
	return nil
}

func (r *FeedbackRepo) Delete(ctx context.Context, userID string) error {
	_ = ctx

	r.mu.Lock()
	delete(r.items, userID)
	r.mu.Unlock()
	return nil
}
