package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/repository"
)

type feedbackRepository struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewFeedbackRepository creates a Redis-backed cache for the last good advisory payload per user.
func NewFeedbackRepository(client *redislib.Client, ttl time.Duration) repository.FeedbackRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &feedbackRepository{
		client: client,
		prefix: "feedback:",
		ttl:    ttl,
	}
}

func (r *feedbackRepository) Get(ctx context.Context, userID string) (*domain.Feedback, error) {
	result, err := r.client.Get(ctx, r.key(userID)).Result()
	if err != nil {
		if err == redislib.Nil {
			return nil, domain.ErrFeedbackNotFound
		}
		return nil, err
	}

	var fb domain.Feedback
	if err := json.Unmarshal([]byte(result), &fb); err != nil {
		return nil, err
	}
	return &fb, nil
}

func (r *feedbackRepository) Save(ctx context.Context, fb domain.Feedback) error {
	if fb.UserID == "" {
		return domain.ErrInvalidPayload
	}
	if fb.FetchedAt.IsZero() {
		fb.FetchedAt = time.Now()
	}

	payload, err := json.Marshal(fb)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(fb.UserID), payload, r.ttl).Err()
}

func (r *feedbackRepository) Delete(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.key(userID)).Err()
}

func (r *feedbackRepository) key(id string) string {
	return fmt.Sprintf("%s%s", r.prefix, id)
}
