package feedback

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fastygo/taskpulse/domain"
	feedbackctl "github.com/fastygo/taskpulse/internal/feedback"
	"github.com/fastygo/taskpulse/internal/progress"
	"github.com/fastygo/taskpulse/repository"
)

// DefaultFetchTimeout bounds a shared staleness check and fetch.
const DefaultFetchTimeout = 30 * time.Second

// UseCase serves advisory feedback per user. The in-process controllers decide
// when to re-fetch; the cache repository only survives restarts.
type UseCase struct {
	registry *feedbackctl.Registry
	source   feedbackctl.Source
	cache    repository.FeedbackRepository
	tasks    repository.TaskRepository
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
	inflight singleflight.Group
}

func New(
	registry *feedbackctl.Registry,
	source feedbackctl.Source,
	cache repository.FeedbackRepository,
	tasks repository.TaskRepository,
	fetchTimeout time.Duration,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &UseCase{
		registry: registry,
		source:   source,
		cache:    cache,
		tasks:    tasks,
		timeout:  fetchTimeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the user's feedback, fetching a new payload only when the cached
// one is stale. The returned error is UNAVAILABLE when the fetch failed and
// DEGRADED when the backend answered with its unavailable marker; the state
// is valid in both cases.
// Concurrent Gets for one user share a single staleness check and fetch. It
// runs detached from any one caller's cancellation, bounded by the fetch
// timeout, so a caller that goes away does not fail the others.
func (uc *UseCase) Get(ctx context.Context, userID string) (feedbackctl.State, error) {
	if userID == "" {
		return feedbackctl.State{}, domain.ErrUnauthorized
	}
	v, err, shared := uc.inflight.Do(userID, func() (interface{}, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.timeout)
		defer cancel()
		return uc.refresh(sharedCtx, userID, false)
	})
	if shared {
		uc.logger.Debug("feedback request joined an in-flight check", zap.String("user_id", userID))
	}
	state, _ := v.(feedbackctl.State)
	return state, err
}

// Refresh fetches unconditionally.
func (uc *UseCase) Refresh(ctx context.Context, userID string) (feedbackctl.State, error) {
	return uc.refresh(ctx, userID, true)
}

// Invalidate drops both the controller and the cached payload for a user.
func (uc *UseCase) Invalidate(ctx context.Context, userID string) error {
	uc.registry.Forget(userID)
	if uc.cache == nil {
		return nil
	}
	return uc.cache.Delete(ctx, userID)
}

func (uc *UseCase) refresh(ctx context.Context, userID string, force bool) (feedbackctl.State, error) {
	if userID == "" {
		return feedbackctl.State{}, domain.ErrUnauthorized
	}
	ctl := uc.controller(ctx, userID)

	tasks, err := uc.tasks.List(ctx, repository.TaskFilter{UserID: userID})
	if err != nil {
		return ctl.Snapshot(), err
	}
	tasks = progress.SyncAll(tasks)

	state, fetched, err := ctl.Refresh(ctx, uc.source, userID, tasks, uc.now, force)
	if errors.Is(err, feedbackctl.ErrStaleResult) {
		return ctl.Snapshot(), nil
	}
	if fetched && err == nil && state.Feedback != nil && uc.cache != nil {
		fb := *state.Feedback
		fb.UserID = userID
		if cerr := uc.cache.Save(ctx, fb); cerr != nil {
			uc.logger.Warn("failed to cache feedback", zap.String("user_id", userID), zap.Error(cerr))
		}
	}
	return state, err
}

// controller returns the user's controller, seeding a fresh one from the cache.
func (uc *UseCase) controller(ctx context.Context, userID string) *feedbackctl.Controller {
	ctl, created := uc.registry.For(userID)
	if !created || uc.cache == nil {
		return ctl
	}
	cached, err := uc.cache.Get(ctx, userID)
	switch {
	case err == nil:
		ctl.Restore(*cached)
		uc.logger.Debug("feedback restored from cache", zap.String("user_id", userID), zap.Time("fetched_at", cached.FetchedAt))
	case !errors.Is(err, domain.ErrFeedbackNotFound):
		uc.logger.Warn("feedback cache unavailable", zap.String("user_id", userID), zap.Error(err))
	}
	return ctl
}
