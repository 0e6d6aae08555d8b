// Package feedback decides when the advisory summary must be re-fetched and
// keeps the last good payload around while the advisory backend misbehaves.
package feedback

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/domain"
)

// DefaultMaxAge is how long a successful fetch stays fresh.
const DefaultMaxAge = time.Hour

// ErrStaleResult is returned when a fetch completes after a newer one was applied.
var ErrStaleResult = errors.New("feedback result superseded by a newer fetch")

// Source is the advisory backend.
type Source interface {
	GetFeedback(ctx context.Context, userID string, tasks []domain.Task) (domain.Feedback, error)
}

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseLoading  Phase = "loading"
	PhaseReady    Phase = "ready"
	PhaseDegraded Phase = "degraded"
	PhaseFailed   Phase = "failed"
)

// State is a read-only copy of the controller for callers.
type State struct {
	Phase      Phase            `json:"phase"`
	Loading    bool             `json:"loading"`
	Stale      bool             `json:"stale"`
	Feedback   *domain.Feedback `json:"feedback,omitempty"`
	Notice     string           `json:"notice,omitempty"`
	LastUpdate *time.Time       `json:"last_update,omitempty"`
}

// Controller holds the staleness clock for one user's feedback.
type Controller struct {
	maxAge time.Duration
	logger *zap.Logger

	mu          sync.Mutex
	lastUpdate  time.Time
	retry       bool
	phase       Phase
	outcome     Phase
	payload     *domain.Feedback
	stale       bool
	notice      string
	issued      uint64
	applied     uint64
	outstanding int
}

// NewController builds a controller; maxAge <= 0 uses DefaultMaxAge.
func NewController(maxAge time.Duration, logger *zap.Logger) *Controller {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{maxAge: maxAge, logger: logger, phase: PhaseIdle, outcome: PhaseIdle}
}

// Restore seeds the controller with a previously persisted payload.
func (c *Controller) Restore(fb domain.Feedback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payload != nil || fb.FetchedAt.IsZero() {
		return
	}
	c.payload = &fb
	c.lastUpdate = fb.FetchedAt
	c.outcome = PhaseReady
	c.settle()
}

// ShouldUpdate reports whether the cached feedback must be refreshed: nothing
// fetched yet, older than maxAge, any task modified after the last fetch, or
// the previous attempt degraded or failed.
func (c *Controller) ShouldUpdate(tasks []domain.Task, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastUpdate.IsZero() || c.retry {
		return true
	}
	if now.Sub(c.lastUpdate) > c.maxAge {
		return true
	}
	for _, t := range tasks {
		if t.UpdatedAt.After(c.lastUpdate) {
			return true
		}
	}
	return false
}

// Begin registers a fetch and returns its generation.
func (c *Controller) Begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	c.outstanding++
	c.phase = PhaseLoading
	return c.issued
}

// Complete applies the outcome of fetch gen. Outcomes are applied in
// completion order: a fetch that finishes after a newer one was applied is
// dropped with ErrStaleResult. A transport error keeps the old payload and
// marks it stale; a payload flagged unavailable is reported as degraded. In
// both cases the staleness clock is left alone and the next ShouldUpdate
// asks for a retry. While another fetch is outstanding the phase stays
// Loading and the applied outcome shows once the last one settles.
func (c *Controller) Complete(gen uint64, fb domain.Feedback, fetchErr error, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.outstanding > 0 {
		c.outstanding--
	}
	if gen <= c.applied {
		c.settle()
		c.logger.Debug("discarding superseded feedback", zap.Uint64("generation", gen), zap.Uint64("applied", c.applied))
		return ErrStaleResult
	}
	c.applied = gen

	switch {
	case fetchErr != nil:
		c.retry = true
		c.stale = c.payload != nil
		c.outcome = PhaseFailed
		c.notice = ""
		c.settle()
		c.logger.Warn("advisory fetch failed", zap.Uint64("generation", gen), zap.Error(fetchErr))
		return domain.FeedbackFetchError(fetchErr)

	case fb.SignalsUnavailable():
		c.retry = true
		c.stale = c.payload != nil
		c.outcome = PhaseDegraded
		c.notice = fb.Summary
		c.settle()
		c.logger.Info("advisory service degraded", zap.Uint64("generation", gen), zap.String("summary", fb.Summary))
		return domain.ErrFeedbackDegraded

	default:
		fb.FetchedAt = now
		c.payload = &fb
		c.lastUpdate = now
		c.retry = false
		c.stale = false
		c.notice = ""
		c.outcome = PhaseReady
		c.settle()
		return nil
	}
}

// settle shows Loading while fetches are outstanding and the last applied
// outcome otherwise.
func (c *Controller) settle() {
	if c.outstanding > 0 {
		c.phase = PhaseLoading
		return
	}
	c.phase = c.outcome
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		Phase:   c.phase,
		Loading: c.outstanding > 0,
		Stale:   c.stale,
		Notice:  c.notice,
	}
	if c.payload != nil {
		fb := *c.payload
		st.Feedback = &fb
	}
	if !c.lastUpdate.IsZero() {
		lu := c.lastUpdate
		st.LastUpdate = &lu
	}
	return st
}

// Refresh fetches from src when ShouldUpdate says so (or force is set) and
// returns the resulting state. The returned error is the one Complete produced.
func (c *Controller) Refresh(ctx context.Context, src Source, userID string, tasks []domain.Task, now func() time.Time, force bool) (State, bool, error) {
	if now == nil {
		now = time.Now
	}
	if !force && !c.ShouldUpdate(tasks, now()) {
		return c.Snapshot(), false, nil
	}

	gen := c.Begin()
	fb, err := src.GetFeedback(ctx, userID, tasks)
	err = c.Complete(gen, fb, err, now())
	return c.Snapshot(), true, err
}
