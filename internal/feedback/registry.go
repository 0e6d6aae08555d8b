package feedback

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry hands out one Controller per user.
type Registry struct {
	maxAge time.Duration
	logger *zap.Logger

	mu          sync.Mutex
	controllers map[string]*Controller
}

func NewRegistry(maxAge time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		maxAge:      maxAge,
		logger:      logger,
		controllers: make(map[string]*Controller),
	}
}

// For returns the controller for userID, creating it on first use. The
// boolean is true when the controller was just created.
func (r *Registry) For(userID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.controllers[userID]; ok {
		return c, false
	}
	c := NewController(r.maxAge, r.logger.With(zap.String("user_id", userID)))
	r.controllers[userID] = c
	return c, true
}

// Forget drops the controller for userID.
func (r *Registry) Forget(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, userID)
}
