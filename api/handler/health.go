package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/api/transport"
	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/infrastructure/monitor"
	"github.com/fastygo/taskpulse/pkg/httpcontext"
)

// StatusSource reports dependency health.
type StatusSource interface {
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	monitor StatusSource
	store   string
}

// NewHealthHandler builds the health endpoint. With the memory store there are no
// dependencies to check and mon may be nil.
func NewHealthHandler(mon StatusSource, store string, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		store:       store,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"store":     h.store,
	}
	if h.monitor == nil {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}

	status := h.monitor.GetStatus()
	payload["services"] = map[string]interface{}{
		"postgresql": status.PostgreSQL,
		"redis":      status.Redis,
		"buffer": map[string]interface{}{
			"online": status.Buffer,
			"size":   status.BufferSize,
		},
	}

	// Failed writes land in the buffer, so only losing the store and the buffer together is fatal.
	switch {
	case status.Healthy() && !status.Backlog():
		h.respondSuccess(ctx, http.StatusOK, payload)
	case status.Serving():
		h.respondJSON(ctx, http.StatusOK, transport.NewDegraded(string(domain.ErrCodeDegraded), payload))
	default:
		h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError(string(domain.ErrCodeUnavailable), "dependencies unhealthy", nil).WithData(payload))
	}
}
