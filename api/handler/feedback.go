package handler

import (
	"errors"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/api/transport"
	"github.com/fastygo/taskpulse/domain"
	feedbackctl "github.com/fastygo/taskpulse/internal/feedback"
	"github.com/fastygo/taskpulse/pkg/httpcontext"
	feedbackUC "github.com/fastygo/taskpulse/usecase/feedback"
)

type FeedbackHandler struct {
	baseHandler
	uc *feedbackUC.UseCase
}

func NewFeedbackHandler(uc *feedbackUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Advisory feedback, re-fetched only when stale
// @Tags feedback
// @Router /api/v1/feedback [get]
func (h *FeedbackHandler) Get(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.Get(stdCtx, userID)
	h.respondState(ctx, state, err)
}

// @Summary Force an advisory feedback refresh
// @Tags feedback
// @Router /api/v1/feedback/refresh [post]
func (h *FeedbackHandler) Refresh(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.Refresh(stdCtx, userID)
	h.respondState(ctx, state, err)
}

// respondState always ships the controller state. A degraded backend is
// informational (200 with code DEGRADED); a failed fetch is 503 with the stale
// payload still attached.
func (h *FeedbackHandler) respondState(ctx *fasthttp.RequestCtx, state feedbackctl.State, err error) {
	if err == nil {
		h.respondSuccess(ctx, http.StatusOK, state)
		return
	}
	var dErr *domain.Error
	if !errors.As(err, &dErr) || (dErr.Code != domain.ErrCodeDegraded && dErr.Code != domain.ErrCodeUnavailable) {
		h.respondError(ctx, err)
		return
	}

	status, code := mapError(err)
	if status == http.StatusOK {
		h.respondJSON(ctx, status, transport.NewDegraded(code, state))
		return
	}
	h.respondJSON(ctx, status, transport.NewError(code, err.Error(), nil).WithData(state))
}
