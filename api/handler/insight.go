package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/api/transport"
	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/trend"
	"github.com/fastygo/taskpulse/pkg/httpcontext"
	"github.com/fastygo/taskpulse/usecase"
	"github.com/fastygo/taskpulse/usecase/insight"
)

var viewQueries = map[string]string{
	"month":       insight.QueryMonth,
	"week":        insight.QueryWeek,
	"day":         insight.QueryDay,
	"timeline":    insight.QueryTimeline,
	"unscheduled": insight.QueryUnscheduled,
}

// InsightHandler serves calendar views and trend series through the query dispatcher.
type InsightHandler struct {
	baseHandler
	dispatcher *usecase.Dispatcher
	loc        *time.Location
}

func NewInsightHandler(dispatcher *usecase.Dispatcher, loc *time.Location, adapter *httpcontext.Adapter, logger *zap.Logger) *InsightHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &InsightHandler{
		baseHandler: newBaseHandler(adapter, logger),
		dispatcher:  dispatcher,
		loc:         loc,
	}
}

// @Summary Calendar view
// @Tags views
// @Param date query string false "YYYY-MM-DD reference date"
// @Router /api/v1/views/{view} [get]
func (h *InsightHandler) View(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	query, ok := viewQueries[pathParam(ctx, "view")]
	if !ok {
		h.respondJSON(ctx, http.StatusNotFound, transport.NewError(string(domain.ErrCodeNotFound), "unknown view", nil))
		return
	}

	params := insight.ViewParams{UserID: userID}
	if raw := string(ctx.QueryArgs().Peek("date")); raw != "" {
		date, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "date must be YYYY-MM-DD", nil))
			return
		}
		params.Date = date
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	out, err := h.dispatcher.ExecuteQuery(stdCtx, query, params)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, out)
}

// @Summary Completion trend
// @Tags trends
// @Router /api/v1/trends/{granularity} [get]
func (h *InsightHandler) Trend(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	raw := pathParam(ctx, "granularity")
	query := insight.QueryTrendsAll
	params := insight.TrendParams{UserID: userID}
	if raw != "all" {
		g, err := trend.ParseGranularity(raw)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		query = insight.QueryTrend
		params.Granularity = g
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	out, err := h.dispatcher.ExecuteQuery(stdCtx, query, params)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, out)
}
