package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/advisor"
	"github.com/fastygo/taskpulse/internal/calendar"
	feedbackctl "github.com/fastygo/taskpulse/internal/feedback"
	"github.com/fastygo/taskpulse/internal/infrastructure/monitor"
	"github.com/fastygo/taskpulse/pkg/httpcontext"
	"github.com/fastygo/taskpulse/repository/memory"
	"github.com/fastygo/taskpulse/usecase"
	feedbackUC "github.com/fastygo/taskpulse/usecase/feedback"
	"github.com/fastygo/taskpulse/usecase/insight"
	taskUC "github.com/fastygo/taskpulse/usecase/task"
)

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Meta   json.RawMessage `json:"meta"`
}

func newRequest(method, body string, userID string, params map[string]string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	if userID != "" {
		httpcontext.SetUserID(ctx, userID)
	}
	for k, v := range params {
		ctx.SetUserValue(k, v)
	}
	return ctx
}

func decodeEnvelope(t *testing.T, ctx *fasthttp.RequestCtx, dst interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &env), string(ctx.Response.Body()))
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
	return env
}

func newTaskHandler() (*TaskHandler, *memory.TaskRepo) {
	repo := memory.NewTaskRepo()
	uc := taskUC.New(repo, nil, nil)
	return NewTaskHandler(uc, time.UTC, httpcontext.NewAdapter(time.Second), nil), repo
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{domain.ErrTaskForbidden, http.StatusForbidden, "FORBIDDEN"},
		{domain.ErrInvalidPayload, http.StatusBadRequest, "INVALID"},
		{domain.ErrTaskNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrDuplicateOrder, http.StatusConflict, "CONFLICT"},
		{domain.FeedbackFetchError(errors.New("x")), http.StatusServiceUnavailable, "UNAVAILABLE"},
		{domain.ErrFeedbackDegraded, http.StatusOK, "DEGRADED"},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "UNAVAILABLE"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		status, code := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestTaskHandler_RequiresUser(t *testing.T) {
	h, _ := newTaskHandler()
	ctx := newRequest(http.MethodGet, "", "", nil)
	h.GetTasks(ctx)

	assert.Equal(t, http.StatusUnauthorized, ctx.Response.StatusCode())
	env := decodeEnvelope(t, ctx, nil)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestTaskHandler_SubtaskFlow(t *testing.T) {
	h, _ := newTaskHandler()

	ctx := newRequest(http.MethodPost, `{"title":"Move house","priority":"high","deadline":"2024-03-01",
		"subtasks":[{"title":"Pack"},{"title":"Drive"},{"title":"Unpack"}]}`, "u1", nil)
	h.CreateTask(ctx)
	require.Equal(t, http.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))

	var created domain.Task
	decodeEnvelope(t, ctx, &created)
	assert.Equal(t, domain.PriorityHigh, created.Priority)
	assert.Equal(t, domain.StatusPending, created.Status)
	require.Len(t, created.Subtasks, 3)
	require.NotNil(t, created.Deadline)

	ctx = newRequest(http.MethodPost, "", "u1", map[string]string{"id": created.ID, "sid": created.Subtasks[0].ID})
	h.ToggleSubtask(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	var toggled domain.Task
	decodeEnvelope(t, ctx, &toggled)
	assert.Equal(t, 33, toggled.Progress)
	assert.Equal(t, domain.StatusInProgress, toggled.Status)

	// Tasks with subtasks cannot be toggled directly.
	ctx = newRequest(http.MethodPost, "", "u1", map[string]string{"id": created.ID})
	h.ToggleTask(ctx)
	assert.Equal(t, http.StatusNotFound, ctx.Response.StatusCode())

	ctx = newRequest(http.MethodGet, "", "u2", map[string]string{"id": created.ID})
	h.GetTask(ctx)
	assert.Equal(t, http.StatusForbidden, ctx.Response.StatusCode())

	ctx = newRequest(http.MethodDelete, "", "u1", map[string]string{"id": created.ID, "sid": created.Subtasks[1].ID})
	h.DeleteSubtask(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	var trimmed domain.Task
	decodeEnvelope(t, ctx, &trimmed)
	assert.Len(t, trimmed.Subtasks, 2)
	assert.Equal(t, 50, trimmed.Progress)
}

func TestTaskHandler_UpdateSubtask(t *testing.T) {
	h, _ := newTaskHandler()

	ctx := newRequest(http.MethodPost, `{"title":"Trip","subtasks":[{"title":"Book"},{"title":"Pack"}]}`, "u1", nil)
	h.CreateTask(ctx)
	require.Equal(t, http.StatusCreated, ctx.Response.StatusCode())
	var created domain.Task
	decodeEnvelope(t, ctx, &created)
	params := map[string]string{"id": created.ID, "sid": created.Subtasks[0].ID}

	ctx = newRequest(http.MethodPut, `{"title":"Book flights","deadline":"2024-05-10","completed":true}`, "u1", params)
	h.UpdateSubtask(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	var updated domain.Task
	decodeEnvelope(t, ctx, &updated)
	assert.Equal(t, "Book flights", updated.Subtasks[0].Title)
	require.NotNil(t, updated.Subtasks[0].Deadline)
	assert.Equal(t, time.May, updated.Subtasks[0].Deadline.Month())
	assert.Equal(t, 50, updated.Progress)
	assert.Equal(t, domain.StatusInProgress, updated.Status)

	ctx = newRequest(http.MethodPut, `{"order":1}`, "u1", params)
	h.UpdateSubtask(ctx)
	assert.Equal(t, http.StatusConflict, ctx.Response.StatusCode())
	assert.Equal(t, "CONFLICT", decodeEnvelope(t, ctx, nil).Code)

	ctx = newRequest(http.MethodPut, `{"deadline":"whenever"}`, "u1", params)
	h.UpdateSubtask(ctx)
	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())

	ctx = newRequest(http.MethodPut, `{"deadline":""}`, "u1", params)
	h.UpdateSubtask(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	var cleared domain.Task
	decodeEnvelope(t, ctx, &cleared)
	assert.Nil(t, cleared.Subtasks[0].Deadline)

	ctx = newRequest(http.MethodPut, `{"title":"x"}`, "u1", map[string]string{"id": created.ID, "sid": "nope"})
	h.UpdateSubtask(ctx)
	assert.Equal(t, http.StatusNotFound, ctx.Response.StatusCode())
}

func TestTaskHandler_ListUpdateDelete(t *testing.T) {
	h, _ := newTaskHandler()

	for i := 0; i < 3; i++ {
		ctx := newRequest(http.MethodPost, fmt.Sprintf(`{"title":"task %d"}`, i), "u1", nil)
		h.CreateTask(ctx)
		require.Equal(t, http.StatusCreated, ctx.Response.StatusCode())
	}

	ctx := newRequest(http.MethodGet, "", "u1", nil)
	ctx.Request.SetRequestURI("/api/v1/tasks?limit=2&offset=0")
	h.GetTasks(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	var tasks []domain.Task
	env := decodeEnvelope(t, ctx, &tasks)
	require.Len(t, tasks, 2)
	assert.JSONEq(t, `{"limit":2,"offset":0,"count":2}`, string(env.Meta))

	id := tasks[0].ID
	ctx = newRequest(http.MethodPut, `{"title":"renamed","completed":true}`, "u1", map[string]string{"id": id})
	h.UpdateTask(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	var updated domain.Task
	decodeEnvelope(t, ctx, &updated)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	assert.Equal(t, 100, updated.Progress)

	ctx = newRequest(http.MethodPut, `{"title":`, "u1", map[string]string{"id": id})
	h.UpdateTask(ctx)
	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())

	ctx = newRequest(http.MethodPut, `{"deadline":"2024-06-01"}`, "u1", map[string]string{"id": id})
	h.UpdateTask(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())

	ctx = newRequest(http.MethodPut, `{"deadline":"soon-ish"}`, "u1", map[string]string{"id": id})
	h.UpdateTask(ctx)
	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, "INVALID", decodeEnvelope(t, ctx, nil).Code)

	ctx = newRequest(http.MethodGet, "", "u1", map[string]string{"id": id})
	h.GetTask(ctx)
	var kept domain.Task
	decodeEnvelope(t, ctx, &kept)
	require.NotNil(t, kept.Deadline, "a rejected edit leaves the deadline alone")
	assert.Equal(t, 1, kept.Deadline.Day())

	ctx = newRequest(http.MethodDelete, "", "u1", map[string]string{"id": id})
	h.DeleteTask(ctx)
	assert.Equal(t, http.StatusNoContent, ctx.Response.StatusCode())

	ctx = newRequest(http.MethodGet, "", "u1", map[string]string{"id": id})
	h.GetTask(ctx)
	assert.Equal(t, http.StatusNotFound, ctx.Response.StatusCode())
}

func TestInsightHandler(t *testing.T) {
	repo := memory.NewTaskRepo()
	tasks := taskUC.New(repo, nil, nil)
	_, err := tasks.CreateTask(context.Background(), "u1", taskUC.CreateInput{
		Title:    "Report",
		Deadline: domain.ParseDeadline("2024-02-14", time.UTC),
	})
	require.NoError(t, err)

	d := usecase.NewDispatcher()
	insight.New(repo, time.UTC, nil).Register(d)
	h := NewInsightHandler(d, time.UTC, httpcontext.NewAdapter(time.Second), nil)

	ctx := newRequest(http.MethodGet, "", "u1", map[string]string{"view": "month"})
	ctx.Request.SetRequestURI("/api/v1/views/month?date=2024-02-01")
	h.View(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	var month calendar.MonthView
	decodeEnvelope(t, ctx, &month)
	assert.Equal(t, time.February, month.Month)

	ctx = newRequest(http.MethodGet, "", "u1", map[string]string{"view": "fortnight"})
	h.View(ctx)
	assert.Equal(t, http.StatusNotFound, ctx.Response.StatusCode())

	ctx = newRequest(http.MethodGet, "", "u1", map[string]string{"view": "day"})
	ctx.Request.SetRequestURI("/api/v1/views/day?date=14-02-2024")
	h.View(ctx)
	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())

	ctx = newRequest(http.MethodGet, "", "u1", map[string]string{"granularity": "week"})
	h.Trend(ctx)
	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())

	ctx = newRequest(http.MethodGet, "", "u1", map[string]string{"granularity": "all"})
	h.Trend(ctx)
	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())

	ctx = newRequest(http.MethodGet, "", "u1", map[string]string{"granularity": "decade"})
	h.Trend(ctx)
	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
}

type failingSource struct{}

func (failingSource) GetFeedback(ctx context.Context, userID string, tasks []domain.Task) (domain.Feedback, error) {
	return domain.Feedback{}, errors.New("connection refused")
}

func TestFeedbackHandler(t *testing.T) {
	repo := memory.NewTaskRepo()
	newHandler := func(src feedbackctl.Source) *FeedbackHandler {
		uc := feedbackUC.New(feedbackctl.NewRegistry(time.Hour, nil), src, memory.NewFeedbackRepo(), repo, time.Second, nil)
		return NewFeedbackHandler(uc, httpcontext.NewAdapter(time.Second), nil)
	}

	h := newHandler(advisor.NewHeuristicSource(time.Now))
	ctx := newRequest(http.MethodGet, "", "u1", nil)
	h.Get(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	var state feedbackctl.State
	env := decodeEnvelope(t, ctx, &state)
	assert.Empty(t, env.Code)
	assert.Equal(t, feedbackctl.PhaseReady, state.Phase)
	require.NotNil(t, state.Feedback)

	h = newHandler(failingSource{})
	ctx = newRequest(http.MethodPost, "", "u1", nil)
	h.Refresh(ctx)
	assert.Equal(t, http.StatusServiceUnavailable, ctx.Response.StatusCode())
	env = decodeEnvelope(t, ctx, &state)
	assert.Equal(t, "UNAVAILABLE", env.Code)
	assert.Equal(t, feedbackctl.PhaseFailed, state.Phase)
}

type staticStatus monitor.Status

func (s staticStatus) GetStatus() monitor.Status { return monitor.Status(s) }

func TestHealthHandler(t *testing.T) {
	cases := []struct {
		name   string
		status monitor.Status
		code   int
		env    string
	}{
		{"healthy", monitor.Status{PostgreSQL: true, Redis: true, Buffer: true}, http.StatusOK, ""},
		{"redis down", monitor.Status{PostgreSQL: true, Buffer: true}, http.StatusOK, "DEGRADED"},
		{"backlog", monitor.Status{PostgreSQL: true, Redis: true, Buffer: true, BufferSize: 3}, http.StatusOK, "DEGRADED"},
		{"buffering", monitor.Status{Buffer: true}, http.StatusOK, "DEGRADED"},
		{"down", monitor.Status{Redis: true}, http.StatusServiceUnavailable, "UNAVAILABLE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(staticStatus(tc.status), "postgres", nil, nil)
			ctx := newRequest(http.MethodGet, "", "", nil)
			h.Check(ctx)
			assert.Equal(t, tc.code, ctx.Response.StatusCode())
			env := decodeEnvelope(t, ctx, nil)
			assert.Equal(t, tc.env, env.Code)
		})
	}

	h := NewHealthHandler(nil, "memory", nil, nil)
	ctx := newRequest(http.MethodGet, "", "", nil)
	h.Check(ctx)
	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
}
