// Package insight serves the read-only calendar and trend views over a user's
// task snapshot. Queries are registered on the shared dispatcher by name.
package insight

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/calendar"
	"github.com/fastygo/taskpulse/internal/progress"
	"github.com/fastygo/taskpulse/internal/trend"
	"github.com/fastygo/taskpulse/repository"
	"github.com/fastygo/taskpulse/usecase"
)

const (
	QueryMonth       = "views.month"
	QueryWeek        = "views.week"
	QueryDay         = "views.day"
	QueryTimeline    = "views.timeline"
	QueryUnscheduled = "views.unscheduled"
	QueryTrend       = "trends.series"
	QueryTrendsAll   = "trends.all"
)

// ViewParams selects the user and the reference date of a view query.
// A zero Date means today in the configured location.
type ViewParams struct {
	UserID string
	Date   time.Time
}

// TrendParams selects the user and granularity of a trend query.
type TrendParams struct {
	UserID      string
	Granularity trend.Granularity
}

type UseCase struct {
	tasks  repository.TaskRepository
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

func New(tasks repository.TaskRepository, loc *time.Location, logger *zap.Logger) *UseCase {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:  tasks,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// Location is the zone every view is bucketed in.
func (uc *UseCase) Location() *time.Location {
	return uc.loc
}

func (uc *UseCase) Month(ctx context.Context, p ViewParams) (calendar.MonthView, error) {
	scheduled, _, err := uc.entries(ctx, p.UserID)
	if err != nil {
		return calendar.MonthView{}, err
	}
	ref := uc.reference(p.Date)
	return calendar.Month(scheduled, ref.Year(), ref.Month(), uc.loc), nil
}

func (uc *UseCase) Week(ctx context.Context, p ViewParams) (calendar.WeekView, error) {
	scheduled, _, err := uc.entries(ctx, p.UserID)
	if err != nil {
		return calendar.WeekView{}, err
	}
	return calendar.Week(scheduled, uc.reference(p.Date), uc.loc), nil
}

func (uc *UseCase) Day(ctx context.Context, p ViewParams) (calendar.DayView, error) {
	scheduled, _, err := uc.entries(ctx, p.UserID)
	if err != nil {
		return calendar.DayView{}, err
	}
	return calendar.Day(scheduled, uc.reference(p.Date), uc.loc), nil
}

func (uc *UseCase) Timeline(ctx context.Context, p ViewParams) ([]calendar.Bucket, error) {
	scheduled, _, err := uc.entries(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	buckets := calendar.Timeline(scheduled, uc.loc)
	if buckets == nil {
		buckets = []calendar.Bucket{}
	}
	return buckets, nil
}

func (uc *UseCase) Unscheduled(ctx context.Context, p ViewParams) ([]calendar.Entry, error) {
	tasks, err := uc.snapshot(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return calendar.Unscheduled(tasks), nil
}

func (uc *UseCase) Trend(ctx context.Context, p TrendParams) (trend.Series, error) {
	if p.Granularity.Buckets() == 0 {
		return trend.Series{}, domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("unknown granularity %q", p.Granularity))
	}
	tasks, err := uc.snapshot(ctx, p.UserID)
	if err != nil {
		return trend.Series{}, err
	}
	return trend.Build(tasks, p.Granularity, uc.now().In(uc.loc)), nil
}

func (uc *UseCase) Trends(ctx context.Context, userID string) (map[trend.Granularity]trend.Series, error) {
	tasks, err := uc.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return trend.BuildAll(tasks, uc.now().In(uc.loc)), nil
}

// Register exposes every view and trend as a dispatcher query.
func (uc *UseCase) Register(d *usecase.Dispatcher) {
	d.RegisterQuery(QueryMonth, viewQuery(uc.Month))
	d.RegisterQuery(QueryWeek, viewQuery(uc.Week))
	d.RegisterQuery(QueryDay, viewQuery(uc.Day))
	d.RegisterQuery(QueryTimeline, viewQuery(uc.Timeline))
	d.RegisterQuery(QueryUnscheduled, viewQuery(uc.Unscheduled))
	d.RegisterQuery(QueryTrend, func(ctx context.Context, params interface{}) (interface{}, error) {
		p, ok := params.(TrendParams)
		if !ok {
			return nil, domain.ErrInvalidPayload
		}
		return uc.Trend(ctx, p)
	})
	d.RegisterQuery(QueryTrendsAll, func(ctx context.Context, params interface{}) (interface{}, error) {
		p, ok := params.(TrendParams)
		if !ok {
			return nil, domain.ErrInvalidPayload
		}
		return uc.Trends(ctx, p.UserID)
	})
}

func viewQuery[T any](fn func(context.Context, ViewParams) (T, error)) usecase.QueryHandler {
	return func(ctx context.Context, params interface{}) (interface{}, error) {
		p, ok := params.(ViewParams)
		if !ok {
			return nil, domain.ErrInvalidPayload
		}
		return fn(ctx, p)
	}
}

func (uc *UseCase) reference(date time.Time) time.Time {
	if date.IsZero() {
		return uc.now().In(uc.loc)
	}
	return date.In(uc.loc)
}

func (uc *UseCase) entries(ctx context.Context, userID string) (scheduled, unscheduled []calendar.Entry, err error) {
	tasks, err := uc.snapshot(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	scheduled, unscheduled = calendar.Flatten(tasks)
	return scheduled, unscheduled, nil
}

func (uc *UseCase) snapshot(ctx context.Context, userID string) ([]domain.Task, error) {
	tasks, err := uc.tasks.List(ctx, repository.TaskFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	uc.logger.Debug("insight snapshot loaded", zap.String("user_id", userID), zap.Int("tasks", len(tasks)))
	return progress.SyncAll(tasks), nil
}
