package insight

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/calendar"
	"github.com/fastygo/taskpulse/internal/trend"
	"github.com/fastygo/taskpulse/repository/memory"
	"github.com/fastygo/taskpulse/usecase"
)

var now = time.Date(2024, time.February, 14, 15, 30, 0, 0, time.UTC)

func at(day, hour int) *time.Time {
	t := time.Date(2024, time.February, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func seed(t *testing.T) *UseCase {
	t.Helper()
	ctx := context.Background()
	repo := memory.NewTaskRepo()

	_, err := repo.Create(ctx, &domain.Task{
		ID: "t1", UserID: "u1", Title: "Report", Deadline: at(14, 9),
		Subtasks: []domain.Subtask{
			{ID: "s1", Title: "Draft", Deadline: at(12, 18), Completed: true, Order: 0},
			{ID: "s2", Title: "Review", Order: 1},
		},
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.Task{ID: "t2", UserID: "u1", Title: "Someday"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.Task{ID: "t3", UserID: "u2", Title: "Not mine", Deadline: at(14, 10)})
	require.NoError(t, err)

	uc := New(repo, time.UTC, nil)
	uc.now = func() time.Time { return now }
	return uc
}

func TestViews(t *testing.T) {
	ctx := context.Background()
	uc := seed(t)

	month, err := uc.Month(ctx, ViewParams{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 4, month.LeadingBlanks, "Feb 1 2024 is a Thursday")
	assert.Equal(t, 33, month.TotalCells())
	assert.Len(t, month.Days[13].Entries, 1)
	assert.Len(t, month.Days[11].Entries, 1)

	week, err := uc.Week(ctx, ViewParams{UserID: "u1", Date: *at(14, 0)})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.February, 11, 0, 0, 0, 0, time.UTC), week.Start)

	day, err := uc.Day(ctx, ViewParams{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, day.Slots, 24)
	require.Len(t, day.Slots[9].Entries, 1)
	assert.Equal(t, "t1", day.Slots[9].Entries[0].TaskID)

	timeline, err := uc.Timeline(ctx, ViewParams{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Len(t, timeline[0].Entries, 2)

	unscheduled, err := uc.Unscheduled(ctx, ViewParams{UserID: "u1"})
	require.NoError(t, err)
	kinds := map[calendar.Kind]int{}
	for _, e := range unscheduled {
		kinds[e.Kind]++
	}
	assert.Equal(t, map[calendar.Kind]int{calendar.KindTask: 1, calendar.KindSubtask: 1}, kinds)
}

func TestTrendsThroughDispatcher(t *testing.T) {
	ctx := context.Background()
	uc := seed(t)
	d := usecase.NewDispatcher()
	uc.Register(d)

	out, err := d.ExecuteQuery(ctx, QueryTrend, TrendParams{UserID: "u1", Granularity: trend.Year})
	require.NoError(t, err)
	series, ok := out.(trend.Series)
	require.True(t, ok)
	assert.Len(t, series.Tasks, 12)
	assert.Equal(t, 0, sum(series.Tasks), "no task is completed yet")

	_, err = d.ExecuteQuery(ctx, QueryTrend, TrendParams{UserID: "u1", Granularity: "decade"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = d.ExecuteQuery(ctx, QueryMonth, "not params")
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	all, err := d.ExecuteQuery(ctx, QueryTrendsAll, TrendParams{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, all, len(trend.Granularities))

	view, err := d.ExecuteQuery(ctx, QueryDay, ViewParams{UserID: "u1"})
	require.NoError(t, err)
	assert.IsType(t, calendar.DayView{}, view)
}

func sum(in []int) int {
	n := 0
	for _, v := range in {
		n += v
	}
	return n
}
