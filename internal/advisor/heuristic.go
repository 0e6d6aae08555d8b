// Package advisor implements feedback.Source backends.
package advisor

import (
	"context"
	"fmt"
	"time"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/feedback"
	"github.com/fastygo/taskpulse/internal/trend"
)

// HeuristicSource derives feedback locally from the snapshot. It is used when
// no model is configured and never fails.
type HeuristicSource struct {
	now func() time.Time
}

func NewHeuristicSource(now func() time.Time) *HeuristicSource {
	if now == nil {
		now = time.Now
	}
	return &HeuristicSource{now: now}
}

func (s *HeuristicSource) GetFeedback(ctx context.Context, userID string, tasks []domain.Task) (domain.Feedback, error) {
	now := s.now()
	var done, active, overdue, dueSoon, highOpen int
	for _, t := range tasks {
		switch t.Status {
		case domain.StatusCompleted:
			done++
			continue
		case domain.StatusInProgress:
			active++
		}
		if t.Priority == domain.PriorityHigh {
			highOpen++
		}
		if t.Deadline != nil && !t.Deadline.IsZero() {
			switch {
			case t.Deadline.Before(now):
				overdue++
			case t.Deadline.Sub(now) <= 48*time.Hour:
				dueSoon++
			}
		}
	}
	week := trend.Build(tasks, trend.Week, now)

	fb := domain.Feedback{
		UserID:      userID,
		Insights:    []string{},
		Suggestions: []string{},
	}
	switch {
	case len(tasks) == 0:
		fb.Summary = "Your list is empty. Add a task to get started."
	case done == len(tasks):
		fb.Summary = "Everything on your list is done. Nice work!"
	default:
		fb.Summary = fmt.Sprintf("You have finished %d of %d tasks; %d are underway.", done, len(tasks), active)
	}

	if n := week.Total(); n > 0 {
		fb.Insights = append(fb.Insights, fmt.Sprintf("%d items completed in the last 7 days.", n))
	}
	if overdue > 0 {
		fb.Insights = append(fb.Insights, fmt.Sprintf("%d tasks are past their deadline.", overdue))
		fb.Suggestions = append(fb.Suggestions, "Pick one overdue task and either finish it or move its deadline.")
	}
	if dueSoon > 0 {
		fb.Insights = append(fb.Insights, fmt.Sprintf("%d tasks are due within two days.", dueSoon))
	}
	if highOpen > 0 {
		fb.Suggestions = append(fb.Suggestions, "Start with your high-priority tasks while your energy is fresh.")
	}
	if active > 1 {
		fb.Suggestions = append(fb.Suggestions, "Try finishing a task that is already in progress before starting a new one.")
	}
	return fb, nil
}

var _ feedback.Source = (*HeuristicSource)(nil)
