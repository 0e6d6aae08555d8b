// Package calendar buckets deadlined tasks and subtasks into month, week, day
// and timeline views. All functions are pure and work in a caller-supplied
// location; items without a usable deadline never land in a bucket.
package calendar

import (
	"sort"
	"time"

	"github.com/fastygo/taskpulse/domain"
)

type Kind string

const (
	KindTask    Kind = "task"
	KindSubtask Kind = "subtask"
)

// Entry is one schedulable item flattened out of the task snapshot.
type Entry struct {
	Kind      Kind            `json:"kind"`
	TaskID    string          `json:"task_id"`
	SubtaskID string          `json:"subtask_id,omitempty"`
	Title     string          `json:"title"`
	Priority  domain.Priority `json:"priority"`
	Completed bool            `json:"completed"`
	Deadline  *time.Time      `json:"deadline,omitempty"`
}

func (e Entry) scheduled() bool {
	return e.Deadline != nil && !e.Deadline.IsZero()
}

// Flatten splits the snapshot into entries with a deadline and the rest.
// Subtasks inherit their parent's priority.
func Flatten(tasks []domain.Task) (scheduled, unscheduled []Entry) {
	add := func(e Entry) {
		if e.scheduled() {
			scheduled = append(scheduled, e)
			return
		}
		unscheduled = append(unscheduled, e)
	}
	for _, t := range tasks {
		add(Entry{
			Kind:      KindTask,
			TaskID:    t.ID,
			Title:     t.Title,
			Priority:  t.Priority,
			Completed: t.Completed,
			Deadline:  t.Deadline,
		})
		for _, s := range t.Subtasks {
			add(Entry{
				Kind:      KindSubtask,
				TaskID:    t.ID,
				SubtaskID: s.ID,
				Title:     s.DisplayTitle(),
				Priority:  t.Priority,
				Completed: s.Completed,
				Deadline:  s.Deadline,
			})
		}
	}
	sortEntries(unscheduled)
	return scheduled, unscheduled
}

// Unscheduled lists the items that are excluded from every bucketed view.
func Unscheduled(tasks []domain.Task) []Entry {
	_, out := Flatten(tasks)
	if out == nil {
		out = []Entry{}
	}
	return out
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.scheduled() && b.scheduled() && !a.Deadline.Equal(*b.Deadline) {
			return a.Deadline.Before(*b.Deadline)
		}
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		return a.SubtaskID < b.SubtaskID
	})
}

// dateOf truncates t to its calendar date in loc.
func dateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func addDays(d time.Time, n int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day()+n, 0, 0, 0, 0, d.Location())
}

// sundayOnOrBefore returns the Sunday starting the week that contains d.
func sundayOnOrBefore(d time.Time) time.Time {
	return addDays(d, -int(d.Weekday()))
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
