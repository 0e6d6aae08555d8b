// Package trend builds fixed-length completion series for the analytics views.
package trend

import (
	"strings"
	"time"

	"github.com/fastygo/taskpulse/domain"
)

type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
	Year  Granularity = "year"
)

// Granularities lists every supported granularity in display order.
var Granularities = []Granularity{Day, Week, Month, Year}

var (
	dayLabels   = []string{"00", "01", "02", "03", "04", "05", "06", "07", "08", "09", "10", "11", "12", "13", "14", "15", "16", "17", "18", "19", "20", "21", "22", "23"}
	weekLabels  = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	monthLabels = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12", "13", "14", "15", "16", "17", "18", "19", "20", "21", "22", "23", "24", "25", "26", "27", "28", "29", "30"}
	yearLabels  = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
)

// ParseGranularity maps a request value onto a Granularity.
func ParseGranularity(value string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Granularities {
		if g == known {
			return g, nil
		}
	}
	return "", domain.NewError(domain.ErrCodeInvalid, "unknown granularity "+value)
}

// Buckets is the fixed series length for g.
func (g Granularity) Buckets() int {
	return len(g.Labels())
}

// Labels returns the literal label set for g. Week labels start on Monday and
// the week bucket index uses the same Monday-first basis.
func (g Granularity) Labels() []string {
	switch g {
	case Day:
		return dayLabels
	case Week:
		return weekLabels
	case Month:
		return monthLabels
	case Year:
		return yearLabels
	default:
		return nil
	}
}

// WindowStart is the earliest timestamp that still counts towards the series.
func (g Granularity) WindowStart(now time.Time) time.Time {
	switch g {
	case Day:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case Week:
		return now.AddDate(0, 0, -7)
	case Month:
		return now.AddDate(0, 0, -30)
	case Year:
		return now.AddDate(-1, 0, 0)
	default:
		return now
	}
}

// Index maps a timestamp onto a bucket. The caller discards indexes outside
// [0, Buckets()).
func (g Granularity) Index(ts time.Time) int {
	switch g {
	case Day:
		return ts.Hour()
	case Week:
		return (int(ts.Weekday()) + 6) % 7
	case Month:
		return ts.Day() - 1
	case Year:
		return int(ts.Month()) - 1
	default:
		return -1
	}
}

// Series holds the parallel task and subtask completion counts.
type Series struct {
	Granularity Granularity `json:"granularity"`
	Labels      []string    `json:"labels"`
	Tasks       []int       `json:"tasks"`
	Subtasks    []int       `json:"subtasks"`
}

// Total sums both series.
func (s Series) Total() int {
	n := 0
	for i := range s.Tasks {
		n += s.Tasks[i] + s.Subtasks[i]
	}
	return n
}

// Build counts completed tasks and subtasks whose last modification falls in
// the window for g. Timestamps are read in now's location. Build keeps no
// state between calls.
func Build(tasks []domain.Task, g Granularity, now time.Time) Series {
	n := g.Buckets()
	series := Series{
		Granularity: g,
		Labels:      append([]string(nil), g.Labels()...),
		Tasks:       make([]int, n),
		Subtasks:    make([]int, n),
	}
	if n == 0 {
		return series
	}

	start := g.WindowStart(now)
	count := func(slots []int, ts time.Time) {
		if ts.IsZero() || ts.Before(start) {
			return
		}
		if i := g.Index(ts.In(now.Location())); i >= 0 && i < n {
			slots[i]++
		}
	}

	for _, t := range tasks {
		if t.Completed {
			count(series.Tasks, t.UpdatedAt)
		}
		for _, s := range t.Subtasks {
			if s.Completed {
				count(series.Subtasks, s.UpdatedAt)
			}
		}
	}
	return series
}

// BuildAll builds one series per granularity against the same snapshot and now.
func BuildAll(tasks []domain.Task, now time.Time) map[Granularity]Series {
	out := make(map[Granularity]Series, len(Granularities))
	for _, g := range Granularities {
		out[g] = Build(tasks, g, now)
	}
	return out
}
