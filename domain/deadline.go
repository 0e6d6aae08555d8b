package domain

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDeadline accepts RFC3339 timestamps or bare dates. A bare date means the
// end of that day in loc. Empty or malformed input yields nil (no deadline).
func ParseDeadline(value string, loc *time.Location) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "null") {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if strings.Contains(value, "T") {
		if parsed, err := time.Parse(time.RFC3339, value); err == nil {
			return &parsed
		}
		if parsed, err := time.ParseInLocation("2006-01-02T15:04:05", value, loc); err == nil {
			return &parsed
		}
		return nil
	}
	day, err := time.ParseInLocation(dateLayout, value, loc)
	if err != nil {
		return nil
	}
	end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, loc)
	return &end
}

// DeadlineContext describes how far away a deadline is, in whole days.
func DeadlineContext(deadline *time.Time, now time.Time) string {
	if deadline == nil || deadline.IsZero() {
		return ""
	}
	days := int(deadline.Sub(now).Hours() / 24)
	switch {
	case deadline.Before(now):
		return "This task is past its deadline."
	case days == 0:
		return "This task is due today."
	case days == 1:
		return "This task is due tomorrow."
	default:
		return fmt.Sprintf("This task is due in %d days.", days)
	}
}
