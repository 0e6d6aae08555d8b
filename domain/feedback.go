package domain

import (
	"strings"
	"time"
)

// unavailableMarker is how the advisory backend reports that it is down
// without failing the transport.
const unavailableMarker = "service unavailable"

// Feedback is the advisory summary produced for a user's task list.
type Feedback struct {
	UserID      string    `json:"user_id,omitempty"`
	Summary     string    `json:"summary"`
	Insights    []string  `json:"insights"`
	Suggestions []string  `json:"suggestions"`
	FetchedAt   time.Time `json:"fetched_at,omitempty"`
}

// SignalsUnavailable reports whether the payload is the backend's soft-error form.
func (f Feedback) SignalsUnavailable() bool {
	return strings.Contains(strings.ToLower(f.Summary), unavailableMarker)
}

// UnavailableFeedback builds the soft-error payload.
func UnavailableFeedback(reason string) Feedback {
	summary := "Advisory service unavailable"
	if reason != "" {
		summary += ": " + reason
	}
	return Feedback{Summary: summary}
}
