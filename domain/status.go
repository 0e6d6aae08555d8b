package domain

import "strings"

// Status is the single completion vocabulary used inside the core.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Store-native vocabulary.
const (
	storeNeedsAction = "needsAction"
	storeCompleted   = "completed"
)

// StatusFromStore translates any status spelling seen at the store boundary.
// Unknown values are treated as pending.
func StatusFromStore(value string) Status {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(value), " ", "_")) {
	case "completed", "done":
		return StatusCompleted
	case "in_progress", "inprogress":
		return StatusInProgress
	default:
		return StatusPending
	}
}

// ToStore returns the store-native spelling, which only distinguishes
// "needsAction" from "completed".
func (s Status) ToStore() string {
	if s == StatusCompleted {
		return storeCompleted
	}
	return storeNeedsAction
}

// Label is the human-readable form.
func (s Status) Label() string {
	switch s {
	case StatusCompleted:
		return "Completed"
	case StatusInProgress:
		return "In Progress"
	default:
		return "Pending"
	}
}
