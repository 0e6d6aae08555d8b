package transport

import (
	"strings"
	"time"

	"github.com/fastygo/taskpulse/domain"
)

// Deadlines are RFC3339 instants or YYYY-MM-DD dates (end of that day).
// On create a malformed value means "no deadline"; edits reject it.

type SubtaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	Order       *int   `json:"order"`
}

type TaskCreateRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Deadline    string           `json:"deadline"`
	Priority    string           `json:"priority"`
	Subtasks    []SubtaskRequest `json:"subtasks"`
}

// TaskUpdateRequest is a partial edit. An empty or "null" deadline clears it.
type TaskUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Deadline    *string `json:"deadline"`
	Priority    *string `json:"priority"`
	Completed   *bool   `json:"completed"`
}

// Patch converts the request into a domain patch, resolving dates in loc.
func (r TaskUpdateRequest) Patch(loc *time.Location) (domain.TaskPatch, error) {
	patch := domain.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
	}
	var err error
	if patch.Deadline, patch.ClearDeadline, err = deadlineEdit(r.Deadline, loc); err != nil {
		return domain.TaskPatch{}, err
	}
	if r.Priority != nil && strings.TrimSpace(*r.Priority) != "" {
		p := domain.ParsePriority(*r.Priority)
		patch.Priority = &p
	}
	return patch, nil
}

// SubtaskUpdateRequest is a partial subtask edit with the same deadline rules.
type SubtaskUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Deadline    *string `json:"deadline"`
	Completed   *bool   `json:"completed"`
	Order       *int    `json:"order"`
}

func (r SubtaskUpdateRequest) Patch(loc *time.Location) (domain.SubtaskPatch, error) {
	patch := domain.SubtaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		Order:       r.Order,
	}
	var err error
	if patch.Deadline, patch.ClearDeadline, err = deadlineEdit(r.Deadline, loc); err != nil {
		return domain.SubtaskPatch{}, err
	}
	return patch, nil
}

func deadlineEdit(value *string, loc *time.Location) (*time.Time, bool, error) {
	if value == nil {
		return nil, false, nil
	}
	v := strings.TrimSpace(*value)
	if v == "" || strings.EqualFold(v, "null") {
		return nil, true, nil
	}
	d := domain.ParseDeadline(v, loc)
	if d == nil {
		return nil, false, domain.ErrInvalidDeadline
	}
	return d, false, nil
}
