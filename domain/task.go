package domain

import (
	"math"
	"strings"
	"time"
)

// Priority ranks a task for display and advisory prompts.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority normalizes a priority string; unknown values fall back to medium.
func ParsePriority(value string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(value))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// Task represents a user-owned unit of work, optionally decomposed into ordered subtasks.
// Status and Progress are derived; see internal/progress.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Priority    Priority   `json:"priority"`
	Completed   bool       `json:"completed"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Subtasks    []Subtask  `json:"subtasks"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Subtask is an ordered, independently completable child of a task.
type Subtask struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"task_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Order       int        `json:"order"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DisplayTitle falls back to the description for subtasks stored before titles existed.
func (s Subtask) DisplayTitle() string {
	if strings.TrimSpace(s.Title) != "" {
		return s.Title
	}
	return s.Description
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == StatusCompleted
}

func (t *Task) HasSubtasks() bool {
	return t != nil && len(t.Subtasks) > 0
}

// CompletedSubtasks counts finished subtasks.
func (t *Task) CompletedSubtasks() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, s := range t.Subtasks {
		if s.Completed {
			n++
		}
	}
	return n
}

// SubtaskIndex returns the position of the subtask with the given id, or -1.
func (t *Task) SubtaskIndex(id string) int {
	if t == nil {
		return -1
	}
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			return i
		}
	}
	return -1
}

// NextOrder returns the order index for a newly appended subtask.
func (t *Task) NextOrder() int {
	if t == nil {
		return 0
	}
	next := len(t.Subtasks)
	for _, s := range t.Subtasks {
		if s.Order >= next {
			next = s.Order + 1
		}
	}
	return next
}

// Validate checks structural invariants: subtasks belong to this task and
// order indices are unique.
func (t *Task) Validate() error {
	if t == nil {
		return ErrInvalidPayload
	}
	if strings.TrimSpace(t.Title) == "" {
		return NewError(ErrCodeInvalid, "task title is required")
	}
	seen := make(map[int]struct{}, len(t.Subtasks))
	for _, s := range t.Subtasks {
		if s.TaskID != "" && t.ID != "" && s.TaskID != t.ID {
			return NewError(ErrCodeInvalid, "subtask belongs to another task")
		}
		if _, dup := seen[s.Order]; dup {
			return ErrDuplicateOrder
		}
		seen[s.Order] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy so snapshot transformations never alias their input.
func (t Task) Clone() Task {
	out := t
	if t.Deadline != nil {
		d := *t.Deadline
		out.Deadline = &d
	}
	if t.Subtasks != nil {
		out.Subtasks = make([]Subtask, len(t.Subtasks))
		for i, s := range t.Subtasks {
			if s.Deadline != nil {
				d := *s.Deadline
				s.Deadline = &d
			}
			out.Subtasks[i] = s
		}
	}
	return out
}

// ProgressPercent computes round(completed/total*100); with no subtasks the
// explicit completion flag decides between 0 and 100.
func ProgressPercent(completed, total int, explicit bool) int {
	if total <= 0 {
		if explicit {
			return 100
		}
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// TaskPatch is a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	ClearDeadline bool       `json:"clear_deadline,omitempty"`
	Priority      *Priority  `json:"priority,omitempty"`
	Completed     *bool      `json:"completed,omitempty"`
	Status        *Status    `json:"status,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Deadline == nil && !p.ClearDeadline &&
		p.Priority == nil && p.Completed == nil && p.Status == nil
}

// SubtaskPatch is a partial subtask update; nil fields are left untouched.
type SubtaskPatch struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Completed     *bool      `json:"completed,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	ClearDeadline bool       `json:"clear_deadline,omitempty"`
	Order         *int       `json:"order,omitempty"`
}

func (p SubtaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil &&
		p.Deadline == nil && !p.ClearDeadline && p.Order == nil
}

// Apply copies the patch onto the task, leaving timestamps alone.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.ClearDeadline {
		t.Deadline = nil
	} else if p.Deadline != nil {
		d := *p.Deadline
		t.Deadline = &d
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
}

// Apply copies the patch onto the subtask, leaving timestamps alone.
func (p SubtaskPatch) Apply(s *Subtask) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.Completed != nil {
		s.Completed = *p.Completed
	}
	if p.ClearDeadline {
		s.Deadline = nil
	} else if p.Deadline != nil {
		d := *p.Deadline
		s.Deadline = &d
	}
	if p.Order != nil {
		s.Order = *p.Order
	}
}
