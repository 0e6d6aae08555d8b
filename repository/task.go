package repository

import (
	"context"

	"github.com/fastygo/taskpulse/domain"
)

type TaskFilter struct {
	UserID string
	Limit  int
	Offset int
}

// TaskRepository is the task store. Every subtask mutation returns the full
// parent task so callers can resync derived fields without a re-fetch.
// AddSubtask appends at the next free order index when the subtask's order is negative.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, id string, patch domain.TaskPatch) (*domain.Task, error)
	Delete(ctx context.Context, id string) error

	AddSubtask(ctx context.Context, taskID string, subtask *domain.Subtask) (*domain.Task, error)
	UpdateSubtask(ctx context.Context, taskID, subtaskID string, patch domain.SubtaskPatch) (*domain.Task, error)
	DeleteSubtask(ctx context.Context, taskID, subtaskID string) (*domain.Task, error)
}
