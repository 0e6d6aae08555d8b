// Package task orchestrates task and subtask writes: it runs the completion
// state machine over the stored task, persists the result and falls back to
// the offline buffer when the store is unreachable.
package task

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/progress"
	"github.com/fastygo/taskpulse/repository"
	"github.com/fastygo/taskpulse/usecase"
)

type UseCase struct {
	tasks  repository.TaskRepository
	buffer usecase.OperationBuffer
	logger *zap.Logger
	now    func() time.Time
}

func New(tasks repository.TaskRepository, buffer usecase.OperationBuffer, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:  tasks,
		buffer: buffer,
		logger: logger,
		now:    time.Now,
	}
}

// CreateInput describes a new task and its initial subtasks.
type CreateInput struct {
	Title       string
	Description string
	Deadline    *time.Time
	Priority    domain.Priority
	Subtasks    []SubtaskInput
}

type SubtaskInput struct {
	Title       string
	Description string
	Deadline    *time.Time
	Order       *int
}

func (uc *UseCase) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	tasks, err := uc.tasks.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return progress.SyncAll(tasks), nil
}

func (uc *UseCase) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	task, err := uc.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (uc *UseCase) CreateTask(ctx context.Context, userID string, in CreateInput) (*domain.Task, error) {
	now := uc.now()
	task := &domain.Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Deadline:    in.Deadline,
		Priority:    in.Priority,
		Subtasks:    make([]domain.Subtask, 0, len(in.Subtasks)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Priority == "" {
		task.Priority = domain.PriorityMedium
	}
	for i, s := range in.Subtasks {
		order := i
		if s.Order != nil {
			order = *s.Order
		}
		task.Subtasks = append(task.Subtasks, domain.Subtask{
			ID:          uuid.NewString(),
			TaskID:      task.ID,
			Title:       s.Title,
			Description: s.Description,
			Deadline:    s.Deadline,
			Order:       order,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	progress.Sync(task)
	if err := task.Validate(); err != nil {
		return nil, err
	}

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		if uc.shouldBuffer(ctx, err, usecase.OperationCreate, task, "", task) {
			return task, nil
		}
		return nil, err
	}
	progress.Sync(created)
	uc.logger.Debug("task created", zap.String("task_id", created.ID), zap.Int("subtasks", len(created.Subtasks)))
	return created, nil
}

// UpdateTask applies a field edit. Setting completion directly is only allowed
// on tasks without subtasks; status is recomputed and persisted with the edit.
func (uc *UseCase) UpdateTask(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	current, err := uc.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, domain.NewError(domain.ErrCodeInvalid, "task title is required")
		}
		patch.Title = &title
	}
	if patch.Completed != nil && current.HasSubtasks() {
		return nil, domain.ErrTaskHasSubtasks
	}
	patch.Status = nil

	next := current.Clone()
	patch.Apply(&next)
	progress.Recompute(&next)
	if next.Status != current.Status {
		status := next.Status
		patch.Status = &status
	}
	if patch.Empty() {
		return current, nil
	}

	updated, err := uc.tasks.Update(ctx, id, patch)
	if err != nil {
		if uc.shouldBuffer(ctx, err, usecase.OperationUpdate, current, "", patch) {
			next.UpdatedAt = uc.now()
			return &next, nil
		}
		return nil, err
	}
	progress.Sync(updated)
	return updated, nil
}

func (uc *UseCase) DeleteTask(ctx context.Context, userID, id string) error {
	current, err := uc.load(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := uc.tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return err
		}
		if uc.shouldBuffer(ctx, err, usecase.OperationDelete, current, "", nil) {
			return nil
		}
		return err
	}
	return nil
}

// ToggleTask flips completion on a task without subtasks.
func (uc *UseCase) ToggleTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	current, err := uc.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	snapshot, err := progress.ToggleTaskCompletion([]domain.Task{*current}, id, uc.now())
	if err != nil {
		return nil, err
	}
	next := snapshot[0]

	patch := domain.TaskPatch{Completed: &next.Completed, Status: &next.Status}
	updated, err := uc.tasks.Update(ctx, id, patch)
	if err != nil {
		if uc.shouldBuffer(ctx, err, usecase.OperationUpdate, current, "", patch) {
			return &next, nil
		}
		return nil, err
	}
	progress.Sync(updated)
	uc.logger.Debug("task toggled", zap.String("task_id", id), zap.String("status", string(updated.Status)))
	return updated, nil
}

// ToggleSubtask flips one subtask and persists the parent's derived state.
func (uc *UseCase) ToggleSubtask(ctx context.Context, userID, taskID, subtaskID string) (*domain.Task, error) {
	current, err := uc.load(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	snapshot, err := progress.ToggleSubtask([]domain.Task{*current}, taskID, subtaskID, uc.now())
	if err != nil {
		return nil, err
	}
	next := snapshot[0]
	completed := next.Subtasks[next.SubtaskIndex(subtaskID)].Completed

	subPatch := domain.SubtaskPatch{Completed: &completed}
	stored, err := uc.tasks.UpdateSubtask(ctx, taskID, subtaskID, subPatch)
	if err != nil {
		if uc.shouldBuffer(ctx, err, usecase.OperationUpdate, current, subtaskID, subPatch) {
			uc.bufferDerived(ctx, current, &next)
			return &next, nil
		}
		return nil, err
	}

	stored.Status = next.Status
	progress.Sync(stored)
	return uc.persistDerived(ctx, current, stored)
}

// AddSubtask appends a subtask; its order defaults to the next free index.
func (uc *UseCase) AddSubtask(ctx context.Context, userID, taskID string, in SubtaskInput) (*domain.Task, error) {
	current, err := uc.load(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.Description) == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "subtask title is required")
	}

	now := uc.now()
	sub := &domain.Subtask{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		Title:       in.Title,
		Description: in.Description,
		Deadline:    in.Deadline,
		Order:       current.NextOrder(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Order != nil {
		sub.Order = *in.Order
	}

	next := current.Clone()
	next.Subtasks = append(next.Subtasks, *sub)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	progress.Recompute(&next)

	stored, err := uc.tasks.AddSubtask(ctx, taskID, sub)
	if err != nil {
		if uc.shouldBuffer(ctx, err, usecase.OperationCreate, current, sub.ID, sub) {
			uc.bufferDerived(ctx, current, &next)
			return &next, nil
		}
		return nil, err
	}
	progress.Recompute(stored)
	return uc.persistDerived(ctx, current, stored)
}

// UpdateSubtask edits subtask fields. A completion change takes the same
// transition as ToggleSubtask; any other edit recomputes the parent from its
// subtasks.
func (uc *UseCase) UpdateSubtask(ctx context.Context, userID, taskID, subtaskID string, patch domain.SubtaskPatch) (*domain.Task, error) {
	current, err := uc.load(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	i := current.SubtaskIndex(subtaskID)
	if i < 0 {
		return nil, domain.ErrSubtaskNotFound
	}
	sub := current.Subtasks[i]

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		description := sub.Description
		if patch.Description != nil {
			description = *patch.Description
		}
		if title == "" && strings.TrimSpace(description) == "" {
			return nil, domain.NewError(domain.ErrCodeInvalid, "subtask title is required")
		}
		patch.Title = &title
	}
	if patch.Completed != nil && *patch.Completed == sub.Completed {
		patch.Completed = nil
	}
	if patch.Empty() {
		return current, nil
	}

	next := current.Clone()
	if patch.Completed != nil {
		snapshot, err := progress.ToggleSubtask([]domain.Task{*current}, taskID, subtaskID, uc.now())
		if err != nil {
			return nil, err
		}
		next = snapshot[0]
	}
	fields := patch
	fields.Completed = nil
	fields.Apply(&next.Subtasks[i])
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if patch.Completed == nil {
		progress.Recompute(&next)
	}

	stored, err := uc.tasks.UpdateSubtask(ctx, taskID, subtaskID, patch)
	if err != nil {
		if uc.shouldBuffer(ctx, err, usecase.OperationUpdate, current, subtaskID, patch) {
			uc.bufferDerived(ctx, current, &next)
			return &next, nil
		}
		return nil, err
	}

	stored.Status = next.Status
	progress.Sync(stored)
	return uc.persistDerived(ctx, current, stored)
}

func (uc *UseCase) DeleteSubtask(ctx context.Context, userID, taskID, subtaskID string) (*domain.Task, error) {
	current, err := uc.load(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	i := current.SubtaskIndex(subtaskID)
	if i < 0 {
		return nil, domain.ErrSubtaskNotFound
	}

	next := current.Clone()
	next.Subtasks = append(next.Subtasks[:i], next.Subtasks[i+1:]...)
	progress.Recompute(&next)

	stored, err := uc.tasks.DeleteSubtask(ctx, taskID, subtaskID)
	if err != nil {
		if uc.shouldBuffer(ctx, err, usecase.OperationDelete, current, subtaskID, nil) {
			uc.bufferDerived(ctx, current, &next)
			return &next, nil
		}
		return nil, err
	}
	progress.Recompute(stored)
	return uc.persistDerived(ctx, current, stored)
}

func (uc *UseCase) load(ctx context.Context, userID, id string) (*domain.Task, error) {
	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != "" && task.UserID != userID {
		return nil, domain.ErrTaskForbidden
	}
	progress.Sync(task)
	return task, nil
}

// persistDerived writes status and completion back when a subtask change moved them.
func (uc *UseCase) persistDerived(ctx context.Context, before, after *domain.Task) (*domain.Task, error) {
	patch, changed := derivedPatch(before, after)
	if !changed {
		return after, nil
	}
	updated, err := uc.tasks.Update(ctx, after.ID, patch)
	if err != nil {
		if uc.shouldBuffer(ctx, err, usecase.OperationUpdate, after, "", patch) {
			return after, nil
		}
		return nil, err
	}
	updated.Status = after.Status
	progress.Sync(updated)
	return updated, nil
}

func (uc *UseCase) bufferDerived(ctx context.Context, before, after *domain.Task) {
	if patch, changed := derivedPatch(before, after); changed {
		uc.shouldBuffer(ctx, nil, usecase.OperationUpdate, after, "", patch)
	}
}

func derivedPatch(before, after *domain.Task) (domain.TaskPatch, bool) {
	if before.Status == after.Status && before.Completed == after.Completed {
		return domain.TaskPatch{}, false
	}
	status, completed := after.Status, after.Completed
	return domain.TaskPatch{Status: &status, Completed: &completed}, true
}

// shouldBuffer queues the write when the store failed for infrastructure reasons.
// Domain rejections are never buffered.
func (uc *UseCase) shouldBuffer(ctx context.Context, cause error, operation string, task *domain.Task, subtaskID string, payload interface{}) bool {
	if uc.buffer == nil || task == nil {
		return false
	}
	var dErr *domain.Error
	if errors.As(cause, &dErr) {
		return false
	}

	var err error
	if subtaskID != "" {
		err = uc.buffer.BufferSubtask(ctx, operation, task.UserID, task.ID, subtaskID, payload)
	} else {
		err = uc.buffer.BufferTask(ctx, operation, task.UserID, task.ID, payload)
	}
	if err != nil {
		uc.logger.Error("failed to buffer task operation",
			zap.String("operation", operation),
			zap.String("task_id", task.ID),
			zap.Error(err))
		return false
	}
	uc.logger.Warn("task operation buffered",
		zap.String("operation", operation),
		zap.String("task_id", task.ID),
		zap.String("subtask_id", subtaskID))
	return true
}
