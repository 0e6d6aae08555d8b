// Package progress derives task completion state from subtask state.
//
// Every function here works on snapshots: the input slice is never mutated and
// a failed transition returns the original snapshot untouched.
package progress

import (
	"time"

	"github.com/fastygo/taskpulse/domain"
)

// Resolve returns the status implied by the subtask counts. A task without
// subtasks is either pending or completed according to its explicit flag.
func Resolve(completed, total int, explicit bool) domain.Status {
	switch {
	case total <= 0 && explicit:
		return domain.StatusCompleted
	case total <= 0:
		return domain.StatusPending
	case completed >= total:
		return domain.StatusCompleted
	case completed > 0:
		return domain.StatusInProgress
	default:
		return domain.StatusPending
	}
}

// Sync recomputes Status, Progress and, for tasks with subtasks, Completed,
// for a task read back from the store. A stored InProgress with nothing done
// is kept: only un-checking the last finished subtask of a completed task
// persists that state, and any later structural edit goes through Recompute.
func Sync(task *domain.Task) {
	if task == nil {
		return
	}
	prev := task.Status
	apply(task)
	if task.HasSubtasks() && task.Status == domain.StatusPending && prev == domain.StatusInProgress {
		task.Status = domain.StatusInProgress
	}
}

// Recompute derives Status, Progress and Completed from the subtasks alone.
// The previous status is ignored.
func Recompute(task *domain.Task) {
	if task == nil {
		return
	}
	apply(task)
}

func apply(task *domain.Task) {
	total := len(task.Subtasks)
	done := task.CompletedSubtasks()
	if total > 0 {
		task.Completed = done == total
	}
	task.Progress = domain.ProgressPercent(done, total, task.Completed)
	task.Status = Resolve(done, total, task.Completed)
}

// SyncAll returns a copy of the snapshot with derived fields recomputed.
func SyncAll(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
		Sync(&out[i])
	}
	return out
}

// ToggleSubtask flips one subtask and cascades the change into its parent.
// Un-checking a subtask of a completed task always lands in InProgress, even
// when no other subtask is done; no earlier status is ever restored.
func ToggleSubtask(tasks []domain.Task, taskID, subtaskID string, now time.Time) ([]domain.Task, error) {
	ti := indexOf(tasks, taskID)
	if ti < 0 {
		return tasks, domain.ErrTaskNotFound
	}
	si := tasks[ti].SubtaskIndex(subtaskID)
	if si < 0 {
		return tasks, domain.ErrSubtaskNotFound
	}

	out := cloneSnapshot(tasks)
	task := &out[ti]
	Sync(task)
	wasCompleted := task.Status == domain.StatusCompleted

	sub := &task.Subtasks[si]
	sub.Completed = !sub.Completed
	sub.UpdatedAt = now
	task.UpdatedAt = now
	apply(task)
	if wasCompleted && task.Status != domain.StatusCompleted {
		task.Status = domain.StatusInProgress
	}
	return out, nil
}

// ToggleTaskCompletion flips a task that has no subtasks between Pending and
// Completed. Tasks with subtasks are reported as not found for this operation.
func ToggleTaskCompletion(tasks []domain.Task, taskID string, now time.Time) ([]domain.Task, error) {
	ti := indexOf(tasks, taskID)
	if ti < 0 {
		return tasks, domain.ErrTaskNotFound
	}
	if tasks[ti].HasSubtasks() {
		return tasks, domain.ErrTaskHasSubtasks
	}

	out := cloneSnapshot(tasks)
	task := &out[ti]
	task.Completed = !task.Completed
	task.UpdatedAt = now
	apply(task)
	return out, nil
}

// Find returns the task with the given id from a snapshot.
func Find(tasks []domain.Task, taskID string) (*domain.Task, bool) {
	i := indexOf(tasks, taskID)
	if i < 0 {
		return nil, false
	}
	return &tasks[i], true
}

func indexOf(tasks []domain.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneSnapshot(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}
