package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/repository"
)

// TaskRepo keeps tasks in process memory. It backs STORE_DRIVER=memory and the
// use case tests.
type TaskRepo struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
	now   func() time.Time
}

func NewTaskRepo() *TaskRepo {
	return &TaskRepo{
		tasks: make(map[string]domain.Task),
		now:   time.Now,
	}
}

var _ repository.TaskRepository = (*TaskRepo)(nil)

func (r *TaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	out := t.Clone()
	return &out, nil
}

func (r *TaskRepo) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	_ = ctx

	r.mu.RLock()
	out := make([]domain.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if filter.UserID != "" && t.UserID != filter.UserID {
			continue
		}
		out = append(out, t.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []domain.Task{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	_ = ctx
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}

	now := r.now()
	t := task.Clone()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	if t.Status == "" {
		t.Status = domain.StatusPending
	}
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Subtasks == nil {
		t.Subtasks = []domain.Subtask{}
	}
	for i := range t.Subtasks {
		s := &t.Subtasks[i]
		s.TaskID = t.ID
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.CreatedAt, s.UpdatedAt = now, now
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[t.ID]; exists {
		return nil, domain.NewError(domain.ErrCodeConflict, "task already exists")
	}
	r.tasks[t.ID] = t
	out := t.Clone()
	return &out, nil
}

func (r *TaskRepo) Update(ctx context.Context, id string, patch domain.TaskPatch) (*domain.Task, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	t = t.Clone()
	patch.Apply(&t)
	t.UpdatedAt = r.now()
	r.tasks[id] = t
	out := t.Clone()
	return &out, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *TaskRepo) AddSubtask(ctx context.Context, taskID string, subtask *domain.Subtask) (*domain.Task, error) {
	_ = ctx
	if subtask == nil {
		return nil, domain.ErrInvalidPayload
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	t = t.Clone()

	now := r.now()
	s := *subtask
	s.TaskID = taskID
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Order < 0 {
		s.Order = t.NextOrder()
	}
	s.CreatedAt, s.UpdatedAt = now, now

	t.Subtasks = append(t.Subtasks, s)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	sortSubtasks(t.Subtasks)
	t.UpdatedAt = now
	r.tasks[taskID] = t
	out := t.Clone()
	return &out, nil
}

func (r *TaskRepo) UpdateSubtask(ctx context.Context, taskID, subtaskID string, patch domain.SubtaskPatch) (*domain.Task, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	t = t.Clone()
	i := t.SubtaskIndex(subtaskID)
	if i < 0 {
		return nil, domain.ErrSubtaskNotFound
	}

	now := r.now()
	patch.Apply(&t.Subtasks[i])
	t.Subtasks[i].UpdatedAt = now
	if err := t.Validate(); err != nil {
		return nil, err
	}
	sortSubtasks(t.Subtasks)
	t.UpdatedAt = now
	r.tasks[taskID] = t
	out := t.Clone()
	return &out, nil
}

func (r *TaskRepo) DeleteSubtask(ctx context.Context, taskID, subtaskID string) (*domain.Task, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	t = t.Clone()
	i := t.SubtaskIndex(subtaskID)
	if i < 0 {
		return nil, domain.ErrSubtaskNotFound
	}
	t.Subtasks = append(t.Subtasks[:i], t.Subtasks[i+1:]...)
	t.UpdatedAt = r.now()
	r.tasks[taskID] = t
	out := t.Clone()
	return &out, nil
}

func sortSubtasks(subs []domain.Subtask) {
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].Order < subs[j].Order })
}
