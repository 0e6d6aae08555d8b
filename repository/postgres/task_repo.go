package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/repository"
)

const uniqueViolation = "23505"

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

const taskColumns = `id, user_id, title, description, deadline, priority, completed, status, created_at, updated_at`

const subtaskColumns = `id, task_id, title, description, completed, deadline, position, created_at, updated_at`

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	subtasks, err := r.loadSubtasks(ctx, []string{task.ID})
	if err != nil {
		return nil, err
	}
	task.Subtasks = nonNilSubtasks(subtasks[task.ID])
	return task, nil
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	query := `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE ($1 = '' OR user_id = $1)
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, filter.UserID, clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		tasks []domain.Task
		ids   []string
	)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
		ids = append(ids, task.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subtasks, err := r.loadSubtasks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Subtasks = nonNilSubtasks(subtasks[tasks[i].ID])
	}
	return tasks, nil
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Priority == "" {
		task.Priority = domain.PriorityMedium
	}
	if task.Status == "" {
		task.Status = domain.StatusPending
	}
	for i := range task.Subtasks {
		task.Subtasks[i].TaskID = task.ID
		if task.Subtasks[i].ID == "" {
			task.Subtasks[i].ID = uuid.NewString()
		}
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insertTask = `
		INSERT INTO tasks (id, user_id, title, description, deadline, priority, completed, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
		`
		if err := tx.QueryRow(ctx, insertTask,
			task.ID,
			task.UserID,
			task.Title,
			task.Description,
			task.Deadline,
			string(task.Priority),
			task.Completed,
			string(task.Status),
		).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
			return err
		}
		for i := range task.Subtasks {
			if err := insertSubtask(ctx, tx, &task.Subtasks[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, id string, patch domain.TaskPatch) (*domain.Task, error) {
	const query = `
	UPDATE tasks
	SET title = COALESCE($2, title),
		description = COALESCE($3, description),
		deadline = CASE WHEN $4 THEN NULL ELSE COALESCE($5, deadline) END,
		priority = COALESCE($6, priority),
		completed = COALESCE($7, completed),
		status = COALESCE($8, status),
		updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		id,
		patch.Title,
		patch.Description,
		patch.ClearDeadline,
		patch.Deadline,
		priorityArg(patch.Priority),
		patch.Completed,
		statusArg(patch.Status),
	)
	if err != nil {
		return nil, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrTaskNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes the task; subtasks go with it through ON DELETE CASCADE.
func (r *taskRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) AddSubtask(ctx context.Context, taskID string, subtask *domain.Subtask) (*domain.Task, error) {
	if subtask == nil {
		return nil, domain.ErrInvalidPayload
	}
	parent, err := r.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	subtask.TaskID = taskID
	if subtask.ID == "" {
		subtask.ID = uuid.NewString()
	}
	if subtask.Order < 0 {
		subtask.Order = parent.NextOrder()
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertSubtask(ctx, tx, subtask); err != nil {
			return err
		}
		return touchTask(ctx, tx, taskID)
	})
	if err != nil {
		return nil, translate(err)
	}
	return r.GetByID(ctx, taskID)
}

func (r *taskRepository) UpdateSubtask(ctx context.Context, taskID, subtaskID string, patch domain.SubtaskPatch) (*domain.Task, error) {
	const query = `
	UPDATE subtasks
	SET title = COALESCE($3, title),
		description = COALESCE($4, description),
		completed = COALESCE($5, completed),
		deadline = CASE WHEN $6 THEN NULL ELSE COALESCE($7, deadline) END,
		position = COALESCE($8, position),
		updated_at = NOW()
	WHERE task_id = $1 AND id = $2
	`
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query,
			taskID,
			subtaskID,
			patch.Title,
			patch.Description,
			patch.Completed,
			patch.ClearDeadline,
			patch.Deadline,
			patch.Order,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return r.missing(ctx, tx, taskID)
		}
		return touchTask(ctx, tx, taskID)
	})
	if err != nil {
		return nil, translate(err)
	}
	return r.GetByID(ctx, taskID)
}

func (r *taskRepository) DeleteSubtask(ctx context.Context, taskID, subtaskID string) (*domain.Task, error) {
	const query = `DELETE FROM subtasks WHERE task_id = $1 AND id = $2`
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, taskID, subtaskID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return r.missing(ctx, tx, taskID)
		}
		return touchTask(ctx, tx, taskID)
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, taskID)
}

// missing tells apart an unknown task from an unknown subtask.
func (r *taskRepository) missing(ctx context.Context, tx pgx.Tx, taskID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, taskID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrTaskNotFound
	}
	return domain.ErrSubtaskNotFound
}

func (r *taskRepository) loadSubtasks(ctx context.Context, taskIDs []string) (map[string][]domain.Subtask, error) {
	out := make(map[string][]domain.Subtask, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}
	query := `SELECT ` + subtaskColumns + ` FROM subtasks WHERE task_id = ANY($1) ORDER BY task_id, position`
	rows, err := r.pool.Query(ctx, query, taskIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		sub, err := scanSubtask(rows)
		if err != nil {
			return nil, err
		}
		out[sub.TaskID] = append(out[sub.TaskID], *sub)
	}
	return out, rows.Err()
}

func insertSubtask(ctx context.Context, tx pgx.Tx, sub *domain.Subtask) error {
	const query = `
	INSERT INTO subtasks (id, task_id, title, description, completed, deadline, position)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING created_at, updated_at
	`
	return tx.QueryRow(ctx, query,
		sub.ID,
		sub.TaskID,
		sub.Title,
		sub.Description,
		sub.Completed,
		sub.Deadline,
		sub.Order,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
}

func touchTask(ctx context.Context, tx pgx.Tx, taskID string) error {
	tag, err := tx.Exec(ctx, `UPDATE tasks SET updated_at = NOW() WHERE id = $1`, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task
	var (
		deadline *time.Time
		priority string
		status   string
	)

	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&deadline,
		&priority,
		&task.Completed,
		&status,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.Deadline = deadline
	task.Priority = domain.ParsePriority(priority)
	task.Status = domain.StatusFromStore(status)
	return &task, nil
}

func scanSubtask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Subtask, error) {
	var sub domain.Subtask
	if err := row.Scan(
		&sub.ID,
		&sub.TaskID,
		&sub.Title,
		&sub.Description,
		&sub.Completed,
		&sub.Deadline,
		&sub.Order,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sub.Title = sub.DisplayTitle()
	return &sub, nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrDuplicateOrder
	}
	return err
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 1000
	}
	return limit
}
