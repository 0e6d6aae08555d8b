package postgres

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/repository"
)

// Set TASKPULSE_TEST_DATABASE_URL to a disposable database to run these tests.
// The schema is recreated from assets/migrations on every run.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TASKPULSE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TASKPULSE_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	if err := pool.Ping(ctx); err != nil {
		t.Skipf("postgres not reachable: %v", err)
	}

	migrations := filepath.Join("..", "..", "assets", "migrations")
	down, err := os.ReadFile(filepath.Join(migrations, "000001_init.down.sql"))
	require.NoError(t, err)
	up, err := os.ReadFile(filepath.Join(migrations, "000001_init.up.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(down))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(up))
	require.NoError(t, err)
	return pool
}

func TestTaskRepository_RoundTrip(t *testing.T) {
	pool := newTestPool(t)
	repo := NewTaskRepository(pool)
	ctx := context.Background()

	deadline := time.Date(2024, time.February, 14, 23, 59, 59, 0, time.UTC)
	created, err := repo.Create(ctx, &domain.Task{
		UserID:   "u1",
		Title:    "Tax return",
		Deadline: &deadline,
		Priority: domain.PriorityHigh,
		Subtasks: []domain.Subtask{
			{Title: "Collect", Order: 0},
			{Description: "File online", Order: 1},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.True(t, got.Deadline.Equal(deadline))
	require.Len(t, got.Subtasks, 2)
	assert.Equal(t, "File online", got.Subtasks[1].Title)

	_, err = repo.AddSubtask(ctx, created.ID, &domain.Subtask{Title: "dup", Order: 1})
	assert.ErrorIs(t, err, domain.ErrDuplicateOrder)

	withThird, err := repo.AddSubtask(ctx, created.ID, &domain.Subtask{Title: "Submit", Order: -1})
	require.NoError(t, err)
	require.Len(t, withThird.Subtasks, 3)
	assert.Equal(t, 2, withThird.Subtasks[2].Order)

	done := true
	updated, err := repo.UpdateSubtask(ctx, created.ID, got.Subtasks[0].ID, domain.SubtaskPatch{Completed: &done})
	require.NoError(t, err)
	assert.True(t, updated.Subtasks[0].Completed)

	_, err = repo.UpdateSubtask(ctx, created.ID, "00000000-0000-0000-0000-000000000000", domain.SubtaskPatch{Completed: &done})
	assert.ErrorIs(t, err, domain.ErrSubtaskNotFound)

	status := domain.StatusInProgress
	updated, err = repo.Update(ctx, created.ID, domain.TaskPatch{Status: &status, ClearDeadline: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, updated.Status)
	assert.Nil(t, updated.Deadline)

	list, err := repo.List(ctx, repository.TaskFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Subtasks, 3)

	trimmed, err := repo.DeleteSubtask(ctx, created.ID, got.Subtasks[1].ID)
	require.NoError(t, err)
	assert.Len(t, trimmed.Subtasks, 2)

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, created.ID), domain.ErrTaskNotFound)
}
