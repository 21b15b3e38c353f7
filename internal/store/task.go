package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/taskapi/taskapi/types"
)

const taskColumns = `id, user_id, title, description, status, priority, created_at, updated_at`

// TaskRepository handles persistence for tasks. Every per-task read or write
// is scoped to an owner through ownedTask.
type TaskRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db, now: time.Now}
}

func (r *TaskRepository) List(ctx context.Context, ownerID, offset, limit int) ([]types.Task, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 100
	}

	const query = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE user_id = $1
		ORDER BY id
		OFFSET $2 LIMIT $3`
	tasks := make([]types.Task, 0)
	if err := r.db.SelectContext(ctx, &tasks, query, ownerID, offset, limit); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	now := r.timestamp()
	task.CreatedAt = now
	task.UpdatedAt = now

	const query = `
		INSERT INTO tasks (user_id, title, description, status, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		task.UserID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID); err != nil {
		return types.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) Get(ctx context.Context, ownerID, taskID int) (types.Task, error) {
	return ownedTask(ctx, r.db, ownerID, taskID, false)
}

// Update applies patch to the owner's task and refreshes updated_at.
func (r *TaskRepository) Update(ctx context.Context, ownerID, taskID int, patch types.TaskPatch) (types.Task, error) {
	var updated types.Task
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		task, err := ownedTask(ctx, tx, ownerID, taskID, true)
		if err != nil {
			return err
		}

		patch.Apply(&task)
		task.UpdatedAt = r.refreshed(task.UpdatedAt)

		const query = `
			UPDATE tasks
			SET title = $1,
				description = $2,
				status = $3,
				priority = $4,
				updated_at = $5
			WHERE id = $6`
		if _, err := tx.ExecContext(
			ctx,
			query,
			task.Title,
			task.Description,
			task.Status,
			task.Priority,
			task.UpdatedAt,
			task.ID,
		); err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		updated = task
		return nil
	})
	if err != nil {
		return types.Task{}, err
	}
	return updated, nil
}

// Delete removes the owner's task and returns its last state.
func (r *TaskRepository) Delete(ctx context.Context, ownerID, taskID int) (types.Task, error) {
	var deleted types.Task
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		task, err := ownedTask(ctx, tx, ownerID, taskID, true)
		if err != nil {
			return err
		}

		const query = `DELETE FROM tasks WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, task.ID); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}

		deleted = task
		return nil
	})
	if err != nil {
		return types.Task{}, err
	}
	return deleted, nil
}

// ownedTask loads taskID only if it belongs to ownerID. A malformed id, a
// missing row and a row owned by someone else all yield ErrNotFound.
func ownedTask(ctx context.Context, q sqlx.QueryerContext, ownerID, taskID int, forUpdate bool) (types.Task, error) {
	if ownerID < 1 || taskID < 1 {
		return types.Task{}, ErrNotFound
	}

	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE id = $1 AND user_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var task types.Task
	if err := sqlx.GetContext(ctx, q, &task, query, taskID, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// timestamp returns now at the precision postgres stores.
func (r *TaskRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

// refreshed returns a new updated_at that never precedes previous.
func (r *TaskRepository) refreshed(previous time.Time) time.Time {
	now := r.timestamp()
	if now.Before(previous) {
		return previous
	}
	return now
}
