package database

import (
	"context"
	"fmt"
)

// TaskRepository handles open task rows
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListByUser returns every open task of a user, newest first
func (r *TaskRepository) ListByUser(ctx context.Context, userID string) ([]TaskRow, error) {
	query := `
		SELECT id, user_id, project_id, text, priority_weight, created_at
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRow
	for rows.Next() {
		var t TaskRow
		if err := rows.Scan(&t.ID, &t.UserID, &t.ProjectID, &t.Text, &t.PriorityWeight, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// Insert creates a task and returns the stored row
func (r *TaskRepository) Insert(ctx context.Context, t TaskRow) (*TaskRow, error) {
	query := `
		INSERT INTO tasks (id, user_id, project_id, text, priority_weight, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, project_id, text, priority_weight, created_at
	`

	stored := &TaskRow{}
	err := r.db.QueryRowContext(ctx, query, t.ID, t.UserID, t.ProjectID, t.Text, t.PriorityWeight, t.CreatedAt).
		Scan(&stored.ID, &stored.UserID, &stored.ProjectID, &stored.Text, &stored.PriorityWeight, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return stored, nil
}

// UpdateText changes the text of a task
func (r *TaskRepository) UpdateText(ctx context.Context, userID, id, text string) error {
	query := `UPDATE tasks SET text = $3 WHERE id = $1 AND user_id = $2`
	return execAffectingOne(ctx, r.db, "update task text", query, id, userID, text)
}

// UpdatePriority changes the priority weight of a task
func (r *TaskRepository) UpdatePriority(ctx context.Context, userID, id string, weight int) error {
	query := `UPDATE tasks SET priority_weight = $3 WHERE id = $1 AND user_id = $2`
	return execAffectingOne(ctx, r.db, "update task priority", query, id, userID, weight)
}

// Delete deletes a task by ID
func (r *TaskRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
	return execAffectingOne(ctx, r.db, "delete task", query, id, userID)
}

// Upsert inserts or updates tasks by id in a single transaction
func (r *TaskRepository) Upsert(ctx context.Context, tasks []TaskRow) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO tasks (id, user_id, project_id, text, priority_weight, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			text = EXCLUDED.text,
			priority_weight = EXCLUDED.priority_weight
		WHERE tasks.user_id = EXCLUDED.user_id
	`
	for _, t := range tasks {
		if _, err := tx.ExecContext(ctx, query, t.ID, t.UserID, t.ProjectID, t.Text, t.PriorityWeight, t.CreatedAt); err != nil {
			return fmt.Errorf("failed to upsert task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit task upsert: %w", err)
	}
	return nil
}
