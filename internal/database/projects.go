package database

import (
	"context"
	"fmt"
)

// ProjectRepository handles project rows
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// ListByUser returns every project of a user, oldest first
func (r *ProjectRepository) ListByUser(ctx context.Context, userID string) ([]ProjectRow, error) {
	query := `
		SELECT id, user_id, name, created_at
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []ProjectRow
	for rows.Next() {
		var p ProjectRow
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// Insert creates a project and returns the stored row
func (r *ProjectRepository) Insert(ctx context.Context, p ProjectRow) (*ProjectRow, error) {
	query := `
		INSERT INTO projects (id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, name, created_at
	`

	stored := &ProjectRow{}
	err := r.db.QueryRowContext(ctx, query, p.ID, p.UserID, p.Name, p.CreatedAt).
		Scan(&stored.ID, &stored.UserID, &stored.Name, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return stored, nil
}

// UpdateName renames a project
func (r *ProjectRepository) UpdateName(ctx context.Context, userID, id, name string) error {
	query := `UPDATE projects SET name = $3 WHERE id = $1 AND user_id = $2`
	return execAffectingOne(ctx, r.db, "rename project", query, id, userID, name)
}

// Delete deletes a project; tasks and history cascade
func (r *ProjectRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM projects WHERE id = $1 AND user_id = $2`
	return execAffectingOne(ctx, r.db, "delete project", query, id, userID)
}

// Upsert inserts or updates projects by id in a single transaction
func (r *ProjectRepository) Upsert(ctx context.Context, projects []ProjectRow) error {
	if len(projects) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO projects (id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		WHERE projects.user_id = EXCLUDED.user_id
	`
	for _, p := range projects {
		if _, err := tx.ExecContext(ctx, query, p.ID, p.UserID, p.Name, p.CreatedAt); err != nil {
			return fmt.Errorf("failed to upsert project: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project upsert: %w", err)
	}
	return nil
}

// execAffectingOne runs an update or delete and reports ErrNotFound when no row matched
func execAffectingOne(ctx context.Context, db *DB, op, query string, args ...any) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("failed to %s: %w", op, ErrNotFound)
	}

	return nil
}
