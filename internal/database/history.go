package database

import (
	"context"
	"fmt"
)

// HistoryRepository handles completed task rows
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// ListByUser returns every history item of a user, most recently completed first
func (r *HistoryRepository) ListByUser(ctx context.Context, userID string) ([]HistoryRow, error) {
	query := `
		SELECT id, user_id, project_id, text, priority_weight, created_at, completed_at
		FROM history
		WHERE user_id = $1
		ORDER BY completed_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var items []HistoryRow
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(&h.ID, &h.UserID, &h.ProjectID, &h.Text, &h.PriorityWeight, &h.CreatedAt, &h.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history item: %w", err)
		}
		items = append(items, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return items, nil
}

// Insert creates a history item and returns the stored row
func (r *HistoryRepository) Insert(ctx context.Context, h HistoryRow) (*HistoryRow, error) {
	query := `
		INSERT INTO history (id, user_id, project_id, text, priority_weight, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, user_id, project_id, text, priority_weight, created_at, completed_at
	`

	stored := &HistoryRow{}
	err := r.db.QueryRowContext(ctx, query, h.ID, h.UserID, h.ProjectID, h.Text, h.PriorityWeight, h.CreatedAt, h.CompletedAt).
		Scan(&stored.ID, &stored.UserID, &stored.ProjectID, &stored.Text, &stored.PriorityWeight, &stored.CreatedAt, &stored.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create history item: %w", err)
	}

	return stored, nil
}

// Delete deletes a history item by ID
func (r *HistoryRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM history WHERE id = $1 AND user_id = $2`
	return execAffectingOne(ctx, r.db, "delete history item", query, id, userID)
}
