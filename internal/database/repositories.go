package database

import (
	"context"
)

// ProjectRepositoryInterface defines the remote operations on projects
// This interface enables better testability by allowing mock implementations
type ProjectRepositoryInterface interface {
	ListByUser(ctx context.Context, userID string) ([]ProjectRow, error)
	Insert(ctx context.Context, p ProjectRow) (*ProjectRow, error)
	UpdateName(ctx context.Context, userID, id, name string) error
	Delete(ctx context.Context, userID, id string) error
	Upsert(ctx context.Context, projects []ProjectRow) error
}

// TaskRepositoryInterface defines the remote operations on open tasks
type TaskRepositoryInterface interface {
	ListByUser(ctx context.Context, userID string) ([]TaskRow, error)
	Insert(ctx context.Context, t TaskRow) (*TaskRow, error)
	UpdateText(ctx context.Context, userID, id, text string) error
	UpdatePriority(ctx context.Context, userID, id string, weight int) error
	Delete(ctx context.Context, userID, id string) error
	Upsert(ctx context.Context, tasks []TaskRow) error
}

// HistoryRepositoryInterface defines the remote operations on completed tasks
type HistoryRepositoryInterface interface {
	ListByUser(ctx context.Context, userID string) ([]HistoryRow, error)
	Insert(ctx context.Context, h HistoryRow) (*HistoryRow, error)
	Delete(ctx context.Context, userID, id string) error
}

// Repositories groups the three remote tables
type Repositories struct {
	Projects ProjectRepositoryInterface
	Tasks    TaskRepositoryInterface
	History  HistoryRepositoryInterface
}

// NewRepositories creates the Postgres-backed repositories for db
func NewRepositories(db *DB) Repositories {
	return Repositories{
		Projects: NewProjectRepository(db),
		Tasks:    NewTaskRepository(db),
		History:  NewHistoryRepository(db),
	}
}

// Ensure concrete types implement the interfaces
var (
	_ ProjectRepositoryInterface = (*ProjectRepository)(nil)
	_ TaskRepositoryInterface    = (*TaskRepository)(nil)
	_ HistoryRepositoryInterface = (*HistoryRepository)(nil)
)
