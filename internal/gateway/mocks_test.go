package gateway

import (
	"context"

	"github.com/benvon/capture/internal/database"
	"github.com/benvon/capture/internal/models"
	"github.com/benvon/capture/internal/pending"
)

type mockProjectRepo struct {
	ListByUserFunc func(ctx context.Context, userID string) ([]database.ProjectRow, error)
	InsertFunc     func(ctx context.Context, p database.ProjectRow) (*database.ProjectRow, error)
	UpdateNameFunc func(ctx context.Context, userID, id, name string) error
	DeleteFunc     func(ctx context.Context, userID, id string) error
	UpsertFunc     func(ctx context.Context, projects []database.ProjectRow) error
}

func (m *mockProjectRepo) ListByUser(ctx context.Context, userID string) ([]database.ProjectRow, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockProjectRepo) Insert(ctx context.Context, p database.ProjectRow) (*database.ProjectRow, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, p)
	}
	return &p, nil
}

func (m *mockProjectRepo) UpdateName(ctx context.Context, userID, id, name string) error {
	if m.UpdateNameFunc != nil {
		return m.UpdateNameFunc(ctx, userID, id, name)
	}
	return nil
}

func (m *mockProjectRepo) Delete(ctx context.Context, userID, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, id)
	}
	return nil
}

func (m *mockProjectRepo) Upsert(ctx context.Context, projects []database.ProjectRow) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, projects)
	}
	return nil
}

type mockTaskRepo struct {
	ListByUserFunc     func(ctx context.Context, userID string) ([]database.TaskRow, error)
	InsertFunc         func(ctx context.Context, t database.TaskRow) (*database.TaskRow, error)
	UpdateTextFunc     func(ctx context.Context, userID, id, text string) error
	UpdatePriorityFunc func(ctx context.Context, userID, id string, weight int) error
	DeleteFunc         func(ctx context.Context, userID, id string) error
	UpsertFunc         func(ctx context.Context, tasks []database.TaskRow) error
}

func (m *mockTaskRepo) ListByUser(ctx context.Context, userID string) ([]database.TaskRow, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockTaskRepo) Insert(ctx context.Context, t database.TaskRow) (*database.TaskRow, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, t)
	}
	return &t, nil
}

func (m *mockTaskRepo) UpdateText(ctx context.Context, userID, id, text string) error {
	if m.UpdateTextFunc != nil {
		return m.UpdateTextFunc(ctx, userID, id, text)
	}
	return nil
}

func (m *mockTaskRepo) UpdatePriority(ctx context.Context, userID, id string, weight int) error {
	if m.UpdatePriorityFunc != nil {
		return m.UpdatePriorityFunc(ctx, userID, id, weight)
	}
	return nil
}

func (m *mockTaskRepo) Delete(ctx context.Context, userID, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, id)
	}
	return nil
}

func (m *mockTaskRepo) Upsert(ctx context.Context, tasks []database.TaskRow) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, tasks)
	}
	return nil
}

type mockHistoryRepo struct {
	ListByUserFunc func(ctx context.Context, userID string) ([]database.HistoryRow, error)
	InsertFunc     func(ctx context.Context, h database.HistoryRow) (*database.HistoryRow, error)
	DeleteFunc     func(ctx context.Context, userID, id string) error
}

func (m *mockHistoryRepo) ListByUser(ctx context.Context, userID string) ([]database.HistoryRow, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockHistoryRepo) Insert(ctx context.Context, h database.HistoryRow) (*database.HistoryRow, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, h)
	}
	return &h, nil
}

func (m *mockHistoryRepo) Delete(ctx context.Context, userID, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, id)
	}
	return nil
}

type mockPending struct {
	projects []models.Project
	tasks    []models.Task
	cleared  []pending.Kind
}

func (m *mockPending) DrainProjects() []models.Project {
	return m.projects
}

func (m *mockPending) DrainTasks() []models.Task {
	return m.tasks
}

func (m *mockPending) Clear(kind pending.Kind) error {
	m.cleared = append(m.cleared, kind)
	return nil
}

var (
	_ database.ProjectRepositoryInterface = (*mockProjectRepo)(nil)
	_ database.TaskRepositoryInterface    = (*mockTaskRepo)(nil)
	_ database.HistoryRepositoryInterface = (*mockHistoryRepo)(nil)
	_ PendingSource                       = (*mockPending)(nil)
)
