package gateway

import (
	"github.com/benvon/capture/internal/database"
	"github.com/benvon/capture/internal/models"
)

// Row and entity shapes differ only in naming and in how priority is carried:
// the remote store keeps an integer weight, the client keeps the symbolic level.

func projectFromRow(r database.ProjectRow) models.Project {
	return models.Project{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func projectToRow(userID string, p models.Project) database.ProjectRow {
	return database.ProjectRow{
		ID:        p.ID,
		UserID:    userID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
	}
}

func taskFromRow(r database.TaskRow) models.Task {
	return models.Task{
		ID:        r.ID,
		Text:      r.Text,
		ProjectID: r.ProjectID,
		CreatedAt: r.CreatedAt.UTC(),
		Priority:  models.FromWeight(r.PriorityWeight),
	}
}

func taskToRow(userID string, t models.Task) database.TaskRow {
	return database.TaskRow{
		ID:             t.ID,
		UserID:         userID,
		ProjectID:      t.ProjectID,
		Text:           t.Text,
		PriorityWeight: models.ToWeight(t.Priority),
		CreatedAt:      t.CreatedAt,
	}
}

func historyFromRow(r database.HistoryRow) models.HistoryItem {
	return models.HistoryItem{
		ID:          r.ID,
		Text:        r.Text,
		ProjectID:   r.ProjectID,
		CreatedAt:   r.CreatedAt.UTC(),
		CompletedAt: r.CompletedAt.UTC(),
		Priority:    models.FromWeight(r.PriorityWeight),
	}
}

func historyToRow(userID string, h models.HistoryItem) database.HistoryRow {
	return database.HistoryRow{
		ID:             h.ID,
		UserID:         userID,
		ProjectID:      h.ProjectID,
		Text:           h.Text,
		PriorityWeight: models.ToWeight(h.Priority),
		CreatedAt:      h.CreatedAt,
		CompletedAt:    h.CompletedAt,
	}
}

func mapRows[R, E any](rows []R, fn func(R) E) []E {
	out := make([]E, 0, len(rows))
	for _, r := range rows {
		out = append(out, fn(r))
	}
	return out
}
