package models

import "time"

// Task is an open unit of work owned by exactly one project.
type Task struct {
	ID        string    `json:"id" validate:"required"`
	Text      string    `json:"text" validate:"required"`
	ProjectID string    `json:"projectId" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
	Priority  Priority  `json:"priority" validate:"priority"`
}

// HistoryItem is a completed task kept for restoration or permanent deletion.
type HistoryItem struct {
	ID          string    `json:"id" validate:"required"`
	Text        string    `json:"text" validate:"required"`
	ProjectID   string    `json:"projectId" validate:"required"`
	CreatedAt   time.Time `json:"createdAt"`
	CompletedAt time.Time `json:"completedAt"`
	Priority    Priority  `json:"priority" validate:"priority"`
}

// Complete copies the task into a history item stamped with completedAt.
func (t Task) Complete(completedAt time.Time) HistoryItem {
	return HistoryItem{
		ID:          t.ID,
		Text:        t.Text,
		ProjectID:   t.ProjectID,
		CreatedAt:   t.CreatedAt,
		CompletedAt: completedAt,
		Priority:    t.Priority,
	}
}

// Restore recreates the open task, dropping the completion timestamp.
func (h HistoryItem) Restore() Task {
	return Task{
		ID:        h.ID,
		Text:      h.Text,
		ProjectID: h.ProjectID,
		CreatedAt: h.CreatedAt,
		Priority:  h.Priority,
	}
}
