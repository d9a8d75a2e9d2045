package database

import "time"

// ProjectRow is a row of the projects table.
type ProjectRow struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// TaskRow is a row of the tasks table.
type TaskRow struct {
	ID             string
	UserID         string
	ProjectID      string
	Text           string
	PriorityWeight int
	CreatedAt      time.Time
}

// HistoryRow is a row of the history table.
type HistoryRow struct {
	ID             string
	UserID         string
	ProjectID      string
	Text           string
	PriorityWeight int
	CreatedAt      time.Time
	CompletedAt    time.Time
}
