package models

import "slices"

// Snapshot is the full client-side state: projects, open tasks, history and the active project.
type Snapshot struct {
	Projects        []Project     `json:"projects"`
	Tasks           []Task        `json:"tasks"`
	History         []HistoryItem `json:"history"`
	ActiveProjectID string        `json:"activeProjectId"`
}

// Clone returns a copy whose slices do not alias s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Projects:        slices.Clone(s.Projects),
		Tasks:           slices.Clone(s.Tasks),
		History:         slices.Clone(s.History),
		ActiveProjectID: s.ActiveProjectID,
	}
}

// HasProject reports whether a project with the given id exists.
func (s Snapshot) HasProject(id string) bool {
	return slices.ContainsFunc(s.Projects, func(p Project) bool { return p.ID == id })
}
