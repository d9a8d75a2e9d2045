package models

import "time"

// DefaultProjectName is the label given to automatically provisioned projects.
const DefaultProjectName = "Default Project"

// Project scopes a set of tasks and history items.
type Project struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required,max=200"`
	CreatedAt time.Time `json:"createdAt"`
}
