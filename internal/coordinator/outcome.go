package coordinator

import (
	"errors"
	"fmt"
)

var (
	// ErrLastProject is returned when deleting the only remaining project
	ErrLastProject = errors.New("cannot delete the last project")
	// ErrNotFound is returned when the addressed project, task or history item does not exist
	ErrNotFound = errors.New("not found")
	// ErrEmptyText is returned when task text is empty after trimming
	ErrEmptyText = errors.New("task text is empty")
	// ErrEmptyName is returned when a project name is empty after trimming
	ErrEmptyName = errors.New("project name is empty")
	// ErrNoActiveProject is returned when a task is added while the active project no longer exists
	ErrNoActiveProject = errors.New("no active project")
	// ErrInvalidPriority is returned for a priority outside now/later
	ErrInvalidPriority = errors.New("invalid priority")
	// ErrInvalidOrder is returned when a reorder is not a permutation of the project's tasks
	ErrInvalidOrder = errors.New("order must list every task of the project exactly once")
	// ErrNotSignedIn is returned by operations that need a session
	ErrNotSignedIn = errors.New("not signed in")
	// ErrRemoteUnavailable is returned when no remote store is configured
	ErrRemoteUnavailable = errors.New("remote sync is not configured")
)

// Status is the acknowledgment given for a mutation.
type Status string

const (
	// StatusSynced means the mutation was applied and mirrored remotely
	StatusSynced Status = "synced"
	// StatusSavedLocally means the mutation is final locally; creations wait in the pending queue
	StatusSavedLocally Status = "saved locally"
	// StatusUnchanged means the request matched the current state and nothing was written
	StatusUnchanged Status = "unchanged"
	// StatusFailed means the remote mirror failed and the local change was undone
	StatusFailed Status = "failed, rolled back"
)

// Outcome is the acknowledgment of one mutating operation.
type Outcome struct {
	Op     string
	Status Status
	Err    error
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %s", o.Status, o.Err.Error())
	}
	return string(o.Status)
}

// RollbackError reports a mirrored write that failed durably; the local change was undone.
type RollbackError struct {
	Op  string
	Err error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%s failed and was rolled back: %v", e.Op, e.Err)
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}
