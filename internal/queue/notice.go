package queue

import (
	"errors"
	"time"
)

// Kind is the entity family a notice refers to
type Kind string

const (
	KindProject Kind = "project"
	KindTask    Kind = "task"
	KindHistory Kind = "history"
)

// DefaultMaxAge is how old a notice may be before a follower ignores it
const DefaultMaxAge = 5 * time.Minute

var errInvalidNotice = errors.New("invalid change notice")

// ChangeNotice announces that a device has mirrored a mutation for a user.
// Followers react by reloading the full remote state.
type ChangeNotice struct {
	UserID   string    `json:"user_id"`
	DeviceID string    `json:"device_id"`
	Kind     Kind      `json:"kind"`
	Op       string    `json:"op"`
	EntityID string    `json:"entity_id,omitempty"`
	At       time.Time `json:"at"`
}

// NewChangeNotice creates a notice stamped with the current time
func NewChangeNotice(userID, deviceID string, kind Kind, op, entityID string) ChangeNotice {
	return ChangeNotice{
		UserID:   userID,
		DeviceID: deviceID,
		Kind:     kind,
		Op:       op,
		EntityID: entityID,
		At:       time.Now().UTC(),
	}
}

// Validate checks the fields a follower relies on
func (n ChangeNotice) Validate() error {
	if n.UserID == "" || n.DeviceID == "" || n.Op == "" {
		return errInvalidNotice
	}
	return nil
}

// IsStale reports whether the notice is older than maxAge at now
func (n ChangeNotice) IsStale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 || n.At.IsZero() {
		return false
	}
	return now.Sub(n.At) > maxAge
}

// FromDevice reports whether the notice was published by deviceID
func (n ChangeNotice) FromDevice(deviceID string) bool {
	return n.DeviceID == deviceID
}
