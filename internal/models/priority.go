package models

import "time"

// Priority is the two-level urgency marker of a task.
type Priority string

const (
	PriorityNow   Priority = "now"
	PriorityLater Priority = "later"
)

// DefaultPriority is the level used when no configured default is supplied.
const DefaultPriority = PriorityNow

// priorityLevels is ordered from least to most urgent.
var priorityLevels = []Priority{PriorityLater, PriorityNow}

// Direction is the direction of a relative priority change.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Valid reports whether p is one of the known levels.
func (p Priority) Valid() bool {
	return p == PriorityNow || p == PriorityLater
}

// NormalizePriority maps any value outside the closed set to DefaultPriority.
func NormalizePriority(value string) Priority {
	return NormalizePriorityOr(value, DefaultPriority)
}

// NormalizePriorityOr maps any value outside the closed set to fallback, or to DefaultPriority
// when fallback is not a known level either.
func NormalizePriorityOr(value string, fallback Priority) Priority {
	if p := Priority(value); p.Valid() {
		return p
	}
	if fallback.Valid() {
		return fallback
	}
	return DefaultPriority
}

// ToWeight converts a priority to the numeric weight stored remotely.
func ToWeight(p Priority) int {
	if NormalizePriority(string(p)) == PriorityNow {
		return 1
	}
	return 0
}

// FromWeight converts a stored weight back to a priority: positive weights are "now".
func FromWeight(weight int) Priority {
	if weight > 0 {
		return PriorityNow
	}
	return PriorityLater
}

// ShiftPriority moves one level in the given direction, clamped at both ends.
func ShiftPriority(current Priority, dir Direction) Priority {
	current = NormalizePriority(string(current))
	idx := 0
	for i, level := range priorityLevels {
		if level == current {
			idx = i
			break
		}
	}
	switch dir {
	case DirectionUp:
		idx++
	case DirectionDown:
		idx--
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(priorityLevels) {
		idx = len(priorityLevels) - 1
	}
	return priorityLevels[idx]
}

// ComparePriority orders by descending weight, then by descending creation time.
// It returns a negative number when a sorts before b.
func ComparePriority(aPriority Priority, aCreated time.Time, bPriority Priority, bCreated time.Time) int {
	wa, wb := ToWeight(aPriority), ToWeight(bPriority)
	if wa != wb {
		if wa > wb {
			return -1
		}
		return 1
	}
	return bCreated.Compare(aCreated)
}

// CompareTasks is ComparePriority applied to two tasks, suitable for slices.SortStableFunc.
func CompareTasks(a, b Task) int {
	return ComparePriority(a.Priority, a.CreatedAt, b.Priority, b.CreatedAt)
}

// PriorityFilter selects tasks by level when listing.
type PriorityFilter string

const (
	FilterAll   PriorityFilter = "all"
	FilterNow   PriorityFilter = "now"
	FilterLater PriorityFilter = "later"
)

// Matches reports whether a task with priority p passes the filter.
// Unknown filters behave like FilterAll.
func (f PriorityFilter) Matches(p Priority) bool {
	switch f {
	case FilterNow:
		return p == PriorityNow
	case FilterLater:
		return p == PriorityLater
	default:
		return true
	}
}
