package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/benvon/capture/internal/models"
)

var (
	errNoMatch   = errors.New("no match")
	errAmbiguous = errors.New("ambiguous reference")
)

// resolve finds the item a command-line reference points at: a 1-based position in the listed
// order, a unique id prefix, or (when name is non-nil) a case-insensitive exact name.
func resolve[T any](items []T, ref string, id func(T) string, name func(T) string) (T, error) {
	var zero T
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return zero, errNoMatch
	}

	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(items) {
		return items[n-1], nil
	}

	if name != nil {
		for _, item := range items {
			if strings.EqualFold(name(item), ref) {
				return item, nil
			}
		}
	}

	var matches []T
	for _, item := range items {
		if id(item) == ref {
			return item, nil
		}
		if strings.HasPrefix(id(item), ref) {
			matches = append(matches, item)
		}
	}
	switch len(matches) {
	case 0:
		return zero, fmt.Errorf("%w for %q", errNoMatch, ref)
	case 1:
		return matches[0], nil
	default:
		return zero, fmt.Errorf("%w %q matches %d items", errAmbiguous, ref, len(matches))
	}
}

func resolveProject(projects []models.Project, ref string) (models.Project, error) {
	return resolve(projects, ref,
		func(p models.Project) string { return p.ID },
		func(p models.Project) string { return p.Name })
}

func resolveTask(tasks []models.Task, ref string) (models.Task, error) {
	return resolve(tasks, ref, func(t models.Task) string { return t.ID }, nil)
}

func resolveHistory(items []models.HistoryItem, ref string) (models.HistoryItem, error) {
	return resolve(items, ref, func(h models.HistoryItem) string { return h.ID }, nil)
}
