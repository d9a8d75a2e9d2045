// Package pending records creations made without a session so they can be replayed once one appears.
package pending

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/benvon/capture/internal/localstore"
	"github.com/benvon/capture/internal/models"
	"go.uber.org/zap"
)

// Kind selects one of the two queues.
type Kind string

const (
	KindProject Kind = "project"
	KindTask    Kind = "task"
)

// Queue persists pending project and task creations in local storage, keyed by their client-generated ids.
type Queue struct {
	kv          localstore.KeyValueStore
	projectsKey string
	tasksKey    string
	logger      *zap.Logger
	mu          sync.Mutex
}

// NewQueue creates a queue stored under the pending keys of keys.
func NewQueue(kv localstore.KeyValueStore, keys localstore.Keys, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		kv:          kv,
		projectsKey: keys.PendingProjects,
		tasksKey:    keys.PendingTasks,
		logger:      logger,
	}
}

// EnqueueProject records a project creation. Re-enqueueing an id replaces the earlier payload.
func (q *Queue) EnqueueProject(p models.Project) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	projects := readList[models.Project](q, q.projectsKey)
	projects = upsert(projects, p, func(x models.Project) string { return x.ID })
	return writeList(q, q.projectsKey, projects)
}

// EnqueueTask records a task creation. Re-enqueueing an id replaces the earlier payload.
func (q *Queue) EnqueueTask(t models.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	tasks := readList[models.Task](q, q.tasksKey)
	tasks = upsert(tasks, t, func(x models.Task) string { return x.ID })
	return writeList(q, q.tasksKey, tasks)
}

// DrainProjects returns the queued projects without removing them; call Clear once they are confirmed.
func (q *Queue) DrainProjects() []models.Project {
	q.mu.Lock()
	defer q.mu.Unlock()
	return readList[models.Project](q, q.projectsKey)
}

// DrainTasks returns the queued tasks without removing them; call Clear once they are confirmed.
func (q *Queue) DrainTasks() []models.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return readList[models.Task](q, q.tasksKey)
}

// Clear empties one queue.
func (q *Queue) Clear(kind Kind) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key, err := q.keyFor(kind)
	if err != nil {
		return err
	}
	if err := q.kv.Remove(key); err != nil {
		return fmt.Errorf("failed to clear pending %s queue: %w", kind, err)
	}
	return nil
}

// RefreshProject replaces a queued project's payload. It reports whether the project was queued.
func (q *Queue) RefreshProject(p models.Project) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	projects := readList[models.Project](q, q.projectsKey)
	idx := slices.IndexFunc(projects, func(x models.Project) bool { return x.ID == p.ID })
	if idx < 0 {
		return false, nil
	}
	projects[idx] = p
	return true, writeList(q, q.projectsKey, projects)
}

// RefreshTask replaces a queued task's payload. It reports whether the task was queued.
func (q *Queue) RefreshTask(t models.Task) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tasks := readList[models.Task](q, q.tasksKey)
	idx := slices.IndexFunc(tasks, func(x models.Task) bool { return x.ID == t.ID })
	if idx < 0 {
		return false, nil
	}
	tasks[idx] = t
	return true, writeList(q, q.tasksKey, tasks)
}

// ForgetProject drops a queued project together with every queued task that belongs to it.
func (q *Queue) ForgetProject(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	projects := readList[models.Project](q, q.projectsKey)
	tasks := readList[models.Task](q, q.tasksKey)

	keptProjects := slices.DeleteFunc(projects, func(x models.Project) bool { return x.ID == id })
	keptTasks := slices.DeleteFunc(tasks, func(x models.Task) bool { return x.ProjectID == id })

	if err := writeList(q, q.projectsKey, keptProjects); err != nil {
		return err
	}
	return writeList(q, q.tasksKey, keptTasks)
}

// ForgetTask drops a queued task.
func (q *Queue) ForgetTask(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	tasks := readList[models.Task](q, q.tasksKey)
	return writeList(q, q.tasksKey, slices.DeleteFunc(tasks, func(x models.Task) bool { return x.ID == id }))
}

// Len returns the number of queued projects and tasks.
func (q *Queue) Len() (projects, tasks int) {
	return len(q.DrainProjects()), len(q.DrainTasks())
}

func (q *Queue) keyFor(kind Kind) (string, error) {
	switch kind {
	case KindProject:
		return q.projectsKey, nil
	case KindTask:
		return q.tasksKey, nil
	default:
		return "", fmt.Errorf("unknown pending kind %q", kind)
	}
}

func upsert[T any](items []T, item T, id func(T) string) []T {
	if idx := slices.IndexFunc(items, func(x T) bool { return id(x) == id(item) }); idx >= 0 {
		items[idx] = item
		return items
	}
	return append(items, item)
}

// readList decodes a queue, discarding (and clearing) a corrupted value like the snapshot store does.
func readList[T any](q *Queue, key string) []T {
	raw, found, err := q.kv.Get(key)
	if err != nil {
		q.logger.Warn("failed_to_read_pending_queue", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		q.logger.Warn("pending_queue_discarded", zap.String("key", key), zap.Error(err))
		if rmErr := q.kv.Remove(key); rmErr != nil {
			q.logger.Warn("failed_to_clear_pending_queue", zap.String("key", key), zap.Error(rmErr))
		}
		return nil
	}
	return items
}

func writeList[T any](q *Queue, key string, items []T) error {
	if len(items) == 0 {
		if err := q.kv.Remove(key); err != nil {
			return fmt.Errorf("failed to clear pending queue: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal pending queue: %w", err)
	}
	if err := q.kv.Set(key, string(data)); err != nil {
		return fmt.Errorf("failed to write pending queue: %w", err)
	}
	return nil
}
