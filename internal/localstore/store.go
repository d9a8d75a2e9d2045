package localstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benvon/capture/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultKeyPrefix namespaces every key written by the store.
const DefaultKeyPrefix = "coding-todo-"

const backupSuffix = "-backup"

// Keys names the storage slots used by the snapshot store and the pending queue.
type Keys struct {
	Projects         string
	Tasks            string
	History          string
	ActiveProject    string
	DefaultProjectID string
	PendingProjects  string
	PendingTasks     string
}

// NewKeys derives every key from prefix.
func NewKeys(prefix string) Keys {
	return Keys{
		Projects:         prefix + "projects",
		Tasks:            prefix + "tasks",
		History:          prefix + "history",
		ActiveProject:    prefix + "active-project",
		DefaultProjectID: prefix + "default-project-id",
		PendingProjects:  prefix + "pending-projects",
		PendingTasks:     prefix + "pending-tasks",
	}
}

// BackupKey returns the backup slot for a primary key.
func BackupKey(key string) string {
	return key + backupSuffix
}

// Store reads and writes the durable local copy of the snapshot.
// Primary slots hold the local-mode state; backup slots are refreshed on every change.
type Store struct {
	kv     KeyValueStore
	keys   Keys
	logger *zap.Logger
	now    func() time.Time

	defaultPriority models.Priority

	mu               sync.Mutex
	defaultProjectID string
}

// NewStore creates a snapshot store over kv.
func NewStore(kv KeyValueStore, keys Keys, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		kv:     kv,
		keys:   keys,
		logger: logger,
		now:    time.Now,

		defaultPriority: models.DefaultPriority,
	}
}

// WithDefaultPriority sets the level given to loaded records that carry neither a level nor a weight.
func (s *Store) WithDefaultPriority(p models.Priority) *Store {
	s.defaultPriority = models.NormalizePriorityOr(string(p), models.DefaultPriority)
	return s
}

// KV exposes the underlying storage for collaborators sharing the same namespace.
func (s *Store) KV() KeyValueStore {
	return s.kv
}

// Keys returns the key set used by the store.
func (s *Store) Keys() Keys {
	return s.keys
}

// DefaultProjectID returns the installation's fallback project id, creating and persisting it on first use.
func (s *Store) DefaultProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.defaultProjectID != "" {
		return s.defaultProjectID
	}

	id, found, err := s.kv.Get(s.keys.DefaultProjectID)
	if err != nil {
		s.logger.Warn("failed_to_read_default_project_id", zap.Error(err))
	}
	id = strings.TrimSpace(id)
	if !found || id == "" {
		id = uuid.NewString()
		if err := s.kv.Set(s.keys.DefaultProjectID, id); err != nil {
			s.logger.Warn("failed_to_persist_default_project_id", zap.Error(err))
		}
	}
	s.defaultProjectID = id
	return id
}

// ActiveProjectID returns the remembered active project id, or "" when none is stored.
func (s *Store) ActiveProjectID() string {
	if id := s.readString(s.keys.ActiveProject); id != "" {
		return id
	}
	return s.readString(BackupKey(s.keys.ActiveProject))
}

// LastActiveProjectID returns the active project id of the most recently settled state,
// whichever mode wrote it. Backup slots are refreshed in every mode, so they win.
func (s *Store) LastActiveProjectID() string {
	if id := s.readString(BackupKey(s.keys.ActiveProject)); id != "" {
		return id
	}
	return s.readString(s.keys.ActiveProject)
}

// Load returns the stored snapshot. It never fails: unusable slots are cleared and replaced by their
// backup or by defaults, and legacy records are migrated in memory.
func (s *Store) Load() models.Snapshot {
	defaultID := s.DefaultProjectID()
	now := s.now().UTC()

	var projects []models.Project
	for _, raw := range s.readArray(s.keys.Projects) {
		var sp storedProject
		if err := json.Unmarshal(raw, &sp); err != nil || sp.ID == "" {
			s.logger.Warn("local_snapshot_project_discarded", zap.Error(err))
			continue
		}
		p := models.Project{
			ID:        string(sp.ID),
			Name:      strings.TrimSpace(sp.Name),
			CreatedAt: time.Time(sp.CreatedAt),
		}
		if p.Name == "" {
			p.Name = models.DefaultProjectName
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		projects = append(projects, p)
	}
	if len(projects) == 0 {
		projects = []models.Project{{ID: defaultID, Name: models.DefaultProjectName, CreatedAt: now}}
	}

	known := make(map[string]bool, len(projects))
	for _, p := range projects {
		known[p.ID] = true
	}
	reassigned := 0
	projectFor := func(id flexString) string {
		if id != "" && known[string(id)] {
			return string(id)
		}
		reassigned++
		return defaultID
	}

	var tasks []models.Task
	for _, raw := range s.readArray(s.keys.Tasks) {
		st, ok := s.decodeTask(raw, "task")
		if !ok {
			continue
		}
		t := models.Task{
			ID:        string(st.ID),
			Text:      st.Text,
			ProjectID: projectFor(st.ProjectID),
			CreatedAt: time.Time(st.CreatedAt),
			Priority:  st.priority(s.defaultPriority),
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		tasks = append(tasks, t)
	}

	var history []models.HistoryItem
	for _, raw := range s.readArray(s.keys.History) {
		st, ok := s.decodeTask(raw, "history")
		if !ok {
			continue
		}
		h := models.HistoryItem{
			ID:          string(st.ID),
			Text:        st.Text,
			ProjectID:   projectFor(st.ProjectID),
			CreatedAt:   time.Time(st.CreatedAt),
			CompletedAt: time.Time(st.CompletedAt),
			Priority:    st.priority(s.defaultPriority),
		}
		if h.CreatedAt.IsZero() {
			h.CreatedAt = now
		}
		if h.CompletedAt.IsZero() {
			h.CompletedAt = h.CreatedAt
		}
		history = append(history, h)
	}

	if reassigned > 0 {
		s.logger.Info("local_snapshot_orphans_reassigned",
			zap.Int("count", reassigned),
			zap.String("default_project_id", defaultID),
		)
		if !known[defaultID] {
			projects = append(projects, models.Project{ID: defaultID, Name: models.DefaultProjectName, CreatedAt: now})
			known[defaultID] = true
		}
	}

	active := s.ActiveProjectID()
	if !known[active] {
		active = projects[0].ID
	}

	return models.Snapshot{
		Projects:        projects,
		Tasks:           tasks,
		History:         history,
		ActiveProjectID: active,
	}
}

// Save writes the snapshot to the primary slots.
func (s *Store) Save(snap models.Snapshot) error {
	return s.write(snap, "")
}

// Backup writes the snapshot to the backup slots.
func (s *Store) Backup(snap models.Snapshot) error {
	return s.write(snap, backupSuffix)
}

func (s *Store) write(snap models.Snapshot, suffix string) error {
	var errs []error
	errs = append(errs, s.writeJSON(s.keys.Projects+suffix, nonNil(snap.Projects)))
	errs = append(errs, s.writeJSON(s.keys.Tasks+suffix, nonNil(snap.Tasks)))
	errs = append(errs, s.writeJSON(s.keys.History+suffix, nonNil(snap.History)))
	if err := s.kv.Set(s.keys.ActiveProject+suffix, snap.ActiveProjectID); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to save local snapshot: %w", err)
	}
	return nil
}

func (s *Store) writeJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.kv.Set(key, string(data))
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Store) decodeTask(raw json.RawMessage, kind string) (storedTask, bool) {
	var st storedTask
	if err := json.Unmarshal(raw, &st); err != nil {
		s.logger.Warn("local_snapshot_item_discarded", zap.String("kind", kind), zap.Error(err))
		return st, false
	}
	st.Text = strings.TrimSpace(st.Text)
	if st.ID == "" || st.Text == "" {
		s.logger.Warn("local_snapshot_item_discarded",
			zap.String("kind", kind),
			zap.String("reason", "missing id or text"),
		)
		return st, false
	}
	return st, true
}

func (s *Store) readString(key string) string {
	v, found, err := s.kv.Get(key)
	if err != nil {
		s.logger.Warn("failed_to_read_local_key", zap.String("key", key), zap.Error(err))
		return ""
	}
	if !found {
		return ""
	}
	return strings.TrimSpace(v)
}

// readArray returns the elements stored under key, falling back to its backup slot.
func (s *Store) readArray(key string) []json.RawMessage {
	if items, ok := s.readArrayKey(key); ok {
		return items
	}
	if items, ok := s.readArrayKey(BackupKey(key)); ok {
		s.logger.Info("local_snapshot_restored_from_backup", zap.String("key", key))
		return items
	}
	return nil
}

// readArrayKey decodes a JSON array. Malformed or non-array values are cleared so later loads do not trip on them.
func (s *Store) readArrayKey(key string) ([]json.RawMessage, bool) {
	raw, found, err := s.kv.Get(key)
	if err != nil {
		s.logger.Warn("failed_to_read_local_key", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	data := bytes.TrimSpace([]byte(raw))
	if !json.Valid(data) {
		s.logger.Warn("local_snapshot_key_discarded",
			zap.String("key", key),
			zap.String("reason", "malformed json"),
		)
		s.discard(key)
		return nil, false
	}

	var items []json.RawMessage
	if len(data) == 0 || data[0] != '[' || json.Unmarshal(data, &items) != nil {
		s.logger.Warn("local_snapshot_key_discarded",
			zap.String("key", key),
			zap.String("reason", "expected array"),
		)
		s.discard(key)
		return nil, false
	}
	return items, true
}

func (s *Store) discard(key string) {
	if err := s.kv.Remove(key); err != nil {
		s.logger.Warn("failed_to_clear_local_key", zap.String("key", key), zap.Error(err))
	}
}
