package localstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/benvon/capture/internal/models"
)

func newTestStore(t *testing.T) (*Store, *MemoryKV) {
	t.Helper()
	kv := NewMemoryKV()
	return NewStore(kv, NewKeys("test-"), nil), kv
}

func TestStore_LoadEmptyProvidesDefaultProject(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	snap := store.Load()

	if len(snap.Projects) != 1 {
		t.Fatalf("projects = %d, want 1", len(snap.Projects))
	}
	if snap.Projects[0].ID != store.DefaultProjectID() {
		t.Errorf("default project id = %q, want %q", snap.Projects[0].ID, store.DefaultProjectID())
	}
	if snap.Projects[0].Name != models.DefaultProjectName {
		t.Errorf("default project name = %q", snap.Projects[0].Name)
	}
	if snap.ActiveProjectID != snap.Projects[0].ID {
		t.Errorf("active project = %q, want %q", snap.ActiveProjectID, snap.Projects[0].ID)
	}
	if len(snap.Tasks) != 0 || len(snap.History) != 0 {
		t.Errorf("expected no tasks or history, got %d/%d", len(snap.Tasks), len(snap.History))
	}
}

func TestStore_MalformedTasksAreClearedWithoutFailing(t *testing.T) {
	t.Parallel()

	store, kv := newTestStore(t)
	keys := store.Keys()
	if err := kv.Set(keys.Tasks, "{not json"); err != nil {
		t.Fatal(err)
	}

	snap := store.Load()
	if len(snap.Tasks) != 0 {
		t.Errorf("tasks = %d, want 0", len(snap.Tasks))
	}
	if _, found, _ := kv.Get(keys.Tasks); found {
		t.Error("corrupted key should have been cleared")
	}
}

func TestStore_NonArrayValueIsDiscarded(t *testing.T) {
	t.Parallel()

	store, kv := newTestStore(t)
	keys := store.Keys()
	_ = kv.Set(keys.History, `{"id":"1","text":"not a list"}`)

	snap := store.Load()
	if len(snap.History) != 0 {
		t.Errorf("history = %d, want 0", len(snap.History))
	}
	if _, found, _ := kv.Get(keys.History); found {
		t.Error("non-array key should have been cleared")
	}
}

func TestStore_FallsBackToBackupSlot(t *testing.T) {
	t.Parallel()

	store, kv := newTestStore(t)
	keys := store.Keys()
	_ = kv.Set(keys.Tasks, "[broken")
	_ = kv.Set(BackupKey(keys.Tasks), `[{"id":"t1","text":"from backup","priority":"later"}]`)

	snap := store.Load()
	if len(snap.Tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(snap.Tasks))
	}
	if snap.Tasks[0].Text != "from backup" {
		t.Errorf("task text = %q, want %q", snap.Tasks[0].Text, "from backup")
	}
}

func TestStore_OrphanTasksAreAssignedToDefaultProject(t *testing.T) {
	t.Parallel()

	store, kv := newTestStore(t)
	keys := store.Keys()
	_ = kv.Set(keys.Projects, `[{"id":"p1","name":"Work","createdAt":"2026-01-01T00:00:00Z"}]`)
	_ = kv.Set(keys.Tasks, `[{"id":"t1","text":"no project"},{"id":"t2","text":"gone project","projectId":"p-deleted"},{"id":"t3","text":"ok","projectId":"p1"}]`)

	snap := store.Load()
	defaultID := store.DefaultProjectID()

	if !snap.HasProject(defaultID) {
		t.Fatal("default project should be present after reassigning orphans")
	}

	var underDefault []string
	for _, task := range snap.Tasks {
		if task.ProjectID == defaultID {
			underDefault = append(underDefault, task.ID)
		}
	}
	if len(underDefault) != 2 {
		t.Errorf("tasks under default project = %v, want t1 and t2", underDefault)
	}
	for _, task := range snap.Tasks {
		if task.ID == "t3" && task.ProjectID != "p1" {
			t.Errorf("t3 project = %q, want p1", task.ProjectID)
		}
	}
}

func TestStore_LegacyPriorityIsNormalized(t *testing.T) {
	t.Parallel()

	store, kv := newTestStore(t)
	keys := store.Keys()
	_ = kv.Set(keys.Tasks, `[
		{"id":"a","text":"symbolic","priority":"later"},
		{"id":"b","text":"weight field","priorityWeight":3},
		{"id":"c","text":"snake weight","priority_weight":0},
		{"id":"d","text":"numeric priority","priority":1},
		{"id":"e","text":"garbage","priority":"urgent"},
		{"id":"f","text":"missing"},
		{"id":"g","text":"float weight","priorityWeight":2.0},
		{"id":"h","text":"quoted weight","priority_weight":"0"},
		{"id":"i","text":"quoted positive weight","priorityWeight":" 1 "},
		{"id":"j","text":"fractional weight","priorityWeight":0.5},
		{"id":"k","text":"unparsable weight","priorityWeight":{"level":1}},
		{"id":"l","text":"null weight","priority_weight":null},
		{"id":"m","text":"quoted numeric priority","priority":"0"}
	]`)

	want := map[string]models.Priority{
		"a": models.PriorityLater,
		"b": models.PriorityNow,
		"c": models.PriorityLater,
		"d": models.PriorityNow,
		"e": models.DefaultPriority,
		"f": models.DefaultPriority,
		"g": models.PriorityNow,
		"h": models.PriorityLater,
		"i": models.PriorityNow,
		"j": models.PriorityNow,
		"k": models.DefaultPriority,
		"l": models.DefaultPriority,
		"m": models.PriorityLater,
	}

	snap := store.Load()
	if len(snap.Tasks) != len(want) {
		t.Fatalf("tasks = %d, want %d", len(snap.Tasks), len(want))
	}
	for _, task := range snap.Tasks {
		if task.Priority != want[task.ID] {
			t.Errorf("task %s priority = %q, want %q", task.ID, task.Priority, want[task.ID])
		}
	}
}

func TestStore_ConfiguredDefaultPriority(t *testing.T) {
	t.Parallel()

	kv := NewMemoryKV()
	store := NewStore(kv, NewKeys("test-"), nil).WithDefaultPriority(models.PriorityLater)
	_ = kv.Set(store.Keys().Tasks, `[
		{"id":"a","text":"no level"},
		{"id":"b","text":"unknown level","priority":"soon"},
		{"id":"c","text":"weighted","priorityWeight":1}
	]`)

	want := map[string]models.Priority{
		"a": models.PriorityLater,
		"b": models.PriorityLater,
		"c": models.PriorityNow,
	}
	for _, task := range store.Load().Tasks {
		if task.Priority != want[task.ID] {
			t.Errorf("task %s priority = %q, want %q", task.ID, task.Priority, want[task.ID])
		}
	}
}

func TestStore_LegacyNumericIDsAndTimestamps(t *testing.T) {
	t.Parallel()

	store, kv := newTestStore(t)
	keys := store.Keys()
	_ = kv.Set(keys.Projects, `[{"id":1700000000000,"name":"Legacy","createdAt":1700000000000}]`)
	_ = kv.Set(keys.Tasks, `[{"id":1700000000001,"text":"old","projectId":1700000000000}]`)

	snap := store.Load()
	if snap.Projects[0].ID != "1700000000000" {
		t.Errorf("project id = %q", snap.Projects[0].ID)
	}
	if !snap.Projects[0].CreatedAt.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("project createdAt = %v", snap.Projects[0].CreatedAt)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].ProjectID != "1700000000000" {
		t.Errorf("task not attached to legacy project: %+v", snap.Tasks)
	}
}

func TestStore_ItemsWithoutTextAreDropped(t *testing.T) {
	t.Parallel()

	store, kv := newTestStore(t)
	_ = kv.Set(store.Keys().Tasks, `[{"id":"a","text":"   "},{"text":"no id"},42,{"id":"b","text":"kept"}]`)

	snap := store.Load()
	if len(snap.Tasks) != 1 || snap.Tasks[0].ID != "b" {
		t.Errorf("tasks = %+v, want only b", snap.Tasks)
	}
}

func TestStore_DefaultProjectIDIsStable(t *testing.T) {
	t.Parallel()

	kv := NewMemoryKV()
	first := NewStore(kv, NewKeys("x-"), nil).DefaultProjectID()
	second := NewStore(kv, NewKeys("x-"), nil).DefaultProjectID()
	if first == "" || first != second {
		t.Errorf("default project id not stable: %q vs %q", first, second)
	}

	other := NewStore(NewMemoryKV(), NewKeys("x-"), nil).DefaultProjectID()
	if other == first {
		t.Error("independent installations should not share a default project id")
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := models.Snapshot{
		Projects: []models.Project{
			{ID: "p1", Name: "Alpha", CreatedAt: created},
			{ID: "p2", Name: "Beta", CreatedAt: created},
		},
		Tasks: []models.Task{
			{ID: "t1", Text: "one", ProjectID: "p2", CreatedAt: created, Priority: models.PriorityLater},
		},
		History: []models.HistoryItem{
			{ID: "h1", Text: "done", ProjectID: "p1", CreatedAt: created, CompletedAt: created.Add(time.Hour), Priority: models.PriorityNow},
		},
		ActiveProjectID: "p2",
	}
	if err := store.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out := store.Load()
	if out.ActiveProjectID != "p2" {
		t.Errorf("active = %q, want p2", out.ActiveProjectID)
	}
	if len(out.Projects) != 2 || len(out.Tasks) != 1 || len(out.History) != 1 {
		t.Fatalf("unexpected sizes: %d/%d/%d", len(out.Projects), len(out.Tasks), len(out.History))
	}
	if out.Tasks[0] != in.Tasks[0] {
		t.Errorf("task = %+v, want %+v", out.Tasks[0], in.Tasks[0])
	}
	if out.History[0] != in.History[0] {
		t.Errorf("history = %+v, want %+v", out.History[0], in.History[0])
	}
}

func TestStore_BackupWritesBackupSlots(t *testing.T) {
	t.Parallel()

	store, kv := newTestStore(t)
	keys := store.Keys()
	snap := models.Snapshot{
		Projects:        []models.Project{{ID: "p1", Name: "Alpha"}},
		ActiveProjectID: "p1",
	}
	if err := store.Backup(snap); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := kv.Get(keys.Projects); found {
		t.Error("backup must not touch primary slots")
	}
	raw, found, _ := kv.Get(BackupKey(keys.Projects))
	if !found {
		t.Fatal("backup slot not written")
	}
	var projects []models.Project
	if err := json.Unmarshal([]byte(raw), &projects); err != nil || len(projects) != 1 {
		t.Errorf("backup projects = %q (%v)", raw, err)
	}
	if _, found, _ := kv.Get(BackupKey(keys.Tasks)); !found {
		t.Error("empty task list should still be written as []")
	}
}

func TestStore_ActiveProjectFallsBackToFirstProject(t *testing.T) {
	t.Parallel()

	store, kv := newTestStore(t)
	keys := store.Keys()
	_ = kv.Set(keys.Projects, `[{"id":"p1","name":"A"},{"id":"p2","name":"B"}]`)
	_ = kv.Set(keys.ActiveProject, "missing")

	if got := store.Load().ActiveProjectID; got != "p1" {
		t.Errorf("active = %q, want p1", got)
	}
}
