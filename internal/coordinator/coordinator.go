// Package coordinator owns the in-memory client state. Every mutation is applied locally
// first, mirrored to the remote store when a session is active, and undone if the mirror
// fails durably.
package coordinator

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benvon/capture/internal/auth"
	"github.com/benvon/capture/internal/clipboard"
	"github.com/benvon/capture/internal/gateway"
	"github.com/benvon/capture/internal/localstore"
	"github.com/benvon/capture/internal/logger"
	"github.com/benvon/capture/internal/models"
	"github.com/benvon/capture/internal/pending"
	"github.com/benvon/capture/internal/queue"
	"github.com/benvon/capture/internal/retry"
	"github.com/benvon/capture/internal/session"
	"github.com/benvon/capture/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultMirrorTimeout bounds one attempt of a remote write
const DefaultMirrorTimeout = 10 * time.Second

// Remote is the remote side of the state
type Remote interface {
	FetchAll(ctx context.Context, userID string) (gateway.State, error)
	ReplayPending(ctx context.Context, userID string, src gateway.PendingSource, known []models.Project) error

	InsertProject(ctx context.Context, userID string, p models.Project) error
	RenameProject(ctx context.Context, userID, id, name string) error
	DeleteProject(ctx context.Context, userID, id string) error
	InsertTask(ctx context.Context, userID string, t models.Task) error
	UpdateTaskText(ctx context.Context, userID, id, text string) error
	UpdateTaskPriority(ctx context.Context, userID, id string, p models.Priority) error
	DeleteTask(ctx context.Context, userID, id string) error
	InsertHistory(ctx context.Context, userID string, h models.HistoryItem) error
	DeleteHistory(ctx context.Context, userID, id string) error
}

// SnapshotStore is the durable local copy of the state
type SnapshotStore interface {
	Load() models.Snapshot
	Save(snap models.Snapshot) error
	Backup(snap models.Snapshot) error
	LastActiveProjectID() string
}

// PendingQueue records creations made without a session
type PendingQueue interface {
	gateway.PendingSource
	EnqueueProject(p models.Project) error
	EnqueueTask(t models.Task) error
	RefreshProject(p models.Project) (bool, error)
	RefreshTask(t models.Task) (bool, error)
	ForgetProject(id string) error
	ForgetTask(id string) error
	Len() (projects, tasks int)
}

var (
	_ Remote         = (*gateway.Gateway)(nil)
	_ SnapshotStore  = (*localstore.Store)(nil)
	_ PendingQueue   = (*pending.Queue)(nil)
	_ session.Loader = (*Coordinator)(nil)
)

// Deps are the collaborators of a Coordinator. Remote, Publisher and Clipboard may be nil.
type Deps struct {
	Store     SnapshotStore
	Pending   PendingQueue
	Remote    Remote
	Publisher queue.Publisher
	Clipboard clipboard.Writer
}

// Options tunes a Coordinator.
type Options struct {
	Retry           retry.Options
	MirrorTimeout   time.Duration
	DefaultPriority models.Priority
	// DeviceID tags published change notices so a device can skip its own.
	DeviceID string
	// Feedback is fired once per mutation, right after the local change, and never undone.
	Feedback func(op string)
}

// Coordinator is the single owner of the in-memory state.
type Coordinator struct {
	store     SnapshotStore
	pending   PendingQueue
	remote    Remote
	publisher queue.Publisher
	clipboard clipboard.Writer

	retry           retry.Options
	mirrorTimeout   time.Duration
	defaultPriority models.Priority
	deviceID        string
	feedback        func(op string)
	logger          *zap.Logger
	now             func() time.Time
	newID           func() string

	mu   sync.Mutex
	snap models.Snapshot
	user *auth.User

	persistMu sync.Mutex
}

// New creates a coordinator. Call LoadLocal or LoadRemote before reading state.
func New(deps Deps, opts Options, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MirrorTimeout <= 0 {
		opts.MirrorTimeout = DefaultMirrorTimeout
	}
	if !opts.DefaultPriority.Valid() {
		opts.DefaultPriority = models.DefaultPriority
	}
	if opts.DeviceID == "" {
		opts.DeviceID = uuid.NewString()
	}
	opts.Retry.Logger = log
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = gateway.IsTransient
	}

	return &Coordinator{
		store:           deps.Store,
		pending:         deps.Pending,
		remote:          deps.Remote,
		publisher:       deps.Publisher,
		clipboard:       deps.Clipboard,
		retry:           opts.Retry,
		mirrorTimeout:   opts.MirrorTimeout,
		defaultPriority: opts.DefaultPriority,
		deviceID:        opts.DeviceID,
		feedback:        opts.Feedback,
		logger:          log,
		now:             time.Now,
		newID:           uuid.NewString,
	}
}

// SetUser switches mirroring on for user, or off when user is nil.
func (c *Coordinator) SetUser(user *auth.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if user == nil {
		c.user = nil
		return
	}
	u := *user
	c.user = &u
}

// User returns the user mutations are mirrored for, or nil in local mode.
func (c *Coordinator) User() *auth.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Online reports whether mutations are currently mirrored remotely.
func (c *Coordinator) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user != nil && c.remote != nil
}

// LoadLocal replaces the state with the local snapshot.
func (c *Coordinator) LoadLocal() {
	snap := c.store.Load()

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	c.persist()
	c.logger.Debug("local_state_loaded",
		zap.Int("projects", len(snap.Projects)),
		zap.Int("tasks", len(snap.Tasks)),
		zap.Int("history", len(snap.History)))
}

// LoadRemote replays pending creations and replaces the state with the user's remote state.
// The replay is bounded by the mirror timeout and the fetch by the gateway's fetch timeout.
// A failed replay is logged and left for the next sync; a failed fetch leaves the state untouched.
func (c *Coordinator) LoadRemote(ctx context.Context, user auth.User) (err error) {
	_, err = c.sync(ctx, user)
	return err
}

// SyncReport describes one Sync run.
type SyncReport struct {
	PendingProjects int
	PendingTasks    int
	ReplayErr       error
	Projects        int
	Tasks           int
	History         int
	Provisioned     bool
}

// Sync replays pending creations and reloads the remote state for the current user.
func (c *Coordinator) Sync(ctx context.Context) (SyncReport, error) {
	user := c.User()
	if user == nil {
		return SyncReport{}, ErrNotSignedIn
	}
	return c.sync(ctx, *user)
}

func (c *Coordinator) sync(ctx context.Context, user auth.User) (report SyncReport, err error) {
	if c.remote == nil {
		return SyncReport{}, ErrRemoteUnavailable
	}

	ctx, span := telemetry.StartSpan(ctx, "coordinator.sync")
	defer func() { telemetry.EndSpan(span, err) }()

	if c.pending != nil {
		report.PendingProjects, report.PendingTasks = c.pending.Len()
		if report.PendingProjects+report.PendingTasks > 0 {
			replayCtx, cancel := context.WithTimeout(ctx, c.mirrorTimeout)
			replayErr := c.remote.ReplayPending(replayCtx, user.ID, c.pending, c.knownProjects())
			cancel()
			if replayErr != nil {
				report.ReplayErr = replayErr
				c.logger.Warn("pending_replay_failed",
					zap.String("user_id", logger.SanitizeUserID(user.ID)),
					zap.String("error", logger.SanitizeError(replayErr)))
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("failed to load remote state: %w", err)
	}

	state, err := c.refresh(ctx, user)
	if err != nil {
		return report, err
	}

	report.Projects = len(state.Projects)
	report.Tasks = len(state.Tasks)
	report.History = len(state.History)
	report.Provisioned = state.Provisioned
	return report, nil
}

// refresh fetches the remote state and installs it as the in-memory state.
func (c *Coordinator) refresh(ctx context.Context, user auth.User) (gateway.State, error) {
	state, err := c.remote.FetchAll(ctx, user.ID)
	if err != nil {
		return gateway.State{}, fmt.Errorf("failed to load remote state: %w", err)
	}

	c.mu.Lock()
	remembered := c.snap.ActiveProjectID
	c.mu.Unlock()
	if remembered == "" {
		remembered = c.store.LastActiveProjectID()
	}

	c.mu.Lock()
	c.snap = models.Snapshot{
		Projects:        state.Projects,
		Tasks:           state.Tasks,
		History:         state.History,
		ActiveProjectID: gateway.SelectActiveProject(state.Projects, remembered),
	}
	c.mu.Unlock()

	c.persist()
	return state, nil
}

// knownProjects are the projects pending tasks may reference: the in-memory ones and the
// ones in the local snapshot.
func (c *Coordinator) knownProjects() []models.Project {
	c.mu.Lock()
	known := slices.Clone(c.snap.Projects)
	c.mu.Unlock()

	for _, p := range c.store.Load().Projects {
		if !slices.ContainsFunc(known, func(k models.Project) bool { return k.ID == p.ID }) {
			known = append(known, p)
		}
	}
	return known
}

// persist writes the settled state: always to the backup slots, and to the primary slots
// only in local mode so a signed-in session never overwrites the local-only data.
func (c *Coordinator) persist() {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	snap := c.snap.Clone()
	local := c.user == nil || c.remote == nil
	c.mu.Unlock()

	if err := c.store.Backup(snap); err != nil {
		c.logger.Warn("local_backup_failed", zap.Error(err))
	}
	if local {
		if err := c.store.Save(snap); err != nil {
			c.logger.Warn("local_save_failed", zap.Error(err))
		}
	}
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.Clone()
}

// Projects returns the projects in stored order.
func (c *Coordinator) Projects() []models.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.snap.Projects)
}

// ActiveProject returns the active project, if it exists.
func (c *Coordinator) ActiveProject() (models.Project, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.snap.Projects {
		if p.ID == c.snap.ActiveProjectID {
			return p, true
		}
	}
	return models.Project{}, false
}

// Tasks returns the open tasks of a project matching filter, most urgent and newest first.
func (c *Coordinator) Tasks(projectID string, filter models.PriorityFilter) []models.Task {
	var out []models.Task
	for _, t := range c.TasksInOrder(projectID) {
		if filter.Matches(t.Priority) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, models.CompareTasks)
	return out
}

// TasksInOrder returns the open tasks of a project in their stored (manual) order.
func (c *Coordinator) TasksInOrder(projectID string) []models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []models.Task
	for _, t := range c.snap.Tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out
}

// History returns the completed tasks of a project, most recently completed first.
func (c *Coordinator) History(projectID string) []models.HistoryItem {
	c.mu.Lock()
	var out []models.HistoryItem
	for _, h := range c.snap.History {
		if h.ProjectID == projectID {
			out = append(out, h)
		}
	}
	c.mu.Unlock()

	slices.SortStableFunc(out, func(a, b models.HistoryItem) int {
		return b.CompletedAt.Compare(a.CompletedAt)
	})
	return out
}

func (c *Coordinator) publish(ctx context.Context, userID string, m mutation) {
	if c.publisher == nil {
		return
	}
	notice := queue.NewChangeNotice(userID, c.deviceID, m.kind, m.op, m.entityID)
	if err := c.publisher.Publish(ctx, notice); err != nil {
		c.logger.Warn("change_notice_publish_failed",
			zap.String("op", m.op),
			zap.String("error", logger.SanitizeError(err)))
	}
}

func (c *Coordinator) fireFeedback(op string) {
	if c.feedback != nil {
		c.feedback(op)
	}
}

func spanAttrs(m mutation) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("op", m.op),
		attribute.String("entity_id", m.entityID),
	}
}
