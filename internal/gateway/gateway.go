// Package gateway mirrors the client state to the remote store: bulk loads for a
// signed-in user, single-entity writes, and replay of creations queued while offline.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/capture/internal/database"
	"github.com/benvon/capture/internal/logger"
	"github.com/benvon/capture/internal/models"
	"github.com/benvon/capture/internal/pending"
	"github.com/benvon/capture/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultFetchTimeout bounds FetchAll when Options.FetchTimeout is not set
const DefaultFetchTimeout = 10 * time.Second

var (
	// ErrFetchTimeout is returned when the three bulk queries do not finish in time
	ErrFetchTimeout = errors.New("remote fetch timed out")
	// ErrProvisionMismatch is returned when the provisioned default project does not come back as written
	ErrProvisionMismatch = errors.New("provisioned project does not match the inserted record")
)

// State is the full remote state of one user.
type State struct {
	Projects []models.Project
	Tasks    []models.Task
	History  []models.HistoryItem
	// Provisioned is set when the default project was created during the fetch.
	Provisioned bool
}

// PendingSource is the subset of the pending queue consumed by ReplayPending
type PendingSource interface {
	DrainProjects() []models.Project
	DrainTasks() []models.Task
	Clear(kind pending.Kind) error
}

var _ PendingSource = (*pending.Queue)(nil)

// Options configures a Gateway.
type Options struct {
	FetchTimeout time.Duration
}

// Gateway is the remote side of the client state.
type Gateway struct {
	repos        database.Repositories
	fetchTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time
	newID        func() string
}

// New creates a gateway over the remote repositories
func New(repos database.Repositories, opts Options, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	return &Gateway{
		repos:        repos,
		fetchTimeout: opts.FetchTimeout,
		logger:       log,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// IsTransient reports whether a failed remote call is worth retrying
func IsTransient(err error) bool {
	return database.IsTransient(err)
}

// FetchAll loads projects, tasks and history for userID. The three queries run
// concurrently under one deadline; any failure fails the whole call and no partial
// state is returned. A user without projects gets a freshly provisioned default project.
func (g *Gateway) FetchAll(ctx context.Context, userID string) (state State, err error) {
	ctx, span := telemetry.StartSpan(ctx, "gateway.fetch_all")
	defer func() { telemetry.EndSpan(span, err) }()

	fetchCtx, cancel := context.WithTimeout(ctx, g.fetchTimeout)
	defer cancel()

	var (
		projectRows []database.ProjectRow
		taskRows    []database.TaskRow
		historyRows []database.HistoryRow
	)

	eg, egCtx := errgroup.WithContext(fetchCtx)
	eg.Go(func() error {
		rows, err := g.repos.Projects.ListByUser(egCtx, userID)
		if err != nil {
			return fmt.Errorf("failed to fetch projects: %w", err)
		}
		projectRows = rows
		return nil
	})
	eg.Go(func() error {
		rows, err := g.repos.Tasks.ListByUser(egCtx, userID)
		if err != nil {
			return fmt.Errorf("failed to fetch tasks: %w", err)
		}
		taskRows = rows
		return nil
	})
	eg.Go(func() error {
		rows, err := g.repos.History.ListByUser(egCtx, userID)
		if err != nil {
			return fmt.Errorf("failed to fetch history: %w", err)
		}
		historyRows = rows
		return nil
	})

	// A driver that ignores cancellation must not hold the caller past the deadline.
	done := make(chan error, 1)
	go func() { done <- eg.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return State{}, fmt.Errorf("%w after %s", ErrFetchTimeout, g.fetchTimeout)
			}
			g.logger.Warn("remote_fetch_failed",
				zap.String("user_id", logger.SanitizeUserID(userID)),
				zap.String("error", logger.SanitizeError(err)))
			return State{}, err
		}
	case <-fetchCtx.Done():
		if ctx.Err() != nil {
			return State{}, ctx.Err()
		}
		g.logger.Warn("remote_fetch_timed_out",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.Duration("timeout", g.fetchTimeout))
		return State{}, fmt.Errorf("%w after %s", ErrFetchTimeout, g.fetchTimeout)
	}

	state = State{
		Projects: mapRows(projectRows, projectFromRow),
		Tasks:    mapRows(taskRows, taskFromRow),
		History:  mapRows(historyRows, historyFromRow),
	}

	if len(state.Projects) == 0 {
		project, err := g.provisionDefaultProject(ctx, userID)
		if err != nil {
			return State{}, err
		}
		state.Projects = []models.Project{project}
		state.Provisioned = true
	}

	span.SetAttributes(
		attribute.Int("projects", len(state.Projects)),
		attribute.Int("tasks", len(state.Tasks)),
		attribute.Int("history", len(state.History)),
	)
	g.logger.Debug("remote_state_fetched",
		zap.String("user_id", logger.SanitizeUserID(userID)),
		zap.Int("projects", len(state.Projects)),
		zap.Int("tasks", len(state.Tasks)),
		zap.Int("history", len(state.History)))

	return state, nil
}

func (g *Gateway) provisionDefaultProject(ctx context.Context, userID string) (models.Project, error) {
	want := database.ProjectRow{
		ID:        g.newID(),
		UserID:    userID,
		Name:      models.DefaultProjectName,
		CreatedAt: g.now().UTC(),
	}

	stored, err := g.repos.Projects.Insert(ctx, want)
	if err != nil {
		return models.Project{}, fmt.Errorf("failed to provision default project: %w", err)
	}
	if stored == nil || stored.ID != want.ID || stored.UserID != want.UserID || stored.Name != want.Name {
		return models.Project{}, ErrProvisionMismatch
	}

	g.logger.Info("default_project_provisioned",
		zap.String("user_id", logger.SanitizeUserID(userID)),
		zap.String("project_id", stored.ID))

	return projectFromRow(*stored), nil
}

// SelectActiveProject picks the remembered project when it still exists, else the first one.
// It returns "" only when projects is empty.
func SelectActiveProject(projects []models.Project, remembered string) string {
	for _, p := range projects {
		if p.ID == remembered && remembered != "" {
			return remembered
		}
	}
	if len(projects) > 0 {
		return projects[0].ID
	}
	return ""
}

// ReplayPending upserts creations queued while offline, projects before tasks, and clears
// each queue only after its upsert succeeded. Tasks may reference a local project that was
// never queued (the installation's default project); such projects are taken from known and
// upserted alongside. A failure leaves the remaining queue intact for the next sync.
func (g *Gateway) ReplayPending(ctx context.Context, userID string, src PendingSource, known []models.Project) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "gateway.replay_pending")
	defer func() { telemetry.EndSpan(span, err) }()

	projects := src.DrainProjects()
	tasks := src.DrainTasks()
	if len(projects) == 0 && len(tasks) == 0 {
		return nil
	}

	queued := make(map[string]bool, len(projects))
	for _, p := range projects {
		queued[p.ID] = true
	}
	byID := make(map[string]models.Project, len(known))
	for _, p := range known {
		byID[p.ID] = p
	}
	for _, t := range tasks {
		if queued[t.ProjectID] {
			continue
		}
		if p, ok := byID[t.ProjectID]; ok {
			projects = append(projects, p)
			queued[p.ID] = true
		}
	}

	if len(projects) > 0 {
		rows := make([]database.ProjectRow, 0, len(projects))
		for _, p := range projects {
			rows = append(rows, projectToRow(userID, p))
		}
		if err := g.repos.Projects.Upsert(ctx, rows); err != nil {
			return fmt.Errorf("failed to replay pending projects: %w", err)
		}
		if err := src.Clear(pending.KindProject); err != nil {
			g.logger.Warn("failed_to_clear_pending_projects", zap.Error(err))
		}
	}

	if len(tasks) > 0 {
		rows := make([]database.TaskRow, 0, len(tasks))
		for _, t := range tasks {
			rows = append(rows, taskToRow(userID, t))
		}
		if err := g.repos.Tasks.Upsert(ctx, rows); err != nil {
			return fmt.Errorf("failed to replay pending tasks: %w", err)
		}
		if err := src.Clear(pending.KindTask); err != nil {
			g.logger.Warn("failed_to_clear_pending_tasks", zap.Error(err))
		}
	}

	g.logger.Info("pending_mutations_replayed",
		zap.String("user_id", logger.SanitizeUserID(userID)),
		zap.Int("projects", len(projects)),
		zap.Int("tasks", len(tasks)))

	return nil
}
