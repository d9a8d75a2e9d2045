package coordinator

import (
	"context"

	"github.com/benvon/capture/internal/logger"
	"github.com/benvon/capture/internal/models"
	"github.com/benvon/capture/internal/queue"
	"github.com/benvon/capture/internal/retry"
	"github.com/benvon/capture/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// collections marks the parts of the snapshot a mutation touches; only those are restored on rollback.
type collections uint8

const (
	touchProjects collections = 1 << iota
	touchTasks
	touchHistory
	touchActive
)

// write is one remote write of a mutation.
type write func(ctx context.Context, userID string) error

// mutation describes one optimistic operation.
type mutation struct {
	op       string
	kind     queue.Kind
	entityID string
	touches  collections
	// apply validates and changes the snapshot under the state lock. It must leave the
	// snapshot untouched when it returns an error.
	apply func(s *models.Snapshot) error
	// writes run concurrently, each with its own retries. Any failure undoes the mutation.
	writes []write
	// offline runs instead of writes when no session is active.
	offline func() error
}

// mutate runs the capture, apply, mirror, rollback protocol.
func (c *Coordinator) mutate(ctx context.Context, m mutation) (out Outcome, err error) {
	ctx, span := telemetry.StartSpan(ctx, "coordinator."+m.op, spanAttrs(m)...)
	defer func() { telemetry.EndSpan(span, err) }()

	c.mu.Lock()
	before := c.snap.Clone()
	if err := m.apply(&c.snap); err != nil {
		c.mu.Unlock()
		return Outcome{Op: m.op}, err
	}
	user := c.user
	c.mu.Unlock()

	c.persist()
	c.fireFeedback(m.op)

	if user == nil || c.remote == nil {
		if m.offline != nil && c.pending != nil {
			if err := m.offline(); err != nil {
				c.logger.Warn("pending_queue_update_failed",
					zap.String("op", m.op),
					zap.Error(err))
			}
		}
		return Outcome{Op: m.op, Status: StatusSavedLocally}, nil
	}

	if err := c.mirror(ctx, user.ID, m); err != nil {
		c.rollback(before, m.touches)
		c.persist()

		c.logger.Warn("remote_mirror_failed",
			zap.String("op", m.op),
			zap.String("entity_id", m.entityID),
			zap.String("user_id", logger.SanitizeUserID(user.ID)),
			zap.String("error", logger.SanitizeError(err)))

		rbErr := &RollbackError{Op: m.op, Err: err}
		return Outcome{Op: m.op, Status: StatusFailed, Err: rbErr}, rbErr
	}

	c.publish(ctx, user.ID, m)
	return Outcome{Op: m.op, Status: StatusSynced}, nil
}

func (c *Coordinator) mirror(ctx context.Context, userID string, m mutation) error {
	opts := c.retry
	opts.Name = m.op

	run := func(w write) error {
		return retry.Do(ctx, opts, func(ctx context.Context) error {
			attemptCtx, cancel := context.WithTimeout(ctx, c.mirrorTimeout)
			defer cancel()
			return w(attemptCtx, userID)
		})
	}

	if len(m.writes) == 1 {
		return run(m.writes[0])
	}

	// Both halves of a compound write always run to completion; partial remote state is
	// reconciled by the next full fetch.
	var g errgroup.Group
	for _, w := range m.writes {
		g.Go(func() error { return run(w) })
	}
	return g.Wait()
}

func (c *Coordinator) rollback(before models.Snapshot, touches collections) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if touches&touchProjects != 0 {
		c.snap.Projects = before.Projects
	}
	if touches&touchTasks != 0 {
		c.snap.Tasks = before.Tasks
	}
	if touches&touchHistory != 0 {
		c.snap.History = before.History
	}
	if touches&touchActive != 0 {
		c.snap.ActiveProjectID = before.ActiveProjectID
	}
}
