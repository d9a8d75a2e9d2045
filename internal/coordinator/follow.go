package coordinator

import (
	"context"
	"fmt"

	"github.com/benvon/capture/internal/logger"
	"github.com/benvon/capture/internal/queue"
	"go.uber.org/zap"
)

// Follow reloads the remote state whenever another device announces a mirrored mutation
// for the current user. It blocks until ctx ends or the feed fails. onReload, if set, is
// called after each reload with the notice that caused it.
func (c *Coordinator) Follow(ctx context.Context, feed queue.Feed, onReload func(queue.ChangeNotice)) error {
	user := c.User()
	if user == nil {
		return ErrNotSignedIn
	}
	if c.remote == nil {
		return ErrRemoteUnavailable
	}

	msgs, errs, err := feed.Subscribe(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to follow changes: %w", err)
	}

	c.logger.Info("following_changes", zap.String("user_id", logger.SanitizeUserID(user.ID)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return fmt.Errorf("change feed failed: %w", err)
			}
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			notice := msg.GetNotice()
			if notice == nil || notice.FromDevice(c.deviceID) || notice.IsStale(c.now(), queue.DefaultMaxAge) {
				_ = msg.Ack()
				continue
			}

			if _, err := c.refresh(ctx, *user); err != nil {
				c.logger.Warn("follow_reload_failed",
					zap.String("op", notice.Op),
					zap.String("error", logger.SanitizeError(err)))
				_ = msg.Nack(false)
				continue
			}
			_ = msg.Ack()

			c.logger.Debug("state_reloaded_after_notice",
				zap.String("op", notice.Op),
				zap.String("kind", string(notice.Kind)),
				zap.Time("at", notice.At))
			if onReload != nil {
				onReload(*notice)
			}
		}
	}
}
