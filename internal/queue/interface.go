package queue

import (
	"context"
)

// MessageInterface defines the interface for delivered notices
// This enables better testability by allowing mock implementations
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetNotice() *ChangeNotice
}

// Publisher announces mirrored mutations
type Publisher interface {
	Publish(ctx context.Context, notice ChangeNotice) error
}

// Feed is the change-notice transport
type Feed interface {
	Publisher

	// Subscribe delivers the notices published for userID until ctx is cancelled.
	// The caller is responsible for acknowledging each message.
	// Both channels are closed when the subscription ends.
	Subscribe(ctx context.Context, userID string) (<-chan MessageInterface, <-chan error, error)

	// Close closes the feed connection
	Close() error

	// HealthCheck verifies the feed connection is healthy
	HealthCheck(ctx context.Context) error
}

// NopFeed is used when no broker is configured: publishing succeeds and nothing is delivered.
type NopFeed struct{}

var _ Feed = NopFeed{}

func (NopFeed) Publish(context.Context, ChangeNotice) error { return nil }

func (NopFeed) Subscribe(ctx context.Context, userID string) (<-chan MessageInterface, <-chan error, error) {
	msgs := make(chan MessageInterface)
	errs := make(chan error)
	go func() {
		<-ctx.Done()
		close(msgs)
		close(errs)
	}()
	return msgs, errs, nil
}

func (NopFeed) Close() error { return nil }

func (NopFeed) HealthCheck(context.Context) error { return nil }
