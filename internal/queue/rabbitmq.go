package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchangeName is the topic exchange carrying change notices
	DefaultExchangeName = "capture_changes"
	// routingKeyPrefix is followed by the user id
	routingKeyPrefix = "user."
)

// RoutingKey returns the routing key used for userID's notices
func RoutingKey(userID string) string {
	return routingKeyPrefix + userID
}

// RabbitMQFeed implements Feed over a RabbitMQ topic exchange. Every follower gets its own
// exclusive, auto-deleted queue bound to the user's routing key, so each device sees every notice.
type RabbitMQFeed struct {
	conn         *amqp.Connection
	mu           sync.Mutex
	channel      *amqp.Channel
	exchangeName string
}

// NewRabbitMQFeed connects to amqpURL and declares the exchange
func NewRabbitMQFeed(amqpURL string) (*RabbitMQFeed, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	feed := &RabbitMQFeed{
		conn:         conn,
		channel:      ch,
		exchangeName: DefaultExchangeName,
	}

	err = ch.ExchangeDeclare(
		feed.exchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return feed, nil
}

// Publish sends a notice to the user's routing key
func (f *RabbitMQFeed) Publish(ctx context.Context, notice ChangeNotice) error {
	if err := notice.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Transient,
		Timestamp:    notice.At,
		AppId:        notice.DeviceID,
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	err = f.channel.PublishWithContext(
		ctx,
		f.exchangeName,
		RoutingKey(notice.UserID),
		false, // mandatory
		false, // immediate
		publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to publish notice: %w", err)
	}

	return nil
}

// Subscribe returns a channel of notices for userID using async delivery
func (f *RabbitMQFeed) Subscribe(ctx context.Context, userID string) (<-chan MessageInterface, <-chan error, error) {
	// separate channel for consumers
	consumeCh, err := f.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	if err := consumeCh.Qos(8, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	q, err := consumeCh.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to declare follower queue: %w", err)
	}

	if err := consumeCh.QueueBind(q.Name, RoutingKey(userID), f.exchangeName, false, nil); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to bind follower queue: %w", err)
	}

	deliveries, err := consumeCh.Consume(
		q.Name,
		"",    // consumer tag (empty = auto-generate)
		false, // auto-ack (false = manual ack required)
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan MessageInterface, 8)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() { _ = consumeCh.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- fmt.Errorf("delivery channel closed")
					return
				}

				var notice ChangeNotice
				if err := json.Unmarshal(delivery.Body, &notice); err != nil || notice.Validate() != nil {
					_ = delivery.Nack(false, false)
					continue
				}

				msg := &Message{
					Notice:      &notice,
					DeliveryTag: delivery.DeliveryTag,
					Channel:     consumeCh,
				}

				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

// Close closes the feed connection
func (f *RabbitMQFeed) Close() error {
	var err error
	if f.channel != nil {
		err = f.channel.Close()
	}
	if f.conn != nil {
		if closeErr := f.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// HealthCheck verifies the connection is still open
func (f *RabbitMQFeed) HealthCheck(ctx context.Context) error {
	if f.conn == nil || f.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}

var _ Feed = (*RabbitMQFeed)(nil)
