package queue

import (
	"context"
)

// MessageInterface defines the interface for queue messages, enabling mock
// implementations in tests
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetEvent() *Event
}

// EventQueue is the interface for the auth audit event queue
type EventQueue interface {
	// Publish adds an event to the queue
	Publish(ctx context.Context, event *Event) error

	// Consume returns a channel of messages from the queue. The caller is
	// responsible for acknowledging each message. The channel closes when
	// the context is cancelled or the connection fails.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// Close closes the queue connection
	Close() error

	// HealthCheck verifies the queue connection is healthy
	HealthCheck(ctx context.Context) error
}
