package queue

import (
	"context"
	"time"
)

// MessageInterface defines the interface for queue messages
// This enables better testability by allowing mock implementations
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// JobQueue is the interface for job queues
type JobQueue interface {
	// Enqueue adds a job to the queue
	Enqueue(ctx context.Context, job *Job) error

	// Consume returns a channel of messages from the queue.
	// Messages are delivered asynchronously as they arrive; the caller
	// acknowledges each one. Prefetch controls how many unacknowledged
	// messages each consumer can hold. The channel closes when the
	// context is cancelled or an error occurs.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// Close closes the queue connection
	Close() error

	// HealthCheck verifies the queue connection is healthy
	HealthCheck(ctx context.Context) error
}

// DLQPurger purges dead-lettered messages older than retention. Implemented
// by queue backends that expose their DLQ; consumed by the GarbageCollector.
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
