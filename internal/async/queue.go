package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned by Enqueue once Shutdown has begun.
var ErrQueueClosed = errors.New("queue is shutting down")

// Task is one detached unit of work: executing a conversion job.
type Task struct {
	JobID uuid.UUID
	// SubmittedAt anchors the queue wait logged when a worker picks the task
	// up. Enqueue fills it when zero.
	SubmittedAt time.Time
	Run         func(ctx context.Context) error
}

// Queue hands tasks off to background execution. Enqueue never waits for
// the task to run.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Shutdown(ctx context.Context) error
}
