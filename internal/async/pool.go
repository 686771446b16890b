package async

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Pool runs each enqueued task on its own goroutine. A worker slot is taken
// inside that goroutine, so Enqueue returns immediately even when every slot
// is busy. Tasks run on a context detached from the caller, bounded by the
// process timeout.
type Pool struct {
	logger  *slog.Logger
	workers int
	timeout time.Duration

	slots    chan struct{}
	wg       sync.WaitGroup
	inflight atomic.Int64

	mu     sync.Mutex
	closed bool
}

var _ Queue = (*Pool)(nil)

type Option func(*Pool)

// WithWorkers bounds concurrently running tasks. Zero means unbounded.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n >= 0 {
			p.workers = n
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPool(logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
	}
	for _, o := range opts {
		o(p)
	}
	if p.workers > 0 {
		p.slots = make(chan struct{}, p.workers)
	}
	return p
}

// Enqueue starts the task in the background. The caller's ctx is only used
// for logging attributes; cancelling it does not affect the task.
func (p *Pool) Enqueue(_ context.Context, task Task) error {
	if task.Run == nil {
		return fmt.Errorf("task for job %s has no run func", task.JobID)
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("cannot enqueue: queue is shutting down", "job_id", task.JobID)
		return ErrQueueClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = time.Now()
	}
	p.inflight.Add(1)
	go p.run(task)
	p.logger.Debug("queued job for processing", "job_id", task.JobID, "inflight", p.inflight.Load())
	return nil
}

func (p *Pool) run(task Task) {
	defer p.wg.Done()
	defer p.inflight.Add(-1)

	if p.slots != nil {
		p.slots <- struct{}{}
		defer func() { <-p.slots }()
	}
	p.logger.Debug("task started", "job_id", task.JobID, "queue_wait_ms", time.Since(task.SubmittedAt).Milliseconds())

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				"job_id", task.JobID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		p.logger.Error("task failed", "job_id", task.JobID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return
	}
	p.logger.Info("task finished", "job_id", task.JobID, "elapsed_ms", time.Since(start).Milliseconds())
}

// Inflight reports tasks that were enqueued and have not returned yet.
func (p *Pool) Inflight() int {
	return int(p.inflight.Load())
}

// Shutdown stops accepting tasks and waits for running ones, or for ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("shutdown interrupted by context", "inflight", p.Inflight())
		return ctx.Err()
	case <-done:
		p.logger.Info("queue drained, shutdown complete")
		return nil
	}
}
