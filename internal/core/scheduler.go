package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/classdocs/constants"
	"github.com/joseph-ayodele/classdocs/internal/async"
	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/core/staging"
	"github.com/joseph-ayodele/classdocs/internal/entity"
	"github.com/joseph-ayodele/classdocs/internal/repository"
)

// JobRunner executes one admitted job, taking ownership of its staged batch.
type JobRunner interface {
	Run(ctx context.Context, jobID uuid.UUID, batch staging.Batch) error
}

// Scheduler admits conversion requests and hands them to background
// execution. Submit returns as soon as the pending record is persisted.
type Scheduler struct {
	repo    repository.JobRepository
	area    staging.Area
	queue   async.Queue
	runner  JobRunner
	limiter *ownerLimiter
	now     func() time.Time
	log     *slog.Logger
}

type SchedulerOption func(*Scheduler)

// WithAdmissionRate limits submissions per owner. A zero rate disables the
// limit.
func WithAdmissionRate(r float64, burst int) SchedulerOption {
	return func(s *Scheduler) {
		if r > 0 {
			s.limiter = newOwnerLimiter(rate.Limit(r), max(burst, 1))
		}
	}
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func NewScheduler(repo repository.JobRepository, area staging.Area, queue async.Queue, runner JobRunner, log *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		repo:   repo,
		area:   area,
		queue:  queue,
		runner: runner,
		now:    time.Now,
		log:    log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit validates the batch, persists a pending job and schedules it.
// Admission failures return an ADMISSION_REJECTED or RATE_LIMITED AppError
// and create no record.
func (s *Scheduler) Submit(ctx context.Context, req SubmitRequest) (uuid.UUID, error) {
	batch, err := ValidateBatch(req)
	if err != nil {
		s.log.Info("scheduler.submit.rejected", "owner", req.Owner, "items", len(req.Uploads), "error", err)
		return uuid.Nil, err
	}
	if s.limiter != nil && !s.limiter.allow(batch.Owner) {
		s.log.Warn("scheduler.submit.rate_limited", "owner", batch.Owner)
		return uuid.Nil, &common.AppError{
			Code:    common.CodeRateLimited,
			Message: "too many conversion requests, try again shortly",
			Cause:   common.ErrRateLimited,
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate job id: %w", err)
	}
	log := s.log.With("job_id", id, "owner", batch.Owner, "format", batch.Format)

	staged, err := s.area.Stage(ctx, id, batch.Uploads)
	if err != nil {
		log.Error("scheduler.stage.failed", "error", err)
		return uuid.Nil, fmt.Errorf("stage inputs: %w", err)
	}

	now := s.now().UTC()
	job := &entity.Job{
		ID:           id,
		Owner:        batch.Owner,
		Items:        batch.Items,
		TargetFormat: batch.Format,
		Destination:  batch.Destination,
		Title:        batch.Title,
		Status:       constants.JobStatusPending,
		CreatedAt:    now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		s.release(log, staged)
		log.Error("scheduler.persist.failed", "error", err)
		return uuid.Nil, fmt.Errorf("persist job: %w", err)
	}

	err = s.queue.Enqueue(ctx, async.Task{
		JobID:       id,
		SubmittedAt: now,
		Run: func(taskCtx context.Context) error {
			return s.runner.Run(taskCtx, id, staged)
		},
	})
	if err != nil {
		// the record stays pending; there is no durable queue to retry from
		s.release(log, staged)
		log.Error("scheduler.handoff.failed", "error", err)
		return uuid.Nil, common.NewAppError(common.CodeUnavailable, "conversion service is shutting down", err)
	}

	log.Info("scheduler.submit.accepted", "items", len(job.Items), "bytes", job.TotalBytes())
	return id, nil
}

func (s *Scheduler) release(log *slog.Logger, staged staging.Batch) {
	if err := staged.Release(); err != nil {
		log.Warn("scheduler.release.failed", "error", err)
	}
}

// ownerLimiter keeps one token bucket per owner.
type ownerLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

func newOwnerLimiter(limit rate.Limit, burst int) *ownerLimiter {
	return &ownerLimiter{limit: limit, burst: burst, buckets: make(map[string]*rate.Limiter)}
}

func (l *ownerLimiter) allow(owner string) bool {
	l.mu.Lock()
	b, ok := l.buckets[owner]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[owner] = b
	}
	l.mu.Unlock()
	return b.Allow()
}
