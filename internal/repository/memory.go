package repository

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/classdocs/constants"
	"github.com/joseph-ayodele/classdocs/internal/entity"
)

// MemoryJobRepository keeps job records in process memory. Records are
// stored and returned as deep copies.
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*entity.Job
	log  *slog.Logger
}

var _ JobRepository = (*MemoryJobRepository)(nil)

func NewMemoryJobRepository(log *slog.Logger) *MemoryJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryJobRepository{jobs: make(map[uuid.UUID]*entity.Job), log: log}
}

func (r *MemoryJobRepository) Create(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return ErrJobExists
	}
	r.jobs[job.ID] = job.Clone()
	r.log.Debug("conversion_job created", "job_id", job.ID, "format", job.TargetFormat)
	return nil
}

func (r *MemoryJobRepository) Get(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

func (r *MemoryJobRepository) ListByOwner(_ context.Context, owner string, limit int) ([]*entity.Job, error) {
	r.mu.RLock()
	out := make([]*entity.Job, 0)
	for _, job := range r.jobs {
		if job.Owner == owner {
			out = append(out, job.Clone())
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *entity.Job) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if n := normalizeLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *MemoryJobRepository) MarkProcessing(_ context.Context, id uuid.UUID, at time.Time) (*entity.Job, error) {
	return r.transition(id, constants.JobStatusProcessing, func(j *entity.Job) {
		j.StartedAt = &at
	})
}

func (r *MemoryJobRepository) Complete(_ context.Context, id uuid.UUID, c Completion) (*entity.Job, error) {
	return r.transition(id, constants.JobStatusCompleted, func(j *entity.Job) {
		art := c.Artifact
		j.Result = &art
		j.Placeholders = slices.Clone(c.Placeholders)
		at := c.At
		j.CompletedAt = &at
		d := j.DurationMs(at)
		j.ProcessingDurationMs = &d
	})
}

func (r *MemoryJobRepository) Fail(_ context.Context, id uuid.UUID, detail string, at time.Time) (*entity.Job, error) {
	return r.transition(id, constants.JobStatusFailed, func(j *entity.Job) {
		j.ErrorDetail = &detail
		j.CompletedAt = &at
		d := j.DurationMs(at)
		j.ProcessingDurationMs = &d
	})
}

func (r *MemoryJobRepository) transition(id uuid.UUID, to constants.JobStatus, apply func(*entity.Job)) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if !constants.CanTransition(job.Status, to) {
		return nil, ErrInvalidTransition
	}
	next := job.Clone()
	next.Status = to
	apply(next)
	r.jobs[id] = next
	return next.Clone(), nil
}
