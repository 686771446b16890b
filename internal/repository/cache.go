package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/classdocs/internal/entity"
)

const snapshotKeyPrefix = "conversion:job:"

// CachedJobRepository fronts a JobRepository with a Redis cache of terminal
// job snapshots. Non-terminal jobs are never cached, so a cached record can
// not go stale. Cache failures are logged and fall through to the store.
type CachedJobRepository struct {
	JobRepository
	client redis.UniversalClient
	ttl    time.Duration
	log    *slog.Logger
}

func NewCachedJobRepository(store JobRepository, client redis.UniversalClient, ttl time.Duration, log *slog.Logger) *CachedJobRepository {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedJobRepository{JobRepository: store, client: client, ttl: ttl, log: log}
}

func snapshotKey(id uuid.UUID) string {
	return snapshotKeyPrefix + id.String()
}

func (r *CachedJobRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	raw, err := r.client.Get(ctx, snapshotKey(id)).Bytes()
	switch {
	case err == nil:
		var job entity.Job
		if uerr := json.Unmarshal(raw, &job); uerr == nil {
			return &job, nil
		}
		r.log.Warn("job.cache.decode_failed", "job_id", id)
	case errors.Is(err, redis.Nil):
	default:
		r.log.Warn("job.cache.get_failed", "job_id", id, "error", err)
	}

	job, err := r.JobRepository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.remember(ctx, job)
	return job, nil
}

func (r *CachedJobRepository) Complete(ctx context.Context, id uuid.UUID, c Completion) (*entity.Job, error) {
	job, err := r.JobRepository.Complete(ctx, id, c)
	if err != nil {
		return nil, err
	}
	r.remember(ctx, job)
	return job, nil
}

func (r *CachedJobRepository) Fail(ctx context.Context, id uuid.UUID, detail string, at time.Time) (*entity.Job, error) {
	job, err := r.JobRepository.Fail(ctx, id, detail, at)
	if err != nil {
		return nil, err
	}
	r.remember(ctx, job)
	return job, nil
}

func (r *CachedJobRepository) remember(ctx context.Context, job *entity.Job) {
	if job == nil || !job.Terminal() {
		return
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, snapshotKey(job.ID), raw, r.ttl).Err(); err != nil {
		r.log.Warn("job.cache.set_failed", "job_id", job.ID, "error", err)
	}
}
