package core

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/entity"
	"github.com/joseph-ayodele/classdocs/internal/repository"
)

// ErrJobNotFound hides whether a job is missing or owned by someone else.
var ErrJobNotFound = common.NotFoundf("conversion job not found")

// Reporter is the read-only view over job records used for polling.
type Reporter struct {
	repo repository.JobRepository
	log  *slog.Logger
}

func NewReporter(repo repository.JobRepository, log *slog.Logger) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{repo: repo, log: log}
}

// GetStatus returns a snapshot of the job. Unknown ids and jobs belonging to
// another owner both yield ErrJobNotFound.
func (r *Reporter) GetStatus(ctx context.Context, jobID uuid.UUID, owner string) (*entity.Job, error) {
	job, err := r.repo.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		r.log.Error("reporter.get.failed", "job_id", jobID, "error", err)
		return nil, err
	}
	if job.Owner != owner {
		r.log.Debug("reporter.get.owner_mismatch", "job_id", jobID, "owner", owner)
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// ListJobs returns the owner's most recent jobs, newest first.
func (r *Reporter) ListJobs(ctx context.Context, owner string, limit int) ([]*entity.Job, error) {
	err := common.NewValidator().
		Field("owner", owner, common.Required).
		Field("limit", limit, common.IntRange(0, repository.MaxListLimit)).
		Err()
	if err != nil {
		return nil, err
	}
	jobs, err := r.repo.ListByOwner(ctx, owner, limit)
	if err != nil {
		r.log.Error("reporter.list.failed", "owner", owner, "error", err)
		return nil, err
	}
	return jobs, nil
}
