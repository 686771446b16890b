package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/classdocs/internal/entity"
)

// ErrStillProcessing means polling gave up while the job was still running.
// It is not a job failure.
var ErrStillProcessing = errors.New("conversion is taking longer than expected")

// StatusReader is the polling surface, satisfied by Reporter and the gRPC
// client.
type StatusReader interface {
	GetStatus(ctx context.Context, jobID uuid.UUID, owner string) (*entity.Job, error)
}

// PollPolicy bounds WaitForTerminal.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

var DefaultPollPolicy = PollPolicy{Interval: 2 * time.Second, MaxAttempts: 90}

// WaitForTerminal polls until the job completes or fails. When attempts run
// out it returns the last snapshot together with ErrStillProcessing.
func WaitForTerminal(ctx context.Context, reader StatusReader, jobID uuid.UUID, owner string, policy PollPolicy) (*entity.Job, error) {
	if policy.Interval <= 0 {
		policy.Interval = DefaultPollPolicy.Interval
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPollPolicy.MaxAttempts
	}

	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()

	var last *entity.Job
	for attempt := 1; ; attempt++ {
		job, err := reader.GetStatus(ctx, jobID, owner)
		if err != nil {
			return nil, err
		}
		last = job
		if job.Terminal() {
			return job, nil
		}
		if attempt >= policy.MaxAttempts {
			return last, ErrStillProcessing
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
