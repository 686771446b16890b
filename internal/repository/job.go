package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/entity"
)

var (
	// ErrJobNotFound is returned when no job has the requested id.
	ErrJobNotFound = &common.AppError{Code: common.CodeNotFound, Message: "job not found", Cause: common.ErrNotFound}
	// ErrInvalidTransition is returned when a status change is not an edge of
	// pending -> processing -> {completed | failed}. Terminal rows are never
	// rewritten.
	ErrInvalidTransition = errors.New("invalid job status transition")
	// ErrJobExists is returned when creating a job whose id is taken.
	ErrJobExists = &common.AppError{Code: common.CodeConflict, Message: "job already exists", Cause: common.ErrConflict}
)

// Completion is the outcome persisted on the processing -> completed edge.
type Completion struct {
	Artifact     entity.Artifact
	Placeholders []int
	At           time.Time
}

// JobRepository persists conversion job records. Transition methods are
// conditional on the current status and return the updated snapshot.
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	ListByOwner(ctx context.Context, owner string, limit int) ([]*entity.Job, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, at time.Time) (*entity.Job, error)
	Complete(ctx context.Context, id uuid.UUID, c Completion) (*entity.Job, error)
	Fail(ctx context.Context, id uuid.UUID, detail string, at time.Time) (*entity.Job, error)
}

const (
	// DefaultListLimit caps ListByOwner when limit <= 0.
	DefaultListLimit = 100
	// MaxListLimit is the largest page ListByOwner serves.
	MaxListLimit = 1000
)

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return DefaultListLimit
	}
	return limit
}
