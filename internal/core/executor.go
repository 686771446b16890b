package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/classdocs/constants"
	"github.com/joseph-ayodele/classdocs/internal/core/render"
	"github.com/joseph-ayodele/classdocs/internal/core/staging"
	"github.com/joseph-ayodele/classdocs/internal/entity"
	"github.com/joseph-ayodele/classdocs/internal/ports"
	"github.com/joseph-ayodele/classdocs/internal/repository"
)

// Failure details recorded on jobs.
const (
	DetailNoContent   = "no content could be rendered"
	DetailEmptyOutput = "output is empty"
	DetailTimedOut    = "conversion timed out"
)

// ConverterLookup resolves the converter for a job's target format.
type ConverterLookup interface {
	Lookup(f constants.Format) (render.Converter, error)
}

// Executor runs one job from pending to a terminal state. It is the only
// writer of job records after creation.
type Executor struct {
	repo       repository.JobRepository
	converters ConverterLookup
	uploader   ports.Uploader
	registrar  ports.Registrar

	finalizeTimeout time.Duration
	now             func() time.Time
	log             *slog.Logger
}

type ExecutorOption func(*Executor)

// WithFinalizeTimeout bounds the terminal status write, which runs on a
// context detached from the job deadline.
func WithFinalizeTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.finalizeTimeout = d
		}
	}
}

func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

func NewExecutor(repo repository.JobRepository, converters ConverterLookup, uploader ports.Uploader, registrar ports.Registrar, log *slog.Logger, opts ...ExecutorOption) *Executor {
	if log == nil {
		log = slog.Default()
	}
	e := &Executor{
		repo:            repo,
		converters:      converters,
		uploader:        uploader,
		registrar:       registrar,
		finalizeTimeout: 10 * time.Second,
		now:             time.Now,
		log:             log,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run executes the job. The staged batch is released on every path,
// including panics. The returned error is for logging only; the outcome is
// recorded on the job.
func (e *Executor) Run(ctx context.Context, jobID uuid.UUID, batch staging.Batch) (err error) {
	log := e.log.With("job_id", jobID)
	defer func() {
		if rerr := batch.Release(); rerr != nil {
			log.Warn("executor.cleanup.failed", "error", rerr)
		}
	}()

	job, err := e.repo.MarkProcessing(ctx, jobID, e.now().UTC())
	if err != nil {
		log.Error("executor.start.failed", "error", err)
		return fmt.Errorf("mark job %s processing: %w", jobID, err)
	}
	log = log.With("format", job.TargetFormat, "owner", job.Owner)
	log.Info("executor.start", "items", len(job.Items))

	defer func() {
		if r := recover(); r != nil {
			log.Error("executor.panic", "panic", r, "stack", string(debug.Stack()))
			err = e.fail(ctx, log, job, fmt.Sprintf("internal error: %v", r))
		}
	}()

	completion, detail := e.process(ctx, log, job, batch)
	if completion == nil {
		return e.fail(ctx, log, job, detail)
	}
	return e.complete(ctx, log, job, *completion)
}

// process renders, uploads and registers. It returns either a completion or
// the failure detail to record.
func (e *Executor) process(ctx context.Context, log *slog.Logger, job *entity.Job, batch staging.Batch) (*repository.Completion, string) {
	conv, err := e.converters.Lookup(job.TargetFormat)
	if err != nil {
		return nil, err.Error()
	}

	started := time.Now()
	doc, err := conv.Render(ctx, batch.Sources(), render.Metadata{
		Title:     job.Title,
		Author:    job.Owner,
		CreatedAt: job.CreatedAt,
	})
	var renderErr *render.RenderError
	switch {
	case errors.As(err, &renderErr):
		log.Warn("executor.render.no_content", "items", renderErr.Items, "error", errors.Join(renderErr.Causes...))
		return nil, DetailNoContent
	case errors.Is(err, context.DeadlineExceeded):
		return nil, DetailTimedOut
	case err != nil:
		log.Error("executor.render.failed", "error", err)
		return nil, fmt.Sprintf("render failed: %v", err)
	}
	log.Info("executor.render.ok", "units", doc.Units, "placeholders", len(doc.Placeholders), "bytes", len(doc.Data),
		"elapsed_ms", time.Since(started).Milliseconds())

	if len(doc.Data) == 0 {
		return nil, DetailEmptyOutput
	}

	name := artifactName(job, conv.Extension())
	size := int64(len(doc.Data))
	obj, err := e.uploader.Put(ctx, doc.Data, name)
	doc.Data = nil
	if err != nil {
		log.Error("executor.upload.failed", "error", err)
		return nil, err.Error()
	}
	log.Info("executor.upload.ok", "url", obj.URL, "storage_id", obj.StorageID, "bytes", size)

	materialID, err := e.registrar.Register(ctx, ports.ArtifactDescriptor{
		Name:      name,
		URL:       obj.URL,
		StorageID: obj.StorageID,
		ByteSize:  size,
		MIMEType:  conv.MIMEType(),
		Pages:     doc.Units,
	}, job.Destination, ports.OwnerMetadata{OwnerID: job.Owner, JobID: job.ID.String()})
	if err != nil {
		log.Error("executor.register.failed", "error", err)
		return nil, err.Error()
	}
	log.Info("executor.register.ok", "material_id", materialID)

	return &repository.Completion{
		Artifact: entity.Artifact{
			Name:       name,
			URL:        obj.URL,
			ByteSize:   size,
			MIMEType:   conv.MIMEType(),
			StorageID:  obj.StorageID,
			MaterialID: materialID,
		},
		Placeholders: doc.Placeholders,
	}, ""
}

// finalizeContext outlives the job deadline so a timed-out job still reaches
// a terminal state.
func (e *Executor) finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.finalizeTimeout)
}

func (e *Executor) complete(ctx context.Context, log *slog.Logger, job *entity.Job, c repository.Completion) error {
	fctx, cancel := e.finalizeContext(ctx)
	defer cancel()

	c.At = e.now().UTC()
	done, err := e.repo.Complete(fctx, job.ID, c)
	if err != nil {
		log.Error("executor.complete.failed", "error", err)
		return e.fail(ctx, log, job, fmt.Sprintf("finalize failed: %v", err))
	}
	log.Info("executor.completed", "url", done.Result.URL, "duration_ms", ptrValue(done.ProcessingDurationMs))
	return nil
}

func (e *Executor) fail(ctx context.Context, log *slog.Logger, job *entity.Job, detail string) error {
	fctx, cancel := e.finalizeContext(ctx)
	defer cancel()

	failed, err := e.repo.Fail(fctx, job.ID, detail, e.now().UTC())
	if err != nil {
		log.Error("executor.fail.write_failed", "detail", detail, "error", err)
		return fmt.Errorf("record failure of job %s: %w", job.ID, err)
	}
	log.Warn("executor.failed", "detail", detail, "duration_ms", ptrValue(failed.ProcessingDurationMs))
	return fmt.Errorf("job %s failed: %s", job.ID, detail)
}

// artifactName derives a file name from the job title, falling back to the
// job id.
func artifactName(job *entity.Job, ext string) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			return '-'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(job.Title))
	base = strings.Trim(base, ". ")
	if base == "" {
		base = "conversion-" + job.ID.String()
	}
	return base + ext
}

func ptrValue[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
