// Package app assembles the conversion pipeline from its parts.
package app

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/classdocs/internal/async"
	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/core"
	"github.com/joseph-ayodele/classdocs/internal/core/render"
	"github.com/joseph-ayodele/classdocs/internal/core/staging"
	"github.com/joseph-ayodele/classdocs/internal/export"
	"github.com/joseph-ayodele/classdocs/internal/ports"
	"github.com/joseph-ayodele/classdocs/internal/repository"
)

// Deps are the collaborators the pipeline is built over.
type Deps struct {
	Jobs      repository.JobRepository
	Uploader  ports.Uploader
	Registrar ports.Registrar
	Config    common.PipelineConfig
	Logger    *slog.Logger
}

// Pipeline is the running conversion pipeline.
type Pipeline struct {
	Scheduler *core.Scheduler
	Reporter  *core.Reporter
	Executor  *core.Executor
	Export    *export.Service
	Pool      *async.Pool
	Area      staging.Area
}

func NewPipeline(d Deps) (*Pipeline, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	area, err := staging.New(d.Config.StagingDir, logger)
	if err != nil {
		return nil, err
	}

	converters := render.NewRegistry(render.Options{Concurrency: d.Config.RenderConcurrency, Logger: logger})
	pool := async.NewPool(logger,
		async.WithWorkers(d.Config.Workers),
		async.WithProcessTimeout(d.Config.JobTimeout),
	)
	executor := core.NewExecutor(d.Jobs, converters, d.Uploader, d.Registrar, logger)
	scheduler := core.NewScheduler(d.Jobs, area, pool, executor, logger,
		core.WithAdmissionRate(d.Config.AdmissionRate, d.Config.AdmissionBurst),
	)
	reporter := core.NewReporter(d.Jobs, logger)

	return &Pipeline{
		Scheduler: scheduler,
		Reporter:  reporter,
		Executor:  executor,
		Export:    export.NewService(reporter, logger),
		Pool:      pool,
		Area:      area,
	}, nil
}

// Shutdown stops accepting jobs and waits for running ones until ctx ends.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	return p.Pool.Shutdown(ctx)
}
