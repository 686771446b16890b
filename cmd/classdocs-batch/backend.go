package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joseph-ayodele/classdocs/internal/app"
	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/core"
	"github.com/joseph-ayodele/classdocs/internal/entity"
	"github.com/joseph-ayodele/classdocs/internal/materials"
	repo "github.com/joseph-ayodele/classdocs/internal/repository"
	"github.com/joseph-ayodele/classdocs/internal/server"
	"github.com/joseph-ayodele/classdocs/internal/storage"
)

// backend is where a batch runs: in-process or on a remote classdocsd.
type backend interface {
	core.StatusReader
	submit(ctx context.Context, req core.SubmitRequest) (uuid.UUID, error)
	report(ctx context.Context, owner string) ([]byte, error)
	close()
}

type localBackend struct {
	pipeline *app.Pipeline
	closeDB  func()
}

func newLocalBackend(ctx context.Context, dbPath, outDir string, logger *slog.Logger) (*localBackend, error) {
	db, err := repo.OpenSQLite(ctx, dbPath, logger)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(outDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store, err := storage.NewFSStore(abs, (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	p, err := app.NewPipeline(app.Deps{
		Jobs:      repo.NewSQLJobRepository(db, repo.DialectSQLite, logger),
		Uploader:  store,
		Registrar: materials.NewLogRegistrar(logger),
		Config:    common.PipelineConfig{Workers: 1, JobTimeout: 10 * time.Minute, RenderConcurrency: 4},
		Logger:    logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &localBackend{pipeline: p, closeDB: func() { repo.Close(db, nil, logger) }}, nil
}

func (b *localBackend) submit(ctx context.Context, req core.SubmitRequest) (uuid.UUID, error) {
	return b.pipeline.Scheduler.Submit(ctx, req)
}

func (b *localBackend) GetStatus(ctx context.Context, id uuid.UUID, owner string) (*entity.Job, error) {
	return b.pipeline.Reporter.GetStatus(ctx, id, owner)
}

func (b *localBackend) report(ctx context.Context, owner string) ([]byte, error) {
	return b.pipeline.Export.JobsXLSX(ctx, owner)
}

func (b *localBackend) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = b.pipeline.Shutdown(ctx)
	b.closeDB()
}

type remoteBackend struct {
	conn   *grpc.ClientConn
	client *server.Client
}

func newRemoteBackend(addr string) (*remoteBackend, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(512<<20)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &remoteBackend{conn: conn, client: server.NewClient(conn)}, nil
}

func (b *remoteBackend) submit(ctx context.Context, req core.SubmitRequest) (uuid.UUID, error) {
	images := make([]server.SubmitImage, len(req.Uploads))
	for i, up := range req.Uploads {
		images[i] = server.SubmitImage{Name: up.Name, MIMEType: up.MIMEType, Data: up.Data}
	}
	return b.client.Submit(ctx, req.Owner, server.SubmitPayload{
		TargetFormat: req.TargetFormat,
		Destination:  req.Destination,
		Title:        req.Title,
		Images:       images,
	})
}

func (b *remoteBackend) GetStatus(ctx context.Context, id uuid.UUID, owner string) (*entity.Job, error) {
	return b.client.GetStatus(ctx, id, owner)
}

func (b *remoteBackend) report(ctx context.Context, owner string) ([]byte, error) {
	return b.client.ExportJobs(ctx, owner)
}

func (b *remoteBackend) close() {
	_ = b.conn.Close()
}
