// Package httpapi exposes the conversion pipeline over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/classdocs/internal/server"
)

// Config tunes the HTTP surface.
type Config struct {
	RequestTimeout  time.Duration
	MaxRequestBytes int64
	// ArtifactsDir, when set, is served read-only under /artifacts/.
	ArtifactsDir string
	// Ping reports backing store health for /healthz.
	Ping func(ctx context.Context) error
}

// NewRouter wires the conversion endpoints.
func NewRouter(submitter server.Submitter, status server.StatusService, exporter server.Exporter, cfg Config, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	h := &Handler{
		submitter: submitter,
		status:    status,
		exporter:  exporter,
		maxBytes:  cfg.MaxRequestBytes,
		ping:      cfg.Ping,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestLogger(&SlogFormatter{Logger: logger}))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/healthz", h.Health)

	if cfg.ArtifactsDir != "" {
		r.Handle("/artifacts/*", http.StripPrefix("/artifacts/", http.FileServer(http.Dir(cfg.ArtifactsDir))))
	}

	r.Route("/v1/conversions", func(r chi.Router) {
		r.Use(Owner)
		r.Post("/", h.Submit)
		r.Get("/", h.List)
		r.Get("/export.xlsx", h.Export)
		r.Get("/{id}", h.Get)
	})
	return r
}
