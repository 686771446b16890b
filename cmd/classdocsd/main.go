package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/classdocs/internal/app"
	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/httpapi"
	"github.com/joseph-ayodele/classdocs/internal/materials"
	"github.com/joseph-ayodele/classdocs/internal/ports"
	"github.com/joseph-ayodele/classdocs/internal/server"
	"github.com/joseph-ayodele/classdocs/internal/storage"
)

const drainTimeout = 30 * time.Second

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := server.ConnectStores(ctx, cfg.Database, cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to open job store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	if err := stores.Ping(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping job store", "error", err)
		os.Exit(1)
	}

	uploader, artifactsDir, err := newUploader(cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to set up artifact storage", "error", err)
		os.Exit(1)
	}
	registrar, err := newRegistrar(cfg.Materials, logger)
	if err != nil {
		logger.Error("failed to set up material registrar", "error", err)
		os.Exit(1)
	}

	pipeline, err := app.NewPipeline(app.Deps{
		Jobs:      stores.Jobs,
		Uploader:  uploader,
		Registrar: registrar,
		Config:    cfg.Pipeline,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	conv, err := server.NewConversionServer(pipeline.Scheduler, pipeline.Reporter, pipeline.Export, logger)
	if err != nil {
		logger.Error("failed to build conversion service", "error", err)
		os.Exit(1)
	}
	grpcServer, healthServer := server.NewGRPCServer(conv, cfg.Server.MaxRequestBytes, logger)

	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		httpServer = &http.Server{
			Addr: cfg.Server.HTTPAddr,
			Handler: httpapi.NewRouter(pipeline.Scheduler, pipeline.Reporter, pipeline.Export, httpapi.Config{
				RequestTimeout:  cfg.Server.RequestTimeout,
				MaxRequestBytes: int64(cfg.Server.MaxRequestBytes),
				ArtifactsDir:    artifactsDir,
				Ping: func(ctx context.Context) error {
					return stores.Ping(ctx, 2*time.Second)
				},
			}, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("classdocs http listening", "addr", cfg.Server.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http serve error", "error", err)
				stop()
			}
		}()
	}

	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		go func() {
			logger.Info("classdocs grpc listening", "addr", cfg.Server.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC serve error", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down", "inflight", pipeline.Pool.Inflight())
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown error", "error", err)
		}
	}
	grpcServer.GracefulStop()
	if err := pipeline.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pipeline drain interrupted", "inflight", pipeline.Pool.Inflight(), "error", err)
	}
	logger.Info("stopped")
}

// newUploader returns the configured artifact store and, for local storage,
// the directory to serve artifacts from.
func newUploader(cfg common.StorageConfig, logger *slog.Logger) (ports.Uploader, string, error) {
	if cfg.Mode == "http" {
		return storage.NewHTTPStore(cfg.Endpoint, cfg.Token, cfg.Timeout, logger), "", nil
	}
	fs, err := storage.NewFSStore(cfg.Dir, cfg.BaseURL, logger)
	if err != nil {
		return nil, "", err
	}
	return fs, fs.Dir(), nil
}

func newRegistrar(cfg common.MaterialsConfig, logger *slog.Logger) (ports.Registrar, error) {
	if cfg.Endpoint == "" {
		logger.Warn("MATERIALS_ENDPOINT not set, materials are only logged")
		return materials.NewLogRegistrar(logger), nil
	}
	return materials.NewHTTPRegistrar(cfg.Endpoint, cfg.Token, cfg.Timeout, logger)
}
