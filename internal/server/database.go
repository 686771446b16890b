package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/classdocs/internal/common"
	repo "github.com/joseph-ayodele/classdocs/internal/repository"
)

// Stores holds the job repository selected by configuration together with
// the connections behind it.
type Stores struct {
	Jobs repo.JobRepository

	db     *sql.DB
	pool   *pgxpool.Pool
	redis  redis.UniversalClient
	logger *slog.Logger
}

// ConnectStores opens the configured job store (postgres, sqlite or memory)
// and, when a Redis address is set, fronts it with the snapshot cache.
func ConnectStores(ctx context.Context, db common.DatabaseConfig, rc common.RedisConfig, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stores{logger: logger}

	switch db.Driver {
	case "postgres":
		sqlDB, pool, err := repo.OpenPostgres(ctx, repo.Config{
			DSN:              db.DSN,
			MaxConns:         db.MaxConns,
			MinConns:         db.MinConns,
			MaxConnLifetime:  db.MaxConnLifetime,
			MaxConnIdleTime:  db.MaxConnIdleTime,
			DialTimeout:      db.DialTimeout,
			StatementTimeout: db.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		s.db, s.pool = sqlDB, pool
		s.Jobs = repo.NewSQLJobRepository(sqlDB, repo.DialectPostgres, logger)
	case "sqlite":
		sqlDB, err := repo.OpenSQLite(ctx, db.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		s.db = sqlDB
		s.Jobs = repo.NewSQLJobRepository(sqlDB, repo.DialectSQLite, logger)
	case "memory":
		logger.Warn("using in-memory job store; jobs are lost on restart")
		s.Jobs = repo.NewMemoryJobRepository(logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", db.Driver)
	}

	if rc.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			s.Close()
			return nil, fmt.Errorf("connect redis %s: %w", rc.Addr, err)
		}
		logger.Info("job snapshot cache enabled", "addr", rc.Addr, "ttl", rc.SnapshotTTL)
		s.redis = client
		s.Jobs = repo.NewCachedJobRepository(s.Jobs, client, rc.SnapshotTTL, logger)
	}
	return s, nil
}

// Ping checks every backing connection.
func (s *Stores) Ping(ctx context.Context, timeout time.Duration) error {
	if s.db != nil {
		if err := repo.HealthCheck(ctx, s.db, timeout, s.logger); err != nil {
			return err
		}
	}
	if s.redis != nil {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := s.redis.Ping(pctx).Err(); err != nil {
			s.logger.Warn("redis ping failed", "error", err)
			return err
		}
	}
	return nil
}

// Close closes the database connections gracefully
func (s *Stores) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("failed to close redis client", "error", err)
		}
	}
	if s.db != nil || s.pool != nil {
		repo.Close(s.db, s.pool, s.logger)
	}
}
