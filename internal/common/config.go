package common

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	Server    ServerConfig
	Database  DatabaseConfig  `envPrefix:"DB_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Storage   StorageConfig   `envPrefix:"STORAGE_"`
	Materials MaterialsConfig `envPrefix:"MATERIALS_"`
	Pipeline  PipelineConfig  `envPrefix:"PIPELINE_"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string        `env:"GRPC_ADDR"            envDefault:":8080"`
	HTTPAddr       string        `env:"HTTP_ADDR"            envDefault:":8081"`
	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
	// MaxRequestBytes bounds one submission (gRPC message or multipart body).
	MaxRequestBytes int `env:"MAX_REQUEST_BYTES" envDefault:"301989888"`
}

// DatabaseConfig holds job store configuration
type DatabaseConfig struct {
	// Driver selects the job repository: postgres, sqlite or memory.
	Driver           string        `env:"DRIVER"            envDefault:"sqlite"`
	DSN              string        `env:"URL"`
	SQLitePath       string        `env:"SQLITE_PATH"       envDefault:"classdocs.db"`
	MaxConns         int32         `env:"MAX_CONNS"         envDefault:"20"`
	MinConns         int32         `env:"MIN_CONNS"         envDefault:"2"`
	MaxConnLifetime  time.Duration `env:"MAX_CONN_LIFETIME" envDefault:"30m"`
	MaxConnIdleTime  time.Duration `env:"MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DialTimeout      time.Duration `env:"DIAL_TIMEOUT"      envDefault:"3s"`
	StatementTimeout time.Duration `env:"STATEMENT_TIMEOUT" envDefault:"0s"`
}

// RedisConfig holds the terminal snapshot cache configuration.
// An empty Addr disables the cache.
type RedisConfig struct {
	Addr        string        `env:"ADDR"`
	Password    string        `env:"PASSWORD"`
	DB          int           `env:"DB"           envDefault:"0"`
	SnapshotTTL time.Duration `env:"SNAPSHOT_TTL" envDefault:"1h"`
}

// StorageConfig holds artifact storage configuration
type StorageConfig struct {
	// Mode is fs (local directory) or http (remote object store).
	Mode     string        `env:"MODE"     envDefault:"fs"`
	Dir      string        `env:"DIR"      envDefault:"./artifacts"`
	BaseURL  string        `env:"BASE_URL" envDefault:"http://localhost:8081/artifacts"`
	Endpoint string        `env:"ENDPOINT"`
	Token    string        `env:"TOKEN"`
	Timeout  time.Duration `env:"TIMEOUT"  envDefault:"60s"`
}

// MaterialsConfig holds the class-material registry client configuration.
// An empty Endpoint selects the logging registrar.
type MaterialsConfig struct {
	Endpoint string        `env:"ENDPOINT"`
	Token    string        `env:"TOKEN"`
	Timeout  time.Duration `env:"TIMEOUT"  envDefault:"15s"`
}

// PipelineConfig holds conversion pipeline tuning
type PipelineConfig struct {
	Workers           int           `env:"WORKERS"            envDefault:"4"`
	JobTimeout        time.Duration `env:"JOB_TIMEOUT"        envDefault:"5m"`
	RenderConcurrency int           `env:"RENDER_CONCURRENCY" envDefault:"4"`
	// StagingDir holds staged uploads on disk; empty keeps them in memory.
	StagingDir     string  `env:"STAGING_DIR"`
	AdmissionRate  float64 `env:"ADMISSION_RATE"  envDefault:"0"`
	AdmissionBurst int     `env:"ADMISSION_BURST" envDefault:"5"`
}

var (
	databaseDrivers = []string{"postgres", "sqlite", "memory"}
	storageModes    = []string{"fs", "http"}
)

// LoadConfig loads configuration from the environment, reading a .env file
// first when one exists.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return &cfg, nil
}

// ParseConfig builds a Config from an explicit environment map.
func ParseConfig(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return &cfg, nil
}

// Sanitize applies guardrails to tuning values.
func (c *Config) Sanitize() {
	if c.Pipeline.Workers < 0 {
		c.Pipeline.Workers = 0
	}
	if c.Pipeline.RenderConcurrency < 1 {
		c.Pipeline.RenderConcurrency = 1
	}
	if c.Pipeline.AdmissionBurst < 1 {
		c.Pipeline.AdmissionBurst = 1
	}
	if c.Pipeline.JobTimeout <= 0 {
		c.Pipeline.JobTimeout = 5 * time.Minute
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if !slices.Contains(databaseDrivers, c.Database.Driver) {
		return NewAppError(CodeConfig, "DB_DRIVER must be one of postgres, sqlite, memory", ErrInvalidInput)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required for the postgres driver", ErrInvalidInput)
	}
	if !slices.Contains(storageModes, c.Storage.Mode) {
		return NewAppError(CodeConfig, "STORAGE_MODE must be fs or http", ErrInvalidInput)
	}
	if c.Storage.Mode == "http" && c.Storage.Endpoint == "" {
		return NewAppError(CodeConfig, "STORAGE_ENDPOINT is required for http storage", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfig, "at least one of GRPC_ADDR or HTTP_ADDR is required", ErrInvalidInput)
	}
	return nil
}
