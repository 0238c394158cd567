package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"procurement-workflow/internal/sanitize"
)

// MemoryDSN selects the in-process document store instead of Postgres.
const MemoryDSN = "memory"

const collectionPathPattern = "artifacts/%s/public/data/procurement_processes"

var ErrConfigurationMissing = errors.New("backing store configuration missing")

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	StoreDSN      string `env:"POSTGRES_DSN"`
	ApplicationID string `env:"APP_ID" envDefault:"default-app-id"`

	ConfirmationEndpointURL string  `env:"CONFIRMATION_ENDPOINT_URL"`
	DeliveryEndpointURL     string  `env:"DELIVERY_ENDPOINT_URL"`
	DispatchTimeoutSec      int     `env:"DISPATCH_TIMEOUT_SEC" envDefault:"30"`
	DispatchMaxAttempts     int     `env:"DISPATCH_MAX_ATTEMPTS" envDefault:"1"`
	FallbackVerifiedRatio   float64 `env:"FALLBACK_VERIFIED_RATIO" envDefault:"0.3"`
	SerializeUploads        bool    `env:"SERIALIZE_UPLOADS" envDefault:"false"`
	MaxUploadBytes          int64   `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	TemporalAddress   string `env:"TEMPORAL_ADDRESS" envDefault:"localhost:7233"`
	TemporalNamespace string `env:"TEMPORAL_NAMESPACE" envDefault:"default"`
	TemporalTaskQueue string `env:"TEMPORAL_TASK_QUEUE" envDefault:"stage-verification-task-queue"`
	WorkflowIDPrefix  string `env:"WORKFLOW_ID_PREFIX" envDefault:"stage-verification"`

	MinioEndpoint      string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	MinioAccessKey     string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey     string `env:"MINIO_SECRET_KEY"`
	MinioUseSSL        bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinioArchiveBucket string `env:"MINIO_ARCHIVE_BUCKET"`
	MinioInboxBucket   string `env:"MINIO_INBOX_BUCKET" envDefault:"procurement-inbox"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.StoreDSN = strings.TrimSpace(cfg.StoreDSN)
	if cfg.StoreDSN == "" {
		return Config{}, fmt.Errorf("POSTGRES_DSN is required: %w", ErrConfigurationMissing)
	}
	cfg.ApplicationID = sanitize.String(cfg.ApplicationID)
	if cfg.ApplicationID == "" {
		return Config{}, fmt.Errorf("APP_ID is empty after sanitization: %w", ErrConfigurationMissing)
	}
	if cfg.DispatchMaxAttempts <= 0 {
		cfg.DispatchMaxAttempts = 1
	}
	if cfg.FallbackVerifiedRatio < 0 || cfg.FallbackVerifiedRatio > 1 {
		return Config{}, fmt.Errorf("FALLBACK_VERIFIED_RATIO must be within [0,1], got %v", cfg.FallbackVerifiedRatio)
	}

	return cfg, nil
}

// CollectionPath is the backing collection every component reads and writes.
func (c Config) CollectionPath() string {
	return fmt.Sprintf(collectionPathPattern, c.ApplicationID)
}

func (c Config) UsesMemoryStore() bool {
	return c.StoreDSN == MemoryDSN
}

func (c Config) DispatchTimeout() time.Duration {
	if c.DispatchTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.DispatchTimeoutSec) * time.Second
}

// NewLogger builds the root logger every binary scopes per subsystem.
func (c Config) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(c.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
