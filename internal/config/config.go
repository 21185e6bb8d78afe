package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joshu-sajeev/jobq/common"
	"github.com/sethvargo/go-envconfig"
)

// Config holds the queue and worker settings shared by every binary. Broker
// and database settings live next to their drivers in internal/storage.
type Config struct {
	MaxAttempts       int           `env:"JOB_MAX_ATTEMPTS,default=3"`
	BackoffBase       time.Duration `env:"JOB_BACKOFF_BASE,default=1s"`
	BackoffMax        time.Duration `env:"JOB_BACKOFF_MAX,default=1m"`
	Lease             time.Duration `env:"JOB_LEASE,default=1m"`
	ClaimWait         time.Duration `env:"CLAIM_WAIT,default=1s"`
	ReapInterval      time.Duration `env:"REAP_INTERVAL,default=30s"`
	Concurrency       int           `env:"WORKER_CONCURRENCY,default=1"`
	JobTimeout        time.Duration `env:"JOB_TIMEOUT,default=0s"`
	ErrorPause        time.Duration `env:"ERROR_PAUSE,default=1s"`
	SentryDSN         string        `env:"SENTRY_DSN"`
	SentryEnvironment string        `env:"SENTRY_ENVIRONMENT,default=development"`
	LogLevel          string        `env:"LOG_LEVEL,default=info"`
	LogFormat         string        `env:"LOG_FORMAT,default=text"`
	HTTPAddr          string        `env:"HTTP_ADDR,default=:8080"`
	ArchiveEnabled    bool          `env:"ARCHIVE_ENABLED,default=false"`
}

// to help with testing
var envProcess = envconfig.Process

func LoadConfigFromEnv(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, &common.ConfigurationError{Err: fmt.Errorf("failed to process env config: %w", err)}
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, &common.ConfigurationError{Err: fmt.Errorf("config validation failed: %w", err)}
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	if cfg.MaxAttempts < 1 {
		errors = append(errors, "JOB_MAX_ATTEMPTS must be at least 1")
	}

	if cfg.BackoffBase < 0 {
		errors = append(errors, "JOB_BACKOFF_BASE must not be negative")
	}

	if cfg.BackoffMax < cfg.BackoffBase {
		errors = append(errors, "JOB_BACKOFF_MAX must not be lower than JOB_BACKOFF_BASE")
	}

	if cfg.Lease <= 0 {
		errors = append(errors, "JOB_LEASE must be positive")
	}

	// go-redis rounds blocking timeouts to whole seconds
	if cfg.ClaimWait < time.Second {
		errors = append(errors, "CLAIM_WAIT must be at least 1s")
	}

	if cfg.ReapInterval <= 0 {
		errors = append(errors, "REAP_INTERVAL must be positive")
	}

	if cfg.Concurrency < 1 {
		errors = append(errors, "WORKER_CONCURRENCY must be at least 1")
	}

	// zero disables the timeout
	if cfg.JobTimeout < 0 {
		errors = append(errors, "JOB_TIMEOUT must not be negative")
	}

	if cfg.ErrorPause <= 0 {
		errors = append(errors, "ERROR_PAUSE must be positive")
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, "LOG_FORMAT must be text or json")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}
