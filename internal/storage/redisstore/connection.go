// Package redisstore is the Redis-backed Broker. Every queue keeps its lists,
// sorted sets and job hashes under one hash tag so multi-key scripts stay on a
// single cluster slot.
package redisstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joshu-sajeev/jobq/common"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

type Config struct {
	URL        string        `env:"REDIS_URL,required"`
	KeyPrefix  string        `env:"REDIS_KEY_PREFIX,default=jobq"`
	MaxRetries int           `env:"REDIS_CONNECT_RETRIES,default=5"`
	RetryDelay time.Duration `env:"REDIS_CONNECT_DELAY,default=1s"`
	Options    *goredis.Options
}

// to help with testing
var envProcess = envconfig.Process

func LoadConfigFromEnv(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, &common.ConfigurationError{Setting: "REDIS", Err: fmt.Errorf("failed to process env config: %w", err)}
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, &common.ConfigurationError{Setting: "REDIS", Err: fmt.Errorf("config validation failed: %w", err)}
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	if strings.TrimSpace(cfg.URL) == "" {
		errors = append(errors, "REDIS_URL is required")
	} else {
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			errors = append(errors, fmt.Sprintf("REDIS_URL is invalid: %v", err))
		} else {
			cfg.Options = opts
		}
	}

	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		errors = append(errors, "REDIS_KEY_PREFIX is required")
	}

	if cfg.MaxRetries < 0 {
		errors = append(errors, "REDIS_CONNECT_RETRIES must be non-negative")
	}

	if cfg.RetryDelay <= 0 {
		errors = append(errors, "REDIS_CONNECT_DELAY must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// Connect opens a client and pings it until it answers or the retry budget is
// spent. An unreachable server is reported as a ConfigurationError.
func Connect(ctx context.Context, cfg *Config, log logrus.FieldLogger) (*goredis.Client, error) {
	if cfg == nil {
		loaded, err := LoadConfigFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if cfg.Options == nil {
		if err := validateConfig(cfg); err != nil {
			return nil, &common.ConfigurationError{Setting: "REDIS", Err: err}
		}
	}

	client := goredis.NewClient(cfg.Options)
	log = log.WithField("addr", cfg.Options.Addr)

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(cfg.MaxRetries), retry.NewConstant(cfg.RetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := client.Ping(pingCtx).Err(); err != nil {
			log.WithError(err).Warnf("[REDIS] attempt %d/%d failed, retrying in %v", attempt, cfg.MaxRetries+1, cfg.RetryDelay)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, &common.ConfigurationError{
			Setting: "REDIS_URL",
			Err:     fmt.Errorf("redis unreachable after %d attempts: %w", attempt, err),
		}
	}

	log.Info("[REDIS] Connected successfully")
	return client, nil
}
