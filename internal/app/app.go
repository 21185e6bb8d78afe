// Package app wires the configuration, broker, escalation sink and optional
// failure archive shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/joshu-sajeev/jobq/internal/config"
	"github.com/joshu-sajeev/jobq/internal/escalation"
	"github.com/joshu-sajeev/jobq/internal/job"
	"github.com/joshu-sajeev/jobq/internal/pool"
	"github.com/joshu-sajeev/jobq/internal/queue"
	"github.com/joshu-sajeev/jobq/internal/storage/postgres"
	"github.com/joshu-sajeev/jobq/internal/storage/redisstore"
	"github.com/joshu-sajeev/jobq/internal/worker"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Settings groups the configuration of every component. Postgres is nil
// unless the failure archive is enabled.
type Settings struct {
	Queue    *config.Config
	Redis    *redisstore.Config
	Postgres *postgres.Config
}

func LoadSettings(ctx context.Context) (*Settings, error) {
	cfg, err := config.LoadConfigFromEnv(ctx)
	if err != nil {
		return nil, err
	}

	redisCfg, err := redisstore.LoadConfigFromEnv(ctx)
	if err != nil {
		return nil, err
	}

	s := &Settings{Queue: cfg, Redis: redisCfg}
	if cfg.ArchiveEnabled {
		if s.Postgres, err = postgres.LoadConfigFromEnv(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

type App struct {
	Settings *Settings
	Log      logrus.FieldLogger
	Redis    *goredis.Client
	Registry *queue.Registry
	Reporter *escalation.Reporter

	// nil when the archive is disabled
	DB       *gorm.DB
	Failures *postgres.FailureRepository
}

// New connects to Redis (and Postgres when the archive is enabled) and
// builds the registry and reporter. Every failure is a ConfigurationError.
func New(ctx context.Context, s *Settings, log logrus.FieldLogger) (*App, error) {
	client, err := redisstore.Connect(ctx, s.Redis, log)
	if err != nil {
		return nil, err
	}

	a := &App{Settings: s, Log: log, Redis: client}

	a.Registry = queue.NewRegistry(redisstore.New(client, s.Redis.KeyPrefix), queue.Options{
		MaxAttempts: s.Queue.MaxAttempts,
		BackoffBase: s.Queue.BackoffBase,
		BackoffMax:  s.Queue.BackoffMax,
	})

	sink, err := NewSink(s.Queue)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Reporter = escalation.NewReporter(sink, log)

	if s.Postgres != nil {
		if err := a.openArchive(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	log.WithFields(logrus.Fields{
		"sink":    fmt.Sprintf("%T", sink),
		"archive": a.Failures != nil,
	}).Info("jobq initialised")
	return a, nil
}

func (a *App) openArchive(ctx context.Context) error {
	db, err := postgres.ConnectDB(a.Settings.Postgres, a.Log)
	if err != nil {
		return err
	}
	a.DB = db

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql handle: %w", err)
	}
	if err := postgres.Migrate(ctx, sqlDB, a.Log); err != nil {
		return err
	}

	a.Failures = postgres.NewFailureRepository(db)
	return nil
}

// NewSink returns a sentry sink when a DSN is configured and a no-op sink
// otherwise.
func NewSink(cfg *config.Config) (escalation.Sink, error) {
	if cfg.SentryDSN == "" {
		return escalation.NopSink{}, nil
	}
	return escalation.NewSentrySink(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
	})
}

// Pool builds a worker pool over the registry using the configured defaults.
func (a *App) Pool() *pool.WorkerPool {
	deps := worker.Deps{Reporter: a.Reporter, Log: a.Log}
	if a.Failures != nil {
		deps.Archive = a.Failures
	}

	return pool.NewWorkerPool(a.Registry, worker.Settings{
		Lease:       a.Settings.Queue.Lease,
		ClaimWait:   a.Settings.Queue.ClaimWait,
		ErrorPause:  a.Settings.Queue.ErrorPause,
		Concurrency: a.Settings.Queue.Concurrency,
		JobTimeout:  a.Settings.Queue.JobTimeout,
	}, deps, a.Settings.Queue.ReapInterval)
}

// Service builds the admin service behind the HTTP API.
func (a *App) Service() *job.QueueService {
	if a.Failures == nil {
		return job.NewQueueService(a.Registry, nil)
	}
	return job.NewQueueService(a.Registry, a.Failures)
}

func (a *App) Close() error {
	var errs []error
	if a.Registry != nil {
		errs = append(errs, a.Registry.Close())
	} else if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
