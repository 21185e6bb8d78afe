package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshu-sajeev/jobq/internal/cli"
	"github.com/joshu-sajeev/jobq/internal/config"
	"github.com/joshu-sajeev/jobq/internal/logging"
	"github.com/joshu-sajeev/jobq/internal/queue"
	"github.com/joshu-sajeev/jobq/internal/storage/postgres"
	"github.com/joshu-sajeev/jobq/internal/storage/redisstore"
)

func main() {
	log := logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	env := cli.Env{
		OpenRegistry: func(ctx context.Context) (*queue.Registry, error) {
			cfg, err := config.LoadConfigFromEnv(ctx)
			if err != nil {
				return nil, err
			}
			redisCfg, err := redisstore.LoadConfigFromEnv(ctx)
			if err != nil {
				return nil, err
			}
			client, err := redisstore.Connect(ctx, redisCfg, log)
			if err != nil {
				return nil, err
			}
			return queue.NewRegistry(redisstore.New(client, redisCfg.KeyPrefix), queue.Options{
				MaxAttempts: cfg.MaxAttempts,
				BackoffBase: cfg.BackoffBase,
				BackoffMax:  cfg.BackoffMax,
			}), nil
		},
		Migrate: func(ctx context.Context) error {
			pgCfg, err := postgres.LoadConfigFromEnv(ctx)
			if err != nil {
				return err
			}
			db, err := postgres.OpenSQL(pgCfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return postgres.Migrate(ctx, db, log)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRoot(env).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
