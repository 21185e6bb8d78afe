package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshu-sajeev/jobq/internal/app"
	"github.com/joshu-sajeev/jobq/internal/logging"
	"github.com/joshu-sajeev/jobq/internal/tasks"
	"github.com/joshu-sajeev/jobq/internal/worker"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx := context.Background()

	settings, err := app.LoadSettings(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}

	log := logging.New(settings.Queue.LogLevel, settings.Queue.LogFormat)
	log.Info("Starting Worker...")

	a, err := app.New(ctx, settings, log)
	if err != nil {
		log.WithError(err).Fatal("Startup failed")
	}
	defer a.Close()

	workerPool := a.Pool()
	t := tasks.New(log.WithField("component", "tasks"), nil)

	for name, processor := range t.Processors() {
		onFailed := func(ctx context.Context, payload json.RawMessage, cause error) error {
			log.WithField("queue", name).WithError(cause).Errorf("giving up on job: %s", payload)
			return nil
		}
		err := workerPool.Process(name, processor,
			worker.WithFailureHandler(onFailed),
			worker.WithJobTimeout(30*time.Second),
		)
		if err != nil {
			log.WithError(err).Fatalf("Failed to register %s", name)
		}
	}

	workerPool.Start()
	log.Info("Worker pool active. Press Ctrl+C to stop.")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	workerPool.Stop()
	log.Info("Shutdown complete.")
}
