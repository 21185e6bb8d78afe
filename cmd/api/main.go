package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/jobq/internal/app"
	"github.com/joshu-sajeev/jobq/internal/job"
	"github.com/joshu-sajeev/jobq/internal/logging"
	"github.com/joshu-sajeev/jobq/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx := context.Background()

	settings, err := app.LoadSettings(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}

	log := logging.New(settings.Queue.LogLevel, settings.Queue.LogFormat)
	log.Info("Starting API...")

	a, err := app.New(ctx, settings, log)
	if err != nil {
		log.WithError(err).Fatal("Startup failed")
	}
	defer a.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.ErrorHandler())
	job.RegisterRoutes(router, job.NewQueueHandler(a.Service()))

	srv := &http.Server{
		Addr:              settings.Queue.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP shutdown failed")
	}
	a.Reporter.Flush(5 * time.Second)
	log.Info("Shutdown complete.")
}
