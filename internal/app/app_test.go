package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joshu-sajeev/jobq/common"
	"github.com/joshu-sajeev/jobq/internal/config"
	"github.com/joshu-sajeev/jobq/internal/dto"
	"github.com/joshu-sajeev/jobq/internal/escalation"
	"github.com/joshu-sajeev/jobq/internal/storage/redisstore"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings(t *testing.T) *Settings {
	t.Helper()
	mr := miniredis.RunT(t)

	return &Settings{
		Queue: &config.Config{
			MaxAttempts:  3,
			BackoffBase:  0,
			BackoffMax:   time.Second,
			Lease:        time.Minute,
			ClaimWait:    time.Second,
			ReapInterval: time.Minute,
			ErrorPause:   time.Second,
			Concurrency:  1,
		},
		Redis: &redisstore.Config{
			URL:        "redis://" + mr.Addr(),
			KeyPrefix:  "apptest",
			MaxRetries: 0,
			RetryDelay: 10 * time.Millisecond,
		},
	}
}

func TestNewSink(t *testing.T) {
	t.Run("no dsn", func(t *testing.T) {
		sink, err := NewSink(&config.Config{})
		require.NoError(t, err)
		assert.IsType(t, escalation.NopSink{}, sink)
	})

	t.Run("sentry dsn", func(t *testing.T) {
		sink, err := NewSink(&config.Config{SentryDSN: "https://public@sentry.example.com/1", SentryEnvironment: "test"})
		require.NoError(t, err)
		assert.IsType(t, &escalation.SentrySink{}, sink)
	})

	t.Run("malformed dsn", func(t *testing.T) {
		_, err := NewSink(&config.Config{SentryDSN: "not a dsn"})
		require.Error(t, err)

		var cfgErr *common.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "SENTRY_DSN", cfgErr.Setting)
	})
}

func TestNew_ProcessesJobs(t *testing.T) {
	log, _ := test.NewNullLogger()
	ctx := context.Background()

	a, err := New(ctx, testSettings(t), log)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Failures)
	require.NoError(t, a.Registry.Ping(ctx))

	var handled atomic.Int32
	p := a.Pool()
	require.NoError(t, p.Process("emails", func(ctx context.Context, payload json.RawMessage) error {
		handled.Add(1)
		return nil
	}))
	p.Start()
	defer p.Stop()

	resp, err := a.Service().Enqueue(ctx, "emails", &dto.EnqueueJobDTO{
		Payload: json.RawMessage(`{"to":"a@example.com","subject":"hi","body":"hello"}`),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)

	assert.Eventually(t, func() bool { return handled.Load() == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool {
		stats, err := a.Service().Stats(ctx, "emails")
		return err == nil && stats.Pending == 0 && stats.InFlight == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestApp_PoolUsesConfiguredJobTimeout(t *testing.T) {
	log, _ := test.NewNullLogger()
	ctx := context.Background()

	s := testSettings(t)
	s.Queue.MaxAttempts = 1
	s.Queue.JobTimeout = 50 * time.Millisecond

	a, err := New(ctx, s, log)
	require.NoError(t, err)
	defer a.Close()

	stopped := make(chan error, 1)
	p := a.Pool()
	require.NoError(t, p.Process("reports", func(ctx context.Context, payload json.RawMessage) error {
		<-ctx.Done()
		stopped <- ctx.Err()
		return ctx.Err()
	}))
	p.Start()
	defer p.Stop()

	_, err = a.Service().Enqueue(ctx, "reports", &dto.EnqueueJobDTO{Payload: json.RawMessage(`{"report_id":"r1"}`)})
	require.NoError(t, err)

	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("processor was not stopped by the job timeout")
	}
}

func TestNew_RedisUnreachable(t *testing.T) {
	log, _ := test.NewNullLogger()

	s := testSettings(t)
	s.Redis.URL = "redis://127.0.0.1:1"

	a, err := New(context.Background(), s, log)
	require.Error(t, err)
	assert.Nil(t, a)

	var cfgErr *common.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}
