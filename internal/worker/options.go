package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/joshu-sajeev/jobq/common"
)

// Processor handles one job payload. A nil return marks the attempt as
// succeeded.
type Processor func(ctx context.Context, payload json.RawMessage) error

// FailureHandler is called once a job has failed terminally, with the
// normalized error of the last attempt.
type FailureHandler func(ctx context.Context, payload json.RawMessage, err error) error

type Option func(*Worker) error

// WithFailureHandler sets the callback invoked after the last attempt fails.
func WithFailureHandler(h FailureHandler) Option {
	return func(w *Worker) error {
		if h == nil {
			return &common.InvalidArgumentError{Arg: "onFailed", Reason: "must not be nil"}
		}
		w.onFailed = h
		return nil
	}
}

// WithConcurrency sets how many jobs of the registration may run at once.
func WithConcurrency(n int) Option {
	return func(w *Worker) error {
		if n < 1 {
			return &common.InvalidArgumentError{Arg: "concurrency", Reason: "must be at least 1"}
		}
		w.concurrency = n
		return nil
	}
}

// WithJobTimeout bounds each processor call. Zero means no timeout.
func WithJobTimeout(d time.Duration) Option {
	return func(w *Worker) error {
		if d < 0 {
			return &common.InvalidArgumentError{Arg: "jobTimeout", Reason: "must not be negative"}
		}
		w.jobTimeout = d
		return nil
	}
}

func noopFailureHandler(context.Context, json.RawMessage, error) error { return nil }
