package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/jobq/common"
	"github.com/joshu-sajeev/jobq/internal/models"
)

// Queue is a handle on one named queue. Handles are obtained from a Registry
// and share its broker.
type Queue struct {
	name   string
	broker Broker
	opts   Options
}

type enqueueOptions struct {
	maxAttempts int
	delay       time.Duration
}

type EnqueueOption func(*enqueueOptions)

// WithMaxAttempts overrides the registry default retry budget for one job.
func WithMaxAttempts(n int) EnqueueOption {
	return func(o *enqueueOptions) { o.maxAttempts = n }
}

// WithDelay parks the job in the delayed set until d has elapsed.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) { o.delay = d }
}

func (q *Queue) Name() string { return q.name }

// Enqueue serializes payload to JSON and appends it to the queue. It returns
// the new job id.
func (q *Queue) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) (string, error) {
	o := enqueueOptions{maxAttempts: q.opts.MaxAttempts}
	for _, opt := range opts {
		opt(&o)
	}

	if o.maxAttempts < 1 {
		return "", &common.InvalidArgumentError{Arg: "maxAttempts", Reason: "must be at least 1"}
	}
	if o.delay < 0 {
		return "", &common.InvalidArgumentError{Arg: "delay", Reason: "must not be negative"}
	}

	raw, err := encodePayload(payload)
	if err != nil {
		return "", err
	}

	job := &models.Job{
		ID:          uuid.NewString(),
		Queue:       q.name,
		Payload:     raw,
		MaxAttempts: o.maxAttempts,
		Status:      models.JobStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if o.delay > 0 {
		job.Status = models.JobStatusDelayed
	}

	if err := q.broker.Push(ctx, job, o.delay); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", q.name, err)
	}
	return job.ID, nil
}

// Drain empties the pending and delayed jobs of the queue and reports how many
// were removed. Jobs already handed to a processor are not interrupted.
func (q *Queue) Drain(ctx context.Context) (int, error) {
	n, err := q.broker.Drain(ctx, q.name)
	if err != nil {
		return 0, fmt.Errorf("drain %s: %w", q.name, err)
	}
	return n, nil
}

func (q *Queue) Counts(ctx context.Context) (Counts, error) {
	c, err := q.broker.Counts(ctx, q.name)
	if err != nil {
		return Counts{}, fmt.Errorf("counts %s: %w", q.name, err)
	}
	return c, nil
}

func (q *Queue) RetryDelay(attempt int) time.Duration {
	return q.opts.RetryDelay(attempt)
}

func (q *Queue) Claim(ctx context.Context, wait, lease time.Duration) (*models.Job, error) {
	return q.broker.Claim(ctx, q.name, wait, lease)
}

func (q *Queue) Extend(ctx context.Context, job *models.Job, lease time.Duration) error {
	return q.broker.Extend(ctx, job, lease)
}

func (q *Queue) Complete(ctx context.Context, job *models.Job) error {
	return q.broker.Complete(ctx, job)
}

func (q *Queue) Retry(ctx context.Context, job *models.Job, delay time.Duration) error {
	return q.broker.Retry(ctx, job, delay)
}

func (q *Queue) Bury(ctx context.Context, job *models.Job) error {
	return q.broker.Bury(ctx, job)
}

func (q *Queue) Purge(ctx context.Context, job *models.Job) error {
	return q.broker.Purge(ctx, job)
}

func (q *Queue) Reap(ctx context.Context) (int, error) {
	return q.broker.Reap(ctx, q.name)
}

func encodePayload(payload any) (json.RawMessage, error) {
	var raw []byte
	switch p := payload.(type) {
	case nil:
		return nil, &common.InvalidArgumentError{Arg: "payload", Reason: "must not be nil"}
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, &common.InvalidArgumentError{Arg: "payload", Reason: "must be JSON-serializable: " + err.Error()}
		}
		raw = b
	}

	if !json.Valid(raw) {
		return nil, &common.InvalidArgumentError{Arg: "payload", Reason: "must be valid JSON"}
	}
	return append(json.RawMessage(nil), raw...), nil
}
