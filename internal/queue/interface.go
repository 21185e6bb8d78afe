package queue

import (
	"context"
	"errors"
	"time"

	"github.com/joshu-sajeev/jobq/internal/models"
)

// ErrNotInFlight is returned by Extend, Complete, Retry and Bury when the
// caller no longer holds the job: its lease was reaped, and possibly the job
// was claimed again by another consumer. Brokers compare the attempt number
// of the claimed copy against the stored one, so a stale holder can never
// move the job.
var ErrNotInFlight = errors.New("job is not in flight")

// Broker is the storage and delivery backend shared by every queue handle of
// a Registry. Implementations must make claim atomic so a pending job is
// handed to exactly one consumer at a time.
type Broker interface {
	// Push appends job to the tail of the pending list, or parks it in the
	// delayed set when delay > 0.
	Push(ctx context.Context, job *models.Job, delay time.Duration) error

	// Claim waits up to wait for the oldest pending job, moves it in flight
	// under a lease and increments its attempt counter. It returns nil, nil
	// when nothing arrived in time.
	Claim(ctx context.Context, queue string, wait, lease time.Duration) (*models.Job, error)

	// Extend pushes the lease of an in-flight job forward. It fails with
	// ErrNotInFlight once the caller lost the job.
	Extend(ctx context.Context, job *models.Job, lease time.Duration) error

	// Complete removes a successful job permanently. Like Retry and Bury it
	// only acts on a job the caller still holds and otherwise returns
	// ErrNotInFlight without touching it.
	Complete(ctx context.Context, job *models.Job) error

	// Retry moves an in-flight job back to pending (or delayed when delay > 0).
	Retry(ctx context.Context, job *models.Job, delay time.Duration) error

	// Bury moves an in-flight job to the dead list while it is escalated.
	Bury(ctx context.Context, job *models.Job) error

	// Purge removes a dead job once escalation has finished. A job that is no
	// longer in the dead list is left alone.
	Purge(ctx context.Context, job *models.Job) error

	// Drain removes every pending and delayed job of queue. In-flight jobs
	// are left alone.
	Drain(ctx context.Context, queue string) (int, error)

	Counts(ctx context.Context, queue string) (Counts, error)

	// Reap returns in-flight jobs whose lease has expired to the head of the
	// pending list.
	Reap(ctx context.Context, queue string) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

// QueueLister is implemented by brokers that remember every queue they have
// seen, not just the ones resolved in this process.
type QueueLister interface {
	Queues(ctx context.Context) ([]string, error)
}

// Counts is a point-in-time view of a queue.
type Counts struct {
	Pending  int64
	Delayed  int64
	InFlight int64
	Dead     int64
}
