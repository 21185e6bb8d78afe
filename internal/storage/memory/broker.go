// Package memory is an in-process Broker. It backs the worker and API tests
// and single-binary setups that do not need jobs to survive a restart.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joshu-sajeev/jobq/internal/models"
	"github.com/joshu-sajeev/jobq/internal/queue"
)

var ErrClosed = errors.New("memory broker closed")

type queueState struct {
	pending  []string
	delayed  map[string]time.Time
	inflight map[string]time.Time
	dead     map[string]struct{}
}

type Broker struct {
	mu     sync.Mutex
	jobs   map[string]*models.Job
	queues map[string]*queueState
	notify chan struct{}
	closed bool
}

var (
	_ queue.Broker      = (*Broker)(nil)
	_ queue.QueueLister = (*Broker)(nil)
)

func New() *Broker {
	return &Broker{
		jobs:   make(map[string]*models.Job),
		queues: make(map[string]*queueState),
		notify: make(chan struct{}),
	}
}

func (b *Broker) state(name string) *queueState {
	qs, ok := b.queues[name]
	if !ok {
		qs = &queueState{
			delayed:  make(map[string]time.Time),
			inflight: make(map[string]time.Time),
			dead:     make(map[string]struct{}),
		}
		b.queues[name] = qs
	}
	return qs
}

// wakeLocked releases every Claim blocked on the current notify channel.
func (b *Broker) wakeLocked() {
	close(b.notify)
	b.notify = make(chan struct{})
}

func (b *Broker) Push(ctx context.Context, job *models.Job, delay time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if _, exists := b.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	stored := job.Clone()
	qs := b.state(job.Queue)
	if delay > 0 {
		stored.Status = models.JobStatusDelayed
		qs.delayed[job.ID] = time.Now().Add(delay)
	} else {
		stored.Status = models.JobStatusPending
		qs.pending = append(qs.pending, job.ID)
	}
	b.jobs[job.ID] = stored
	b.wakeLocked()
	return nil
}

// promoteLocked moves due delayed jobs to the pending tail, earliest ready
// time first, and reports when the next one becomes due.
func (b *Broker) promoteLocked(qs *queueState, now time.Time) (next time.Time) {
	var due []string
	for id, at := range qs.delayed {
		if !at.After(now) {
			due = append(due, id)
			continue
		}
		if next.IsZero() || at.Before(next) {
			next = at
		}
	}
	sort.Slice(due, func(i, j int) bool {
		ai, aj := qs.delayed[due[i]], qs.delayed[due[j]]
		if ai.Equal(aj) {
			return due[i] < due[j]
		}
		return ai.Before(aj)
	})

	for _, id := range due {
		delete(qs.delayed, id)
		if j, ok := b.jobs[id]; ok {
			j.Status = models.JobStatusPending
			qs.pending = append(qs.pending, id)
		}
	}
	return next
}

func (b *Broker) Claim(ctx context.Context, name string, wait, lease time.Duration) (*models.Job, error) {
	deadline := time.Now().Add(wait)

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}

		now := time.Now()
		qs := b.state(name)
		nextDue := b.promoteLocked(qs, now)

		for len(qs.pending) > 0 {
			id := qs.pending[0]
			qs.pending = qs.pending[1:]

			job, ok := b.jobs[id]
			if !ok {
				continue
			}
			job.AttemptsMade++
			job.Status = models.JobStatusInFlight
			qs.inflight[id] = now.Add(lease)
			out := job.Clone()
			b.mu.Unlock()
			return out, nil
		}

		notify := b.notify
		b.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		sleep := remaining
		if !nextDue.IsZero() {
			if d := time.Until(nextDue); d < sleep {
				sleep = max(d, time.Millisecond)
			}
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// ownedLocked returns the stored job when the caller's copy is the one
// currently in flight.
func (b *Broker) ownedLocked(qs *queueState, job *models.Job) (*models.Job, error) {
	stored, ok := b.jobs[job.ID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", job.ID, queue.ErrNotInFlight)
	}
	if _, ok := qs.inflight[job.ID]; !ok || stored.AttemptsMade != job.AttemptsMade {
		return nil, fmt.Errorf("job %s: %w", job.ID, queue.ErrNotInFlight)
	}
	return stored, nil
}

func (b *Broker) Extend(ctx context.Context, job *models.Job, lease time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	qs := b.state(job.Queue)
	if _, err := b.ownedLocked(qs, job); err != nil {
		return err
	}
	qs.inflight[job.ID] = time.Now().Add(lease)
	return nil
}

func (b *Broker) Complete(ctx context.Context, job *models.Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	qs := b.state(job.Queue)
	if _, err := b.ownedLocked(qs, job); err != nil {
		return err
	}
	delete(qs.inflight, job.ID)
	delete(b.jobs, job.ID)
	return nil
}

func (b *Broker) Retry(ctx context.Context, job *models.Job, delay time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	qs := b.state(job.Queue)
	stored, err := b.ownedLocked(qs, job)
	if err != nil {
		return err
	}

	delete(qs.inflight, job.ID)
	if delay > 0 {
		stored.Status = models.JobStatusDelayed
		qs.delayed[job.ID] = time.Now().Add(delay)
	} else {
		stored.Status = models.JobStatusPending
		qs.pending = append(qs.pending, job.ID)
	}
	b.wakeLocked()
	return nil
}

func (b *Broker) Bury(ctx context.Context, job *models.Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	qs := b.state(job.Queue)
	stored, err := b.ownedLocked(qs, job)
	if err != nil {
		return err
	}

	delete(qs.inflight, job.ID)
	qs.dead[job.ID] = struct{}{}
	stored.Status = models.JobStatusDead
	return nil
}

func (b *Broker) Purge(ctx context.Context, job *models.Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	qs := b.state(job.Queue)
	if _, ok := qs.dead[job.ID]; !ok {
		return nil
	}
	delete(qs.dead, job.ID)
	delete(b.jobs, job.ID)
	return nil
}

func (b *Broker) Drain(ctx context.Context, name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	qs := b.state(name)
	n := 0
	for _, id := range qs.pending {
		if _, ok := b.jobs[id]; ok {
			delete(b.jobs, id)
			n++
		}
	}
	qs.pending = nil

	for id := range qs.delayed {
		delete(b.jobs, id)
		n++
	}
	qs.delayed = make(map[string]time.Time)
	return n, nil
}

func (b *Broker) Counts(ctx context.Context, name string) (queue.Counts, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	qs := b.state(name)
	return queue.Counts{
		Pending:  int64(len(qs.pending)),
		Delayed:  int64(len(qs.delayed)),
		InFlight: int64(len(qs.inflight)),
		Dead:     int64(len(qs.dead)),
	}, nil
}

func (b *Broker) Reap(ctx context.Context, name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	qs := b.state(name)
	var expired []string
	for id, exp := range qs.inflight {
		if exp.Before(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(qs.inflight, id)
		if j, ok := b.jobs[id]; ok {
			j.Status = models.JobStatusPending
			qs.pending = append([]string{id}, qs.pending...)
		}
	}
	if len(expired) > 0 {
		b.wakeLocked()
	}
	return len(expired), nil
}

func (b *Broker) Queues(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.queues))
	for name := range b.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (b *Broker) Ping(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		b.wakeLocked()
	}
	return nil
}
