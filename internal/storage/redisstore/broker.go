package redisstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/joshu-sajeev/jobq/internal/models"
	"github.com/joshu-sajeev/jobq/internal/queue"
	goredis "github.com/redis/go-redis/v9"
)

//go:embed scripts/*.lua
var scriptFS embed.FS

func loadScript(name string) *goredis.Script {
	src, err := scriptFS.ReadFile("scripts/" + name)
	if err != nil {
		panic(fmt.Sprintf("read script %s: %v", name, err))
	}
	return goredis.NewScript(string(src))
}

var (
	promoteScript  = loadScript("promote.lua")
	claimScript    = loadScript("claim.lua")
	extendScript   = loadScript("extend.lua")
	completeScript = loadScript("complete.lua")
	requeueScript  = loadScript("requeue.lua")
	buryScript     = loadScript("bury.lua")
	purgeScript    = loadScript("purge.lua")
	reapScript     = loadScript("reap.lua")
	drainScript    = loadScript("drain.lua")
)

const batchLimit = 1000

// ErrNotInFlight is queue.ErrNotInFlight, kept here so callers of this
// package can match it without importing queue.
var ErrNotInFlight = queue.ErrNotInFlight

type Broker struct {
	client goredis.UniversalClient
	prefix string
}

var (
	_ queue.Broker      = (*Broker)(nil)
	_ queue.QueueLister = (*Broker)(nil)
)

func New(client goredis.UniversalClient, prefix string) *Broker {
	return &Broker{client: client, prefix: prefix}
}

func (b *Broker) Push(ctx context.Context, job *models.Job, delay time.Duration) error {
	k := b.keys(job.Queue)

	status := models.JobStatusPending
	if delay > 0 {
		status = models.JobStatusDelayed
	}
	fields := encodeJob(job, status)

	_, err := b.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, k.job(job.ID), fields)
		if delay > 0 {
			pipe.ZAdd(ctx, k.delayed, goredis.Z{
				Score:  float64(time.Now().Add(delay).UnixMilli()),
				Member: job.ID,
			})
		} else {
			pipe.LPush(ctx, k.pending, job.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("push job %s: %w", job.ID, err)
	}

	// lives outside the queue's hash slot, so it cannot join the transaction
	if err := b.client.SAdd(ctx, b.queuesKey(), job.Queue).Err(); err != nil {
		return fmt.Errorf("register queue %s: %w", job.Queue, err)
	}
	return nil
}

func (b *Broker) promote(ctx context.Context, k queueKeys) error {
	err := promoteScript.Run(ctx, b.client,
		[]string{k.delayed, k.pending},
		time.Now().UnixMilli(), batchLimit, k.jobPrefix,
	).Err()
	if err != nil {
		return fmt.Errorf("promote delayed jobs: %w", err)
	}
	return nil
}

// Claim promotes due delayed jobs, then blocks on the pending list. Redis
// only supports whole-second blocking timeouts, so wait is rounded up to 1s.
func (b *Broker) Claim(ctx context.Context, name string, wait, lease time.Duration) (*models.Job, error) {
	k := b.keys(name)

	if err := b.promote(ctx, k); err != nil {
		return nil, err
	}

	if wait < time.Second {
		wait = time.Second
	}
	id, err := b.client.BLMove(ctx, k.pending, k.inflight, "RIGHT", "LEFT", wait).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim from %s: %w", name, err)
	}

	expiry := time.Now().Add(lease).UnixMilli()
	res, err := claimScript.Run(ctx, b.client,
		[]string{k.job(id), k.inflight, k.leases},
		id, expiry,
	).Slice()
	if errors.Is(err, goredis.Nil) {
		// drained between the pop and the lease
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lease job %s: %w", id, err)
	}

	return decodeJob(res)
}

func (b *Broker) Extend(ctx context.Context, job *models.Job, lease time.Duration) error {
	k := b.keys(job.Queue)

	n, err := extendScript.Run(ctx, b.client,
		[]string{k.leases, k.job(job.ID)},
		job.ID, time.Now().Add(lease).UnixMilli(), job.AttemptsMade,
	).Int()
	if err != nil {
		return fmt.Errorf("extend lease of job %s: %w", job.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("extend lease of job %s: %w", job.ID, ErrNotInFlight)
	}
	return nil
}

func (b *Broker) Complete(ctx context.Context, job *models.Job) error {
	k := b.keys(job.Queue)

	n, err := completeScript.Run(ctx, b.client,
		[]string{k.job(job.ID), k.inflight, k.leases},
		job.ID, job.AttemptsMade,
	).Int()
	if err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("complete job %s: %w", job.ID, ErrNotInFlight)
	}
	return nil
}

func (b *Broker) Retry(ctx context.Context, job *models.Job, delay time.Duration) error {
	k := b.keys(job.Queue)

	var readyAt int64
	if delay > 0 {
		readyAt = time.Now().Add(delay).UnixMilli()
	}

	n, err := requeueScript.Run(ctx, b.client,
		[]string{k.job(job.ID), k.inflight, k.leases, k.pending, k.delayed},
		job.ID, readyAt, job.AttemptsMade,
	).Int()
	if err != nil {
		return fmt.Errorf("retry job %s: %w", job.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("retry job %s: %w", job.ID, ErrNotInFlight)
	}
	return nil
}

func (b *Broker) Bury(ctx context.Context, job *models.Job) error {
	k := b.keys(job.Queue)

	n, err := buryScript.Run(ctx, b.client,
		[]string{k.job(job.ID), k.inflight, k.leases, k.dead},
		job.ID, job.AttemptsMade,
	).Int()
	if err != nil {
		return fmt.Errorf("bury job %s: %w", job.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("bury job %s: %w", job.ID, ErrNotInFlight)
	}
	return nil
}

func (b *Broker) Purge(ctx context.Context, job *models.Job) error {
	k := b.keys(job.Queue)

	err := purgeScript.Run(ctx, b.client,
		[]string{k.dead, k.job(job.ID)},
		job.ID,
	).Err()
	if err != nil {
		return fmt.Errorf("purge job %s: %w", job.ID, err)
	}
	return nil
}

func (b *Broker) Drain(ctx context.Context, name string) (int, error) {
	k := b.keys(name)

	n, err := drainScript.Run(ctx, b.client,
		[]string{k.pending, k.delayed},
		k.jobPrefix,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("drain %s: %w", name, err)
	}
	return n, nil
}

func (b *Broker) Counts(ctx context.Context, name string) (queue.Counts, error) {
	k := b.keys(name)

	var pending, delayed, inflight, dead *goredis.IntCmd
	_, err := b.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pending = pipe.LLen(ctx, k.pending)
		delayed = pipe.ZCard(ctx, k.delayed)
		inflight = pipe.LLen(ctx, k.inflight)
		dead = pipe.LLen(ctx, k.dead)
		return nil
	})
	if err != nil {
		return queue.Counts{}, fmt.Errorf("counts %s: %w", name, err)
	}

	return queue.Counts{
		Pending:  pending.Val(),
		Delayed:  delayed.Val(),
		InFlight: inflight.Val(),
		Dead:     dead.Val(),
	}, nil
}

func (b *Broker) Reap(ctx context.Context, name string) (int, error) {
	k := b.keys(name)

	n, err := reapScript.Run(ctx, b.client,
		[]string{k.leases, k.inflight, k.pending},
		time.Now().UnixMilli(), batchLimit, k.jobPrefix,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("reap %s: %w", name, err)
	}
	return n, nil
}

// Queues lists every queue that has ever received a job.
func (b *Broker) Queues(ctx context.Context) ([]string, error) {
	names, err := b.client.SMembers(ctx, b.queuesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Broker) Close() error {
	return b.client.Close()
}

func encodeJob(job *models.Job, status models.JobStatus) map[string]any {
	return map[string]any{
		"id":            job.ID,
		"queue":         job.Queue,
		"payload":       string(job.Payload),
		"attempts_made": job.AttemptsMade,
		"max_attempts":  job.MaxAttempts,
		"created_at":    job.CreatedAt.UTC().Format(time.RFC3339Nano),
		"status":        string(status),
	}
}

func decodeJob(flat []any) (*models.Job, error) {
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("decode job: odd field count %d", len(flat))
	}

	fields := make(map[string]string, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		key, _ := flat[i].(string)
		val, _ := flat[i+1].(string)
		fields[key] = val
	}

	attempts, err := strconv.Atoi(fields["attempts_made"])
	if err != nil {
		return nil, fmt.Errorf("decode job %s: attempts_made: %w", fields["id"], err)
	}
	maxAttempts, err := strconv.Atoi(fields["max_attempts"])
	if err != nil {
		return nil, fmt.Errorf("decode job %s: max_attempts: %w", fields["id"], err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("decode job %s: created_at: %w", fields["id"], err)
	}

	return &models.Job{
		ID:           fields["id"],
		Queue:        fields["queue"],
		Payload:      []byte(fields["payload"]),
		AttemptsMade: attempts,
		MaxAttempts:  maxAttempts,
		Status:       models.JobStatus(fields["status"]),
		CreatedAt:    createdAt,
	}, nil
}
