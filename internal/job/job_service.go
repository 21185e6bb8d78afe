package job

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/joshu-sajeev/jobq/common"
	"github.com/joshu-sajeev/jobq/internal/dto"
	"github.com/joshu-sajeev/jobq/internal/models"
	"github.com/joshu-sajeev/jobq/internal/queue"
	"gorm.io/gorm"
)

type QueueService struct {
	registry *queue.Registry
	failures FailureRepoInterface
}

// NewQueueService builds the admin service. failures may be nil when the
// archive is disabled; the failure endpoints then answer 501.
func NewQueueService(registry *queue.Registry, failures FailureRepoInterface) *QueueService {
	return &QueueService{registry: registry, failures: failures}
}

var _ QueueServiceInterface = (*QueueService)(nil)

var errArchiveDisabled = common.Errf(http.StatusNotImplemented, "failure archive is disabled")

// Enqueue validates the request against the queue's known payload shape and
// appends the job.
func (s *QueueService) Enqueue(ctx context.Context, name string, req *dto.EnqueueJobDTO) (*dto.EnqueueResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	if !json.Valid(req.Payload) {
		return nil, common.Errf(http.StatusBadRequest, "payload must be valid JSON")
	}

	q, err := s.registry.Get(name)
	if err != nil {
		return nil, common.ToAPIError(err, "invalid queue")
	}

	if err := validateQueuePayload(name, req.Payload); err != nil {
		return nil, err
	}

	var opts []queue.EnqueueOption
	if req.MaxAttempts > 0 {
		opts = append(opts, queue.WithMaxAttempts(req.MaxAttempts))
	}
	if req.DelayMs > 0 {
		opts = append(opts, queue.WithDelay(time.Duration(req.DelayMs)*time.Millisecond))
	}

	id, err := q.Enqueue(ctx, req.Payload, opts...)
	if err != nil {
		return nil, common.ToAPIError(err, "failed to enqueue job")
	}

	return &dto.EnqueueResponseDTO{ID: id, Queue: name}, nil
}

// Drain removes every job of the queue that is not already running.
func (s *QueueService) Drain(ctx context.Context, name string) (*dto.DrainResponseDTO, error) {
	q, err := s.registry.Get(name)
	if err != nil {
		return nil, common.ToAPIError(err, "invalid queue")
	}

	n, err := q.Drain(ctx)
	if err != nil {
		return nil, common.ToAPIError(err, "failed to drain queue")
	}
	return &dto.DrainResponseDTO{Queue: name, Drained: n}, nil
}

func (s *QueueService) Stats(ctx context.Context, name string) (*dto.QueueStatsDTO, error) {
	q, err := s.registry.Get(name)
	if err != nil {
		return nil, common.ToAPIError(err, "invalid queue")
	}

	c, err := q.Counts(ctx)
	if err != nil {
		return nil, common.ToAPIError(err, "failed to read queue stats")
	}
	return &dto.QueueStatsDTO{
		Queue:    name,
		Pending:  c.Pending,
		Delayed:  c.Delayed,
		InFlight: c.InFlight,
		Dead:     c.Dead,
	}, nil
}

// ListFailures returns archived failures, newest first.
func (s *QueueService) ListFailures(ctx context.Context, name string, limit int) ([]dto.FailedJobDTO, error) {
	if s.failures == nil {
		return nil, errArchiveDisabled
	}

	failed, err := s.failures.List(ctx, name, limit)
	if err != nil {
		return nil, common.ToAPIError(err, "failed to list failed jobs")
	}

	out := make([]dto.FailedJobDTO, 0, len(failed))
	for i := range failed {
		out = append(out, toFailedJobDTO(&failed[i]))
	}
	return out, nil
}

// Replay re-enqueues the payload of an archived failure with its original
// attempt budget. A failure can only be replayed once: the record is stamped
// before the enqueue, and the stamp is cleared again if the enqueue fails.
func (s *QueueService) Replay(ctx context.Context, id uint) (*dto.EnqueueResponseDTO, error) {
	if s.failures == nil {
		return nil, errArchiveDisabled
	}

	failed, err := s.failures.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.Errf(http.StatusNotFound, "failed job not found")
		}
		return nil, common.ToAPIError(err, "failed to get failed job")
	}

	if failed.ReplayedAt != nil {
		return nil, common.NewAPIError(http.StatusConflict, "failed job already replayed", map[string]any{
			"replayed_at": failed.ReplayedAt,
		})
	}

	q, err := s.registry.Get(failed.Queue)
	if err != nil {
		return nil, common.ToAPIError(err, "invalid queue")
	}

	if err := s.failures.MarkReplayed(ctx, id, time.Now().UTC()); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyReplayed):
			return nil, common.Errf(http.StatusConflict, "failed job already replayed")
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, common.Errf(http.StatusNotFound, "failed job not found")
		}
		return nil, common.ToAPIError(err, "failed to mark failed job as replayed")
	}

	jobID, err := q.Enqueue(ctx, json.RawMessage(failed.Payload), queue.WithMaxAttempts(max(failed.MaxAttempts, 1)))
	if err != nil {
		if clearErr := s.failures.ClearReplayed(context.WithoutCancel(ctx), id); clearErr != nil {
			return nil, common.ToAPIError(clearErr, "job not re-enqueued and archive still marked replayed")
		}
		return nil, common.ToAPIError(err, "failed to enqueue job")
	}

	return &dto.EnqueueResponseDTO{ID: jobID, Queue: failed.Queue}, nil
}

func (s *QueueService) Health(ctx context.Context) error {
	if err := s.registry.Ping(ctx); err != nil {
		return common.Errf(http.StatusServiceUnavailable, "queue backend unavailable")
	}
	return nil
}

func toFailedJobDTO(f *models.FailedJob) dto.FailedJobDTO {
	return dto.FailedJobDTO{
		ID:          f.ID,
		JobID:       f.JobID,
		Queue:       f.Queue,
		Payload:     json.RawMessage(f.Payload),
		Error:       f.Error,
		Attempts:    f.Attempts,
		MaxAttempts: f.MaxAttempts,
		FailedAt:    f.FailedAt,
		ReplayedAt:  f.ReplayedAt,
	}
}
