package job

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/jobq/internal/dto"
	"github.com/joshu-sajeev/jobq/internal/models"
)

// ErrAlreadyReplayed is returned by MarkReplayed when the failure already
// carries a replay stamp.
var ErrAlreadyReplayed = errors.New("failed job already replayed")

// FailureRepoInterface defines the contract for the failed job archive.
type FailureRepoInterface interface {
	Create(ctx context.Context, failed *models.FailedJob) error
	Get(ctx context.Context, id uint) (*models.FailedJob, error)
	List(ctx context.Context, queue string, limit int) ([]models.FailedJob, error)
	// MarkReplayed stamps a failure that was never replayed. It must be
	// atomic: a second caller gets ErrAlreadyReplayed.
	MarkReplayed(ctx context.Context, id uint, at time.Time) error
	ClearReplayed(ctx context.Context, id uint) error
}

// QueueServiceInterface defines the contract for the admin operations on queues.
type QueueServiceInterface interface {
	Enqueue(ctx context.Context, queue string, req *dto.EnqueueJobDTO) (*dto.EnqueueResponseDTO, error)
	Drain(ctx context.Context, queue string) (*dto.DrainResponseDTO, error)
	Stats(ctx context.Context, queue string) (*dto.QueueStatsDTO, error)
	ListFailures(ctx context.Context, queue string, limit int) ([]dto.FailedJobDTO, error)
	Replay(ctx context.Context, id uint) (*dto.EnqueueResponseDTO, error)
	Health(ctx context.Context) error
}

// QueueHandlerInterface defines the contract for HTTP request handlers.
type QueueHandlerInterface interface {
	Enqueue(c *gin.Context)
	Drain(c *gin.Context)
	Stats(c *gin.Context)
	ListFailures(c *gin.Context)
	Replay(c *gin.Context)
	Health(c *gin.Context)
}
