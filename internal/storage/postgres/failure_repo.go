package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joshu-sajeev/jobq/internal/job"
	"github.com/joshu-sajeev/jobq/internal/models"
	"github.com/joshu-sajeev/jobq/internal/worker"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultListLimit = 50

type FailureRepository struct {
	db *gorm.DB
}

func NewFailureRepository(db *gorm.DB) *FailureRepository {
	return &FailureRepository{db: db}
}

var (
	_ job.FailureRepoInterface = (*FailureRepository)(nil)
	_ worker.FailureArchive    = (*FailureRepository)(nil)
)

// Create inserts a failed job record.
func (r *FailureRepository) Create(ctx context.Context, failed *models.FailedJob) error {
	if err := r.db.WithContext(ctx).Create(failed).Error; err != nil {
		return fmt.Errorf("create failed job: %w", err)
	}
	return nil
}

// Get retrieves a single archived failure by its ID.
func (r *FailureRepository) Get(ctx context.Context, id uint) (*models.FailedJob, error) {
	var failed models.FailedJob
	if err := r.db.WithContext(ctx).First(&failed, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed job not found: %w", err)
		}
		return nil, fmt.Errorf("get failed job: %w", err)
	}
	return &failed, nil
}

// List returns the most recent failures, newest first. An empty queue lists
// every queue; a non-positive limit falls back to 50.
func (r *FailureRepository) List(ctx context.Context, queue string, limit int) ([]models.FailedJob, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	q := r.db.WithContext(ctx).Order("failed_at DESC").Order("id DESC").Limit(limit)
	if queue != "" {
		q = q.Where("queue = ?", queue)
	}

	var failed []models.FailedJob
	if err := q.Find(&failed).Error; err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}
	return failed, nil
}

// MarkReplayed stamps the failure as re-enqueued at the given time. The
// update only matches a record that was never replayed, so of two concurrent
// callers exactly one succeeds and the other gets job.ErrAlreadyReplayed.
func (r *FailureRepository) MarkReplayed(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.FailedJob{}).
		Where("id = ? AND replayed_at IS NULL", id).
		Update("replayed_at", at)
	if res.Error != nil {
		return fmt.Errorf("mark replayed: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.FailedJob{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("mark replayed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed job not found: %w", gorm.ErrRecordNotFound)
	}
	return fmt.Errorf("mark replayed %d: %w", id, job.ErrAlreadyReplayed)
}

// ClearReplayed removes the replay stamp, used when the re-enqueue that
// followed MarkReplayed did not go through.
func (r *FailureRepository) ClearReplayed(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&models.FailedJob{}).
		Where("id = ?", id).
		Update("replayed_at", nil).Error
	if err != nil {
		return fmt.Errorf("clear replayed: %w", err)
	}
	return nil
}

// Archive records a terminally failed job.
func (r *FailureRepository) Archive(ctx context.Context, j *models.Job, cause error) error {
	failed := &models.FailedJob{
		JobID:       j.ID,
		Queue:       j.Queue,
		Payload:     datatypes.JSON(j.Payload),
		Attempts:    j.AttemptsMade,
		MaxAttempts: j.MaxAttempts,
		FailedAt:    time.Now().UTC(),
	}
	if cause != nil {
		failed.Error = cause.Error()
	}
	return r.Create(ctx, failed)
}
