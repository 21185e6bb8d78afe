package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/joshu-sajeev/jobq/internal/job"
	"github.com/joshu-sajeev/jobq/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func seedFailure(t *testing.T, repo *FailureRepository, queue string, failedAt time.Time) *models.FailedJob {
	t.Helper()
	f := &models.FailedJob{
		JobID:       "job-" + failedAt.Format("150405.000"),
		Queue:       queue,
		Payload:     datatypes.JSON(`{"to":"a@example.com"}`),
		Error:       "boom",
		Attempts:    3,
		MaxAttempts: 3,
		FailedAt:    failedAt,
	}
	require.NoError(t, repo.Create(context.Background(), f))
	return f
}

func TestFailureRepository_Create(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(db *gorm.DB)
		wantErr bool
	}{
		{
			name:    "success case",
			wantErr: false,
		},
		{
			name: "error when db connection is closed",
			setup: func(db *gorm.DB) {
				sqlDB, _ := db.DB()
				sqlDB.Close()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := SetupTestDB(t)
			repo := NewFailureRepository(db)

			if tt.setup != nil {
				tt.setup(db)
			}

			f := &models.FailedJob{
				JobID:    "abc",
				Queue:    "emails",
				Payload:  datatypes.JSON(`{"x":1}`),
				FailedAt: time.Now().UTC(),
			}
			err := repo.Create(context.Background(), f)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "create failed job")
				return
			}

			require.NoError(t, err)
			assert.NotZero(t, f.ID)
		})
	}
}

func TestFailureRepository_Get(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewFailureRepository(db)
	created := seedFailure(t, repo, "emails", time.Now().UTC())

	t.Run("found", func(t *testing.T) {
		got, err := repo.Get(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.JobID, got.JobID)
		assert.Equal(t, "emails", got.Queue)
		assert.JSONEq(t, `{"to":"a@example.com"}`, string(got.Payload))
		assert.Nil(t, got.ReplayedAt)
	})

	t.Run("not found", func(t *testing.T) {
		got, err := repo.Get(context.Background(), 9999)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
		assert.Contains(t, err.Error(), "failed job not found")
	})
}

func TestFailureRepository_List(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewFailureRepository(db)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	seedFailure(t, repo, "emails", base)
	seedFailure(t, repo, "payments", base.Add(time.Minute))
	seedFailure(t, repo, "emails", base.Add(2*time.Minute))

	tests := []struct {
		name      string
		queue     string
		limit     int
		wantCount int
		wantFirst string
	}{
		{name: "all queues newest first", queue: "", limit: 10, wantCount: 3, wantFirst: "emails"},
		{name: "filtered by queue", queue: "payments", limit: 10, wantCount: 1, wantFirst: "payments"},
		{name: "limit applied", queue: "", limit: 2, wantCount: 2, wantFirst: "emails"},
		{name: "non-positive limit uses default", queue: "emails", limit: 0, wantCount: 2, wantFirst: "emails"},
		{name: "unknown queue", queue: "nope", limit: 10, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(context.Background(), tt.queue, tt.limit)
			require.NoError(t, err)
			require.Len(t, got, tt.wantCount)
			if tt.wantCount == 0 {
				return
			}
			assert.Equal(t, tt.wantFirst, got[0].Queue)
			for i := 1; i < len(got); i++ {
				assert.False(t, got[i].FailedAt.After(got[i-1].FailedAt), "results must be newest first")
			}
		})
	}
}

func TestFailureRepository_MarkReplayed(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewFailureRepository(db)
	created := seedFailure(t, repo, "emails", time.Now().UTC())

	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, repo.MarkReplayed(context.Background(), created.ID, at))

	got, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReplayedAt)
	assert.True(t, at.Equal(got.ReplayedAt.UTC()))

	err = repo.MarkReplayed(context.Background(), 4242, at)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestFailureRepository_MarkReplayedOnlyOnce(t *testing.T) {
	ctx := context.Background()
	db := SetupTestDB(t)
	repo := NewFailureRepository(db)
	created := seedFailure(t, repo, "emails", time.Now().UTC())

	first := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	second := first.Add(time.Hour)

	tests := []struct {
		name    string
		run     func() error
		wantErr error
		wantAt  *time.Time
	}{
		{
			name:   "first stamp wins",
			run:    func() error { return repo.MarkReplayed(ctx, created.ID, first) },
			wantAt: &first,
		},
		{
			name:    "second stamp is rejected",
			run:     func() error { return repo.MarkReplayed(ctx, created.ID, second) },
			wantErr: job.ErrAlreadyReplayed,
			wantAt:  &first,
		},
		{
			name: "clear removes the stamp",
			run:  func() error { return repo.ClearReplayed(ctx, created.ID) },
		},
		{
			name:   "stamp again after clearing",
			run:    func() error { return repo.MarkReplayed(ctx, created.ID, second) },
			wantAt: &second,
		},
	}

	for _, tt := range tests {
		err := tt.run()
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, tt.name)
		} else {
			require.NoError(t, err, tt.name)
		}

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		if tt.wantAt == nil {
			assert.Nil(t, got.ReplayedAt, tt.name)
			continue
		}
		require.NotNil(t, got.ReplayedAt, tt.name)
		assert.True(t, tt.wantAt.Equal(got.ReplayedAt.UTC()), tt.name)
	}
}

func TestFailureRepository_Archive(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewFailureRepository(db)

	j := &models.Job{
		ID:           "7f1c",
		Queue:        "webhooks",
		Payload:      json.RawMessage(`{"url":"https://example.com"}`),
		AttemptsMade: 5,
		MaxAttempts:  5,
	}
	require.NoError(t, repo.Archive(context.Background(), j, errors.New("status 502")))

	got, err := repo.List(context.Background(), "webhooks", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "7f1c", got[0].JobID)
	assert.Equal(t, "status 502", got[0].Error)
	assert.Equal(t, 5, got[0].Attempts)
	assert.Equal(t, 5, got[0].MaxAttempts)
	assert.JSONEq(t, `{"url":"https://example.com"}`, string(got[0].Payload))
	assert.False(t, got[0].FailedAt.IsZero())

	t.Run("nil cause leaves error empty", func(t *testing.T) {
		j2 := &models.Job{ID: "8a2d", Queue: "nil-cause", Payload: json.RawMessage(`{}`), MaxAttempts: 1}
		require.NoError(t, repo.Archive(context.Background(), j2, nil))

		got, err := repo.List(context.Background(), "nil-cause", 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Empty(t, got[0].Error)
	})
}
