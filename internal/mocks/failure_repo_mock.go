package mocks

import (
	"context"
	"time"

	"github.com/joshu-sajeev/jobq/internal/models"
	"github.com/stretchr/testify/mock"
)

type FailureRepoMock struct {
	mock.Mock
}

func (m *FailureRepoMock) Create(ctx context.Context, failed *models.FailedJob) error {
	args := m.Called(ctx, failed)
	return args.Error(0)
}

func (m *FailureRepoMock) Get(ctx context.Context, id uint) (*models.FailedJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FailedJob), args.Error(1)
}

func (m *FailureRepoMock) List(ctx context.Context, queue string, limit int) ([]models.FailedJob, error) {
	args := m.Called(ctx, queue, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FailedJob), args.Error(1)
}

func (m *FailureRepoMock) MarkReplayed(ctx context.Context, id uint, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *FailureRepoMock) ClearReplayed(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *FailureRepoMock) Archive(ctx context.Context, job *models.Job, cause error) error {
	args := m.Called(ctx, job, cause)
	return args.Error(0)
}
