package mocks

import (
	"context"

	"github.com/joshu-sajeev/jobq/internal/dto"
	"github.com/stretchr/testify/mock"
)

type QueueServiceMock struct {
	mock.Mock
}

func (m *QueueServiceMock) Enqueue(ctx context.Context, queue string, req *dto.EnqueueJobDTO) (*dto.EnqueueResponseDTO, error) {
	args := m.Called(ctx, queue, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.EnqueueResponseDTO), args.Error(1)
}

func (m *QueueServiceMock) Drain(ctx context.Context, queue string) (*dto.DrainResponseDTO, error) {
	args := m.Called(ctx, queue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.DrainResponseDTO), args.Error(1)
}

func (m *QueueServiceMock) Stats(ctx context.Context, queue string) (*dto.QueueStatsDTO, error) {
	args := m.Called(ctx, queue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.QueueStatsDTO), args.Error(1)
}

func (m *QueueServiceMock) ListFailures(ctx context.Context, queue string, limit int) ([]dto.FailedJobDTO, error) {
	args := m.Called(ctx, queue, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dto.FailedJobDTO), args.Error(1)
}

func (m *QueueServiceMock) Replay(ctx context.Context, id uint) (*dto.EnqueueResponseDTO, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.EnqueueResponseDTO), args.Error(1)
}

func (m *QueueServiceMock) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
