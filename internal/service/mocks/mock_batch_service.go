package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"certgrouper/internal/model"
	"certgrouper/internal/service"
	"certgrouper/internal/storage"
)

type MockBatchService struct {
	mock.Mock
}

func (m *MockBatchService) Process(ctx context.Context, archives []model.InputArchive) (*model.BatchResult, error) {
	args := m.Called(ctx, archives)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BatchResult), args.Error(1)
}

func (m *MockBatchService) Preview(ctx context.Context, archives []model.InputArchive) (*model.Summary, error) {
	args := m.Called(ctx, archives)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Summary), args.Error(1)
}

func (m *MockBatchService) Publish(ctx context.Context, archives []model.InputArchive) (*model.PublishedBatch, error) {
	args := m.Called(ctx, archives)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PublishedBatch), args.Error(1)
}

func (m *MockBatchService) List(ctx context.Context, limit, offset int) (*service.BatchListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BatchListResult), args.Error(1)
}

func (m *MockBatchService) Get(ctx context.Context, id string) (*model.Batch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Batch), args.Error(1)
}

func (m *MockBatchService) Download(ctx context.Context, id string) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, id)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Get(1).(storage.ObjectInfo), args.Error(2)
}
