package sink

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/globomap/acs-driver/pkg/types"
)

// MockSink is a mock implementation of Sink
type MockSink struct {
	mock.Mock
}

// Publish mocks the Publish method
func (m *MockSink) Publish(ctx context.Context, doc types.Document) error {
	return m.Called(ctx, doc).Error(0)
}

// MockBatchSink is a mock implementation of BatchSink
type MockBatchSink struct {
	MockSink
}

// PublishBatch mocks the PublishBatch method
func (m *MockBatchSink) PublishBatch(ctx context.Context, docs []types.Document) error {
	return m.Called(ctx, docs).Error(0)
}
