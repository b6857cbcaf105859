package queue

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockQueue is a mock implementation of Queue
type MockQueue struct {
	mock.Mock
}

// Pull mocks the Pull method
func (m *MockQueue) Pull(ctx context.Context) (*Message, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Message), args.Error(1)
}

// Ack mocks the Ack method
func (m *MockQueue) Ack(ctx context.Context, msg *Message) error {
	return m.Called(ctx, msg).Error(0)
}

// Nack mocks the Nack method
func (m *MockQueue) Nack(ctx context.Context, msg *Message) error {
	return m.Called(ctx, msg).Error(0)
}

// Reject mocks the Reject method
func (m *MockQueue) Reject(ctx context.Context, msg *Message) error {
	return m.Called(ctx, msg).Error(0)
}

// Bind mocks the Bind method
func (m *MockQueue) Bind(ctx context.Context, exchange string, routingKeys []string) error {
	return m.Called(ctx, exchange, routingKeys).Error(0)
}

// Reconnect mocks the Reconnect method
func (m *MockQueue) Reconnect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Close mocks the Close method
func (m *MockQueue) Close() error {
	return m.Called().Error(0)
}
