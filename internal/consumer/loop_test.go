package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/globomap/acs-driver/internal/logger"
	"github.com/globomap/acs-driver/internal/metrics"
	"github.com/globomap/acs-driver/internal/queue"
	"github.com/globomap/acs-driver/internal/sink"
	"github.com/globomap/acs-driver/pkg/types"
)

type mockBuilder struct {
	mock.Mock
}

func (m *mockBuilder) Build(ctx context.Context, event types.RawEvent) ([]types.Document, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Document), args.Error(1)
}

func doc(collection string) types.Document {
	return types.Document{Action: types.ActionPatch, Collection: collection, Type: types.TypeCollections, Key: "globomap_1"}
}

var createBody = []byte(`{"event":"VM.CREATE","resource":"com.cloud.vm.VirtualMachine","id":"1"}`)

type fixture struct {
	queue   *queue.MockQueue
	builder *mockBuilder
	sink    *sink.MockSink
	loop    *Loop
}

func newFixture() *fixture {
	f := &fixture{
		queue:   &queue.MockQueue{},
		builder: &mockBuilder{},
		sink:    &sink.MockSink{},
	}
	f.loop = NewLoop(f.queue, f.builder, f.sink, metrics.New(), logger.NewDiscard())
	return f
}

func TestLoop_AcksAfterAllDocumentsPublished(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := queue.NewMessage("m1", createBody, nil)
	docs := []types.Document{doc("comp_unit"), doc("host_comp_unit"), doc("zone")}

	f.queue.On("Pull", ctx).Return(msg, nil).Once()
	f.queue.On("Pull", ctx).Return(nil, nil).Once()
	f.builder.On("Build", ctx, mock.MatchedBy(func(e types.RawEvent) bool { return e.ID == "1" })).Return(docs, nil)
	for _, d := range docs {
		f.sink.On("Publish", ctx, d).Return(nil).Once()
	}
	f.queue.On("Ack", ctx, msg).Return(nil).Once()

	stats, err := f.loop.Drain(ctx)
	require.NoError(t, err)

	assert.Equal(t, Stats{Acked: 1, Documents: 3}, stats)
	f.sink.AssertNumberOfCalls(t, "Publish", 3)
	f.queue.AssertExpectations(t)
	f.queue.AssertNotCalled(t, "Nack", mock.Anything, mock.Anything)
}

func TestLoop_PublishFailureNacksOnceAndStops(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := queue.NewMessage("m1", createBody, nil)
	docs := []types.Document{doc("comp_unit"), doc("host_comp_unit"), doc("zone")}

	f.queue.On("Pull", ctx).Return(msg, nil).Once()
	f.builder.On("Build", ctx, mock.Anything).Return(docs, nil)
	f.sink.On("Publish", ctx, docs[0]).Return(nil).Once()
	f.sink.On("Publish", ctx, docs[1]).Return(errors.New("loader unavailable")).Once()
	f.queue.On("Nack", ctx, msg).Return(nil).Once()

	_, err := f.loop.Drain(ctx)
	assert.EqualError(t, err, "loader unavailable")

	f.queue.AssertNumberOfCalls(t, "Nack", 1)
	f.queue.AssertNotCalled(t, "Ack", mock.Anything, mock.Anything)
	f.queue.AssertNumberOfCalls(t, "Pull", 1)
	f.sink.AssertNotCalled(t, "Publish", ctx, docs[2])
}

func TestLoop_BuildFailureNacks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := queue.NewMessage("m1", createBody, nil)

	f.queue.On("Pull", ctx).Return(msg, nil).Once()
	f.builder.On("Build", ctx, mock.Anything).Return(nil, errors.New("listVirtualMachines failed"))
	f.queue.On("Nack", ctx, msg).Return(nil).Once()

	_, err := f.loop.Drain(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listVirtualMachines failed")
	f.queue.AssertNotCalled(t, "Ack", mock.Anything, mock.Anything)
}

func TestLoop_UnrecognizedEventIsAcked(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := queue.NewMessage("m1", []byte(`{"event":"SNAPSHOT.CREATE"}`), nil)

	f.queue.On("Pull", ctx).Return(msg, nil).Once()
	f.queue.On("Pull", ctx).Return(nil, nil).Once()
	f.builder.On("Build", ctx, mock.Anything).Return(nil, nil)
	f.queue.On("Ack", ctx, msg).Return(nil).Once()

	stats, err := f.loop.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Acked)
	f.sink.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestLoop_RejectsUndecodableMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	poison := queue.NewMessage("bad", []byte(`["not","an","object"]`), nil)
	good := queue.NewMessage("good", createBody, nil)

	f.queue.On("Pull", ctx).Return(poison, nil).Once()
	f.queue.On("Pull", ctx).Return(good, nil).Once()
	f.queue.On("Pull", ctx).Return(nil, nil).Once()
	f.queue.On("Reject", ctx, poison).Return(nil).Once()
	f.builder.On("Build", ctx, mock.Anything).Return([]types.Document{doc("comp_unit")}, nil)
	f.sink.On("Publish", ctx, mock.Anything).Return(nil)
	f.queue.On("Ack", ctx, good).Return(nil).Once()

	stats, err := f.loop.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Acked: 1, Rejected: 1, Documents: 1}, stats)
	f.builder.AssertNumberOfCalls(t, "Build", 1)
}

func TestLoop_ReconnectsOnConnectionClosed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := queue.NewMessage("m1", createBody, nil)

	f.queue.On("Pull", ctx).Return(nil, queue.ErrConnectionClosed).Once()
	f.queue.On("Reconnect", ctx).Return(nil).Once()
	f.queue.On("Pull", ctx).Return(msg, nil).Once()
	f.queue.On("Pull", ctx).Return(nil, nil).Once()
	f.builder.On("Build", ctx, mock.Anything).Return([]types.Document{doc("comp_unit")}, nil)
	f.sink.On("Publish", ctx, mock.Anything).Return(nil)
	f.queue.On("Ack", ctx, msg).Return(nil).Once()

	stats, err := f.loop.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Reconnects)
	assert.Equal(t, 1, stats.Acked)
}

func TestLoop_ReconnectsWhenAckLosesConnection(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := queue.NewMessage("m1", createBody, nil)

	f.queue.On("Pull", ctx).Return(msg, nil).Once()
	f.queue.On("Pull", ctx).Return(nil, nil).Once()
	f.builder.On("Build", ctx, mock.Anything).Return([]types.Document{doc("comp_unit")}, nil)
	f.sink.On("Publish", ctx, mock.Anything).Return(nil)
	f.queue.On("Ack", ctx, msg).Return(queue.ErrConnectionClosed).Once()
	f.queue.On("Reconnect", ctx).Return(nil).Once()

	stats, err := f.loop.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Acked)
	assert.Equal(t, 1, stats.Reconnects)
}

func TestLoop_ReconnectFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.queue.On("Pull", ctx).Return(nil, queue.ErrConnectionClosed).Once()
	f.queue.On("Reconnect", ctx).Return(errors.New("connection refused")).Once()

	_, err := f.loop.Drain(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLoop_GivesUpAfterRepeatedReconnects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.queue.On("Pull", ctx).Return(nil, queue.ErrConnectionClosed)
	f.queue.On("Reconnect", ctx).Return(nil)

	_, err := f.loop.Drain(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, queue.ErrConnectionClosed)
	f.queue.AssertNumberOfCalls(t, "Reconnect", maxReconnects)
}

func TestLoop_FollowStopsOnCancel(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())

	pulls := 0
	f.queue.On("Pull", mock.Anything).Return(nil, nil).Run(func(mock.Arguments) {
		pulls++
		if pulls == 3 {
			cancel()
		}
	})

	err := f.loop.Follow(ctx, time.Millisecond)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, pulls, 3)
}

func TestLoop_FollowReturnsPublishFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := queue.NewMessage("m1", createBody, nil)

	f.queue.On("Pull", ctx).Return(msg, nil).Once()
	f.builder.On("Build", ctx, mock.Anything).Return([]types.Document{doc("comp_unit")}, nil)
	f.sink.On("Publish", ctx, mock.Anything).Return(errors.New("loader unavailable"))
	f.queue.On("Nack", ctx, msg).Return(nil).Once()

	err := f.loop.Follow(ctx, time.Millisecond)
	assert.EqualError(t, err, "loader unavailable")
}

func TestLoop_FollowReportsFailureRacingCancel(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msg := queue.NewMessage("m1", createBody, nil)

	f.queue.On("Pull", ctx).Return(msg, nil).Once()
	f.builder.On("Build", ctx, mock.Anything).Return([]types.Document{doc("comp_unit")}, nil)
	f.sink.On("Publish", ctx, mock.Anything).Return(errors.New("loader unavailable")).Run(func(mock.Arguments) {
		cancel()
	})
	f.queue.On("Nack", ctx, msg).Return(nil).Once()

	err := f.loop.Follow(ctx, time.Millisecond)
	assert.EqualError(t, err, "loader unavailable")
	f.queue.AssertExpectations(t)
}

func TestLoop_FollowTreatsCanceledPublishAsStop(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msg := queue.NewMessage("m1", createBody, nil)

	f.queue.On("Pull", ctx).Return(msg, nil).Once()
	f.builder.On("Build", ctx, mock.Anything).Return([]types.Document{doc("comp_unit")}, nil)
	f.sink.On("Publish", ctx, mock.Anything).Return(context.Canceled).Run(func(mock.Arguments) {
		cancel()
	})
	f.queue.On("Nack", ctx, msg).Return(nil).Once()

	assert.NoError(t, f.loop.Follow(ctx, time.Millisecond))
}
