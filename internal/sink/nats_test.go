package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	driverrors "github.com/globomap/acs-driver/internal/errors"
	"github.com/globomap/acs-driver/internal/logger"
)

type fakePublisher struct {
	subjects []string
	bodies   [][]byte
	opts     [][]nats.PubOpt
	err      error
}

func (f *fakePublisher) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subjects = append(f.subjects, subj)
	f.bodies = append(f.bodies, data)
	f.opts = append(f.opts, opts)
	return &nats.PubAck{Stream: "GLOBOMAP", Sequence: uint64(len(f.bodies))}, nil
}

func TestNATSSink_Publish(t *testing.T) {
	pub := &fakePublisher{}
	s := NewNATSPublisher("globomap.updates", pub, logger.NewDiscard())

	require.NoError(t, s.Publish(context.Background(), hostEdgeDoc("1")))

	require.Len(t, pub.bodies, 1)
	assert.Equal(t, "globomap.updates", pub.subjects[0])
	assert.Len(t, pub.opts[0], 2, "message id and context")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.bodies[0], &body))
	assert.Equal(t, "edges", body["type"])
	element := body["element"].(map[string]interface{})
	assert.Equal(t, "comp_unit/globomap_1", element["from"])
}

func TestNATSSink_PublishError(t *testing.T) {
	s := NewNATSPublisher("globomap.updates", &fakePublisher{err: errors.New("no responders")}, logger.NewDiscard())

	err := s.Publish(context.Background(), compUnitDoc("1"))
	require.Error(t, err)
	assert.True(t, driverrors.IsType(err, driverrors.ErrorTypePublish))
	assert.NoError(t, s.Close())
}

func TestNATSSink_JetStream(t *testing.T) {
	ns, err := server.NewServer(&server.Options{Port: -1, JetStream: true, StoreDir: t.TempDir()})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server failed to start")
	}
	defer ns.Shutdown()

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()
	js, err := nc.JetStream()
	require.NoError(t, err)
	_, err = js.AddStream(&nats.StreamConfig{Name: "GLOBOMAP", Subjects: []string{"globomap.updates"}})
	require.NoError(t, err)

	s, err := NewNATS(NATSConfig{URL: ns.ClientURL(), Subject: "globomap.updates"}, logger.NewDiscard())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Publish(ctx, compUnitDoc("1")))
	require.NoError(t, s.Publish(ctx, hostEdgeDoc("1")))

	info, err := js.StreamInfo("GLOBOMAP")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.State.Msgs)

	stored, err := js.GetMsg("GLOBOMAP", 1)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(stored.Data, &body))
	assert.Equal(t, "comp_unit", body["collection"])
}
