package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	driverrors "github.com/globomap/acs-driver/internal/errors"
	"github.com/globomap/acs-driver/internal/logger"
	"github.com/globomap/acs-driver/pkg/types"
)

// Publisher is the subset of nats.JetStreamContext the sink uses
type Publisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSConfig configures the JetStream loader publisher
type NATSConfig struct {
	URL           string
	Subject       string
	ReconnectWait time.Duration
	MaxReconnects int
}

// NATS publishes documents to a JetStream subject. Every document carries a
// fresh message id so the stream can deduplicate retries.
type NATS struct {
	subject   string
	publisher Publisher
	nc        *nats.Conn
	logger    logger.Logger
}

var _ Sink = (*NATS)(nil)

// NewNATS connects to the server and returns a sink publishing to
// config.Subject
func NewNATS(config NATSConfig, log logger.Logger) (*NATS, error) {
	log = log.WithField("subject", config.Subject)
	nc, err := nats.Connect(config.URL,
		nats.Name("globomap-acs-loader"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn(fmt.Sprintf("Loader NATS connection lost: %v", err))
			}
		}),
	)
	if err != nil {
		return nil, driverrors.TransportError(driverrors.ComponentNATS, "failed to connect loader publisher", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, driverrors.TransportError(driverrors.ComponentNATS, "failed to get JetStream context", err)
	}

	s := NewNATSPublisher(config.Subject, js, log)
	s.nc = nc
	return s, nil
}

// NewNATSPublisher wraps an existing publisher
func NewNATSPublisher(subject string, publisher Publisher, log logger.Logger) *NATS {
	return &NATS{subject: subject, publisher: publisher, logger: log}
}

// Publish sends doc and waits for the stream acknowledgement
func (s *NATS) Publish(ctx context.Context, doc types.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return driverrors.PublishError(driverrors.ComponentLoader, doc.Collection,
			fmt.Errorf("failed to marshal document: %w", err))
	}

	ack, err := s.publisher.Publish(s.subject, body, nats.MsgId(uuid.NewString()), nats.Context(ctx))
	if err != nil {
		return driverrors.PublishError(driverrors.ComponentNATS, doc.Collection, err)
	}
	if ack != nil {
		s.logger.WithFields(map[string]interface{}{
			"stream":   ack.Stream,
			"sequence": ack.Sequence,
		}).Debug("Document stored")
	}
	return nil
}

// Close closes the connection when the sink owns one
func (s *NATS) Close() error {
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}
