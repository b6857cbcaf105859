package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	driverrors "github.com/globomap/acs-driver/internal/errors"
	"github.com/globomap/acs-driver/internal/logger"
)

// NATSConfig configures the JetStream queue
type NATSConfig struct {
	URL           string
	Stream        string
	Subject       string
	Consumer      string
	FetchTimeout  time.Duration
	ReconnectWait time.Duration
	MaxReconnects int
}

// NATS pulls events from a durable JetStream consumer
type NATS struct {
	config NATSConfig
	nc     *nats.Conn
	js     nats.JetStreamContext
	sub    *nats.Subscription
	logger logger.Logger
}

var _ Queue = (*NATS)(nil)

// NewNATS connects and subscribes the durable pull consumer
func NewNATS(config NATSConfig, log logger.Logger) (*NATS, error) {
	if config.FetchTimeout == 0 {
		config.FetchTimeout = 2 * time.Second
	}
	q := &NATS{
		config: config,
		logger: log.WithFields(map[string]interface{}{"stream": config.Stream, "consumer": config.Consumer}),
	}
	if err := q.connect(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *NATS) connect() error {
	opts := []nats.Option{
		nats.Name("globomap-acs"),
		nats.MaxReconnects(q.config.MaxReconnects),
		nats.ReconnectWait(q.config.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				q.logger.Warn(fmt.Sprintf("NATS disconnected: %v", err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			q.logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(q.config.URL, opts...)
	if err != nil {
		return driverrors.TransportError(driverrors.ComponentNATS, "failed to connect to NATS", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return driverrors.TransportError(driverrors.ComponentNATS, "failed to get JetStream context", err)
	}

	q.nc = nc
	q.js = js
	return nil
}

func (q *NATS) subscribe() error {
	if q.sub != nil {
		return nil
	}
	sub, err := q.js.PullSubscribe(q.config.Subject, q.config.Consumer, nats.BindStream(q.config.Stream))
	if err != nil {
		return driverrors.TransportError(driverrors.ComponentNATS, "failed to subscribe", err)
	}
	q.sub = sub
	return nil
}

// Pull fetches one message, waiting at most FetchTimeout
func (q *NATS) Pull(ctx context.Context) (*Message, error) {
	if err := q.subscribe(); err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, q.config.FetchTimeout)
	defer cancel()

	msgs, err := q.sub.Fetch(1, nats.Context(fetchCtx))
	switch {
	case errors.Is(err, nats.ErrTimeout), errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, nil
	case err != nil:
		return nil, q.wrap("failed to fetch message", err)
	case len(msgs) == 0:
		return nil, nil
	}

	m := msgs[0]
	msg := NewMessage(m.Header.Get(nats.MsgIdHdr), m.Data, m)
	if meta, err := m.Metadata(); err == nil {
		msg.Redelivered = meta.NumDelivered > 1
	}
	return msg, nil
}

// Ack acknowledges msg
func (q *NATS) Ack(ctx context.Context, msg *Message) error {
	m, err := natsMsg(msg)
	if err != nil {
		return err
	}
	return q.wrap("failed to ack message", m.Ack(nats.Context(ctx)))
}

// Nack asks JetStream to redeliver msg
func (q *NATS) Nack(ctx context.Context, msg *Message) error {
	m, err := natsMsg(msg)
	if err != nil {
		return err
	}
	return q.wrap("failed to nak message", m.Nak(nats.Context(ctx)))
}

// Reject terminates msg so it is never redelivered
func (q *NATS) Reject(ctx context.Context, msg *Message) error {
	m, err := natsMsg(msg)
	if err != nil {
		return err
	}
	return q.wrap("failed to terminate message", m.Term(nats.Context(ctx)))
}

// Bind makes the stream capture "<exchange>.<key>" for every routing key,
// creating the stream when it does not exist
func (q *NATS) Bind(_ context.Context, exchange string, routingKeys []string) error {
	subjects := BindingSubjects(exchange, routingKeys)

	info, err := q.js.StreamInfo(q.config.Stream)
	if errors.Is(err, nats.ErrStreamNotFound) {
		_, err = q.js.AddStream(&nats.StreamConfig{
			Name:     q.config.Stream,
			Subjects: subjects,
		})
		if err != nil {
			return q.wrap("failed to create stream", err)
		}
		q.logger.WithField("subjects", subjects).Info("Stream created")
		return nil
	}
	if err != nil {
		return q.wrap("failed to read stream", err)
	}

	cfg := info.Config
	cfg.Subjects = mergeSubjects(cfg.Subjects, subjects)
	if _, err := q.js.UpdateStream(&cfg); err != nil {
		return q.wrap("failed to update stream", err)
	}
	q.logger.WithField("subjects", cfg.Subjects).Info("Stream subjects bound")
	return nil
}

// Reconnect closes the connection and connects again
func (q *NATS) Reconnect(_ context.Context) error {
	q.logger.Warn("Reconnecting to NATS")
	_ = q.Close()
	return q.connect()
}

// Close drops the subscription and the connection
func (q *NATS) Close() error {
	q.sub = nil
	if q.nc != nil {
		q.nc.Close()
	}
	return nil
}

func (q *NATS) wrap(message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrNoServers) {
		return fmt.Errorf("%s: %w: %v", message, ErrConnectionClosed, err)
	}
	return driverrors.TransportError(driverrors.ComponentNATS, message, err)
}

// BindingSubjects maps AMQP routing keys to NATS subjects under exchange
func BindingSubjects(exchange string, routingKeys []string) []string {
	subjects := make([]string, 0, len(routingKeys))
	for _, key := range routingKeys {
		subjects = append(subjects, exchange+"."+key)
	}
	return subjects
}

func mergeSubjects(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := append([]string(nil), existing...)
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range added {
		if !seen[s] {
			merged = append(merged, s)
			seen[s] = true
		}
	}
	return merged
}

func natsMsg(msg *Message) (*nats.Msg, error) {
	m, ok := msg.Token().(*nats.Msg)
	if !ok {
		return nil, fmt.Errorf("message %q was not pulled from NATS", msg.ID)
	}
	return m, nil
}
