package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	driverrors "github.com/globomap/acs-driver/internal/errors"
	"github.com/globomap/acs-driver/internal/logger"
	"github.com/globomap/acs-driver/pkg/types"
)

// Confirmer waits for the broker to confirm one publishing
type Confirmer interface {
	WaitContext(ctx context.Context) (bool, error)
}

// PublishChannel is the subset of *amqp.Channel the publisher uses
type PublishChannel interface {
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmer, error)
	Close() error
}

// PublishDialer opens a confirm mode channel and returns it with the
// connection that owns it
type PublishDialer func(url string) (PublishChannel, io.Closer, error)

type amqpChannel struct {
	ch *amqp.Channel
}

func (c amqpChannel) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmer, error) {
	dc, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return nil, err
	}
	return dc, nil
}

func (c amqpChannel) Close() error {
	return c.ch.Close()
}

// DialAMQPConfirm is the PublishDialer backed by amqp091-go
func DialAMQPConfirm(url string) (PublishChannel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	return amqpChannel{ch: ch}, conn, nil
}

// RabbitMQConfig configures the loader exchange publisher
type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// RabbitMQ publishes documents to the loader exchange and waits for the
// broker confirm of each one
type RabbitMQ struct {
	config  RabbitMQConfig
	dial    PublishDialer
	channel PublishChannel
	conn    io.Closer
	logger  logger.Logger
}

var _ Sink = (*RabbitMQ)(nil)

// NewRabbitMQ connects the publisher. A nil dial uses DialAMQPConfirm.
func NewRabbitMQ(config RabbitMQConfig, dial PublishDialer, log logger.Logger) (*RabbitMQ, error) {
	if dial == nil {
		dial = DialAMQPConfirm
	}
	s := &RabbitMQ{
		config: config,
		dial:   dial,
		logger: log.WithFields(map[string]interface{}{"exchange": config.Exchange, "routing_key": config.RoutingKey}),
	}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RabbitMQ) connect() error {
	ch, conn, err := s.dial(s.config.URL)
	if err != nil {
		return driverrors.TransportError(driverrors.ComponentRabbitMQ, "failed to connect loader publisher", err)
	}
	s.channel = ch
	s.conn = conn
	return nil
}

// Publish sends doc and returns once the broker confirmed it. A lost
// connection is re-established for the next call.
func (s *RabbitMQ) Publish(ctx context.Context, doc types.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return driverrors.PublishError(driverrors.ComponentLoader, doc.Collection,
			fmt.Errorf("failed to marshal document: %w", err))
	}

	if s.channel == nil {
		if err := s.connect(); err != nil {
			return err
		}
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	}

	confirm, err := s.channel.Publish(ctx, s.config.Exchange, s.config.RoutingKey, msg)
	if err != nil {
		s.dropConnection(err)
		return driverrors.PublishError(driverrors.ComponentRabbitMQ, doc.Collection, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		s.dropConnection(err)
		return driverrors.PublishError(driverrors.ComponentRabbitMQ, doc.Collection, err)
	}
	if !acked {
		return driverrors.PublishError(driverrors.ComponentRabbitMQ, doc.Collection,
			errors.New("broker did not confirm the message"))
	}
	return nil
}

func (s *RabbitMQ) dropConnection(err error) {
	var amqpErr *amqp.Error
	if !errors.Is(err, amqp.ErrClosed) && !errors.As(err, &amqpErr) {
		return
	}
	s.logger.Warn(fmt.Sprintf("Loader publisher connection lost: %v", err))
	_ = s.Close()
}

// Close closes the channel and its connection
func (s *RabbitMQ) Close() error {
	var err error
	if s.channel != nil {
		err = s.channel.Close()
		s.channel = nil
	}
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
		s.conn = nil
	}
	return err
}
