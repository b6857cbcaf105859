package queue

import (
	"context"
	"errors"
	"fmt"
	"io"

	amqp "github.com/rabbitmq/amqp091-go"

	driverrors "github.com/globomap/acs-driver/internal/errors"
	"github.com/globomap/acs-driver/internal/logger"
)

// Channel is the subset of *amqp.Channel the queue uses
type Channel interface {
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
	Reject(tag uint64, requeue bool) error
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Close() error
}

// Dialer opens a channel and returns it with the connection that owns it
type Dialer func(url string) (Channel, io.Closer, error)

// DialAMQP is the Dialer backed by amqp091-go
func DialAMQP(url string) (Channel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn, nil
}

// RabbitMQConfig configures the RabbitMQ queue
type RabbitMQConfig struct {
	URL   string
	Queue string
}

// RabbitMQ polls a RabbitMQ queue with basic.get
type RabbitMQ struct {
	config  RabbitMQConfig
	dial    Dialer
	channel Channel
	conn    io.Closer
	logger  logger.Logger
}

var _ Queue = (*RabbitMQ)(nil)

// NewRabbitMQ connects to the broker. A nil dial uses DialAMQP.
func NewRabbitMQ(config RabbitMQConfig, dial Dialer, log logger.Logger) (*RabbitMQ, error) {
	if dial == nil {
		dial = DialAMQP
	}
	q := &RabbitMQ{
		config: config,
		dial:   dial,
		logger: log.WithField("queue", config.Queue),
	}
	if err := q.connect(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *RabbitMQ) connect() error {
	ch, conn, err := q.dial(q.config.URL)
	if err != nil {
		return driverrors.TransportError(driverrors.ComponentRabbitMQ, "failed to connect to RabbitMQ", err)
	}
	q.channel = ch
	q.conn = conn
	q.logger.Debug("Connected to RabbitMQ")
	return nil
}

// Pull gets one message without auto-ack
func (q *RabbitMQ) Pull(_ context.Context) (*Message, error) {
	delivery, ok, err := q.channel.Get(q.config.Queue, false)
	if err != nil {
		return nil, q.wrap("failed to get message", err)
	}
	if !ok {
		return nil, nil
	}

	msg := NewMessage(delivery.MessageId, delivery.Body, delivery.DeliveryTag)
	msg.Redelivered = delivery.Redelivered
	return msg, nil
}

// Ack acknowledges msg
func (q *RabbitMQ) Ack(_ context.Context, msg *Message) error {
	tag, err := deliveryTag(msg)
	if err != nil {
		return err
	}
	return q.wrap("failed to ack message", q.channel.Ack(tag, false))
}

// Nack requeues msg
func (q *RabbitMQ) Nack(_ context.Context, msg *Message) error {
	tag, err := deliveryTag(msg)
	if err != nil {
		return err
	}
	return q.wrap("failed to nack message", q.channel.Nack(tag, false, true))
}

// Reject drops msg
func (q *RabbitMQ) Reject(_ context.Context, msg *Message) error {
	tag, err := deliveryTag(msg)
	if err != nil {
		return err
	}
	return q.wrap("failed to reject message", q.channel.Reject(tag, false))
}

// Bind binds the queue to exchange once per routing key
func (q *RabbitMQ) Bind(_ context.Context, exchange string, routingKeys []string) error {
	for _, key := range routingKeys {
		if err := q.channel.QueueBind(q.config.Queue, key, exchange, false, nil); err != nil {
			return q.wrap(fmt.Sprintf("failed to bind %s", key), err)
		}
		q.logger.WithFields(map[string]interface{}{
			"exchange":    exchange,
			"routing_key": key,
		}).Info("Queue bound")
	}
	return nil
}

// Reconnect drops the current connection and dials again
func (q *RabbitMQ) Reconnect(_ context.Context) error {
	q.logger.Warn("Reconnecting to RabbitMQ")
	_ = q.Close()
	return q.connect()
}

// Close closes the channel and its connection
func (q *RabbitMQ) Close() error {
	var errs []error
	if q.channel != nil {
		errs = append(errs, ignoreClosed(q.channel.Close()))
	}
	if q.conn != nil {
		errs = append(errs, ignoreClosed(q.conn.Close()))
	}
	return errors.Join(errs...)
}

// wrap maps broker side closures to ErrConnectionClosed
func (q *RabbitMQ) wrap(message string, err error) error {
	if err == nil {
		return nil
	}
	var amqpErr *amqp.Error
	if errors.Is(err, amqp.ErrClosed) || errors.As(err, &amqpErr) {
		return fmt.Errorf("%s: %w: %v", message, ErrConnectionClosed, err)
	}
	return driverrors.TransportError(driverrors.ComponentRabbitMQ, message, err)
}

func deliveryTag(msg *Message) (uint64, error) {
	tag, ok := msg.Token().(uint64)
	if !ok {
		return 0, fmt.Errorf("message %q was not pulled from RabbitMQ", msg.ID)
	}
	return tag, nil
}

func ignoreClosed(err error) error {
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}
