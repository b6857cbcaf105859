// Package consumer drains the CloudStack event queue into the loader.
//
// A message is acknowledged only after every document built for it was
// accepted by the sink. Any sink failure negatively acknowledges the message
// and stops the loop, so delivery is at least once.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/globomap/acs-driver/internal/events"
	"github.com/globomap/acs-driver/internal/logger"
	"github.com/globomap/acs-driver/internal/metrics"
	"github.com/globomap/acs-driver/internal/queue"
	"github.com/globomap/acs-driver/internal/sink"
	"github.com/globomap/acs-driver/pkg/types"
)

// maxReconnects bounds consecutive reconnections without a successful pull
const maxReconnects = 5

// DocumentBuilder turns one event into its documents
type DocumentBuilder interface {
	Build(ctx context.Context, event types.RawEvent) ([]types.Document, error)
}

// Loop pulls one message at a time, publishes its documents and settles it
type Loop struct {
	queue   queue.Queue
	builder DocumentBuilder
	sink    sink.Sink
	metrics *metrics.Metrics
	logger  logger.Logger
}

// Stats summarizes one drain
type Stats struct {
	Acked      int
	Rejected   int
	Documents  int
	Reconnects int
}

// NewLoop creates a loop. m may be nil.
func NewLoop(q queue.Queue, builder DocumentBuilder, s sink.Sink, m *metrics.Metrics, log logger.Logger) *Loop {
	return &Loop{
		queue:   q,
		builder: builder,
		sink:    s,
		metrics: m,
		logger:  log,
	}
}

// Drain processes messages until the queue is empty. It returns the first
// publish or build failure after negatively acknowledging its message.
func (l *Loop) Drain(ctx context.Context) (Stats, error) {
	var stats Stats
	reconnects := 0

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		msg, err := l.queue.Pull(ctx)
		if errors.Is(err, queue.ErrConnectionClosed) {
			if reconnects >= maxReconnects {
				return stats, fmt.Errorf("giving up after %d reconnects: %w", reconnects, err)
			}
			if err := l.reconnect(ctx, err); err != nil {
				return stats, err
			}
			reconnects++
			stats.Reconnects++
			continue
		}
		if err != nil {
			return stats, err
		}
		reconnects = 0

		if msg == nil {
			return stats, nil
		}

		if err := l.handle(ctx, msg, &stats); err != nil {
			if errors.Is(err, queue.ErrConnectionClosed) {
				// the broker redelivers the unsettled message after reconnecting
				if err := l.reconnect(ctx, err); err != nil {
					return stats, err
				}
				stats.Reconnects++
				continue
			}
			return stats, err
		}
	}
}

// Follow drains the queue every interval until ctx is cancelled. A drain
// failure stops following.
func (l *Loop) Follow(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		stats, err := l.Drain(ctx)
		if err != nil {
			// only the cancellation itself is a clean stop, a failure that
			// raced with it is still reported
			if ctx.Err() != nil && errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if stats.Acked > 0 || stats.Rejected > 0 {
			l.logger.WithFields(map[string]interface{}{
				"acked":     stats.Acked,
				"rejected":  stats.Rejected,
				"documents": stats.Documents,
			}).Info("Queue drained")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			l.logger.Info("Stopped following the queue")
			return nil
		}
	}
}

func (l *Loop) handle(ctx context.Context, msg *queue.Message, stats *Stats) error {
	log := l.logger.WithField("message_id", msg.ID)

	event, err := types.ParseRawEvent(msg.Body)
	if err != nil {
		log.Warn(fmt.Sprintf("Rejecting undecodable message: %v", err))
		if err := l.queue.Reject(ctx, msg); err != nil {
			return err
		}
		l.metrics.Message("rejected")
		stats.Rejected++
		return nil
	}

	l.metrics.Event(string(events.Classify(event)))
	log = log.WithField("event", event.String())

	docs, err := l.builder.Build(ctx, event)
	if err != nil {
		return l.nack(ctx, msg, log, fmt.Errorf("failed to build documents for %s: %w", event.Event, err))
	}

	start := time.Now()
	for _, doc := range docs {
		if err := l.sink.Publish(ctx, doc); err != nil {
			return l.nack(ctx, msg, log, err)
		}
		l.metrics.Published(doc.Collection, string(doc.Action))
	}
	if len(docs) > 0 {
		l.metrics.PublishDuration(time.Since(start))
	}

	if err := l.queue.Ack(ctx, msg); err != nil {
		return err
	}
	l.metrics.Message("acked")
	stats.Acked++
	stats.Documents += len(docs)

	log.WithField("documents", len(docs)).Debug("Message acknowledged")
	return nil
}

func (l *Loop) nack(ctx context.Context, msg *queue.Message, log logger.Logger, cause error) error {
	log.Error("Returning message to the queue", cause)
	l.metrics.Message("nacked")
	if err := l.queue.Nack(ctx, msg); err != nil {
		log.Error("Failed to nack message", err)
	}
	return cause
}

func (l *Loop) reconnect(ctx context.Context, cause error) error {
	l.logger.Warn(fmt.Sprintf("Queue connection lost, reconnecting: %v", cause))
	l.metrics.Reconnect()
	if err := l.queue.Reconnect(ctx); err != nil {
		return fmt.Errorf("failed to reconnect: %w", err)
	}
	return nil
}
