package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/globomap/acs-driver/internal/logger"
	"github.com/globomap/acs-driver/pkg/types"
)

// RetryConfig bounds every delivery attempt
type RetryConfig struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// Retry wraps a sink with a per attempt deadline and retries with
// exponential backoff. It only reports success once the inner sink did.
type Retry struct {
	next   Sink
	config RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
	logger logger.Logger
}

var _ BatchSink = (*Retry)(nil)

// NewRetry wraps next
func NewRetry(next Sink, config RetryConfig, log logger.Logger) *Retry {
	return &Retry{
		next:   next,
		config: config,
		sleep:  sleepContext,
		logger: log,
	}
}

// Publish delivers doc
func (r *Retry) Publish(ctx context.Context, doc types.Document) error {
	return r.attempt(ctx, doc.Collection, func(ctx context.Context) error {
		return r.next.Publish(ctx, doc)
	})
}

// PublishBatch delivers docs as one unit when the inner sink supports
// batches, otherwise document by document with retries per document
func (r *Retry) PublishBatch(ctx context.Context, docs []types.Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch, ok := r.next.(BatchSink)
	if !ok {
		for _, doc := range docs {
			if err := r.Publish(ctx, doc); err != nil {
				return err
			}
		}
		return nil
	}
	return r.attempt(ctx, docs[0].Collection, func(ctx context.Context) error {
		return batch.PublishBatch(ctx, docs)
	})
}

func (r *Retry) attempt(ctx context.Context, collection string, publish func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := r.config.Backoff * time.Duration(1<<(attempt-1))
			r.logger.WithFields(map[string]interface{}{
				"collection": collection,
				"attempt":    attempt + 1,
				"wait":       wait.String(),
			}).Warn(fmt.Sprintf("Retrying publish: %v", err))
			if serr := r.sleep(ctx, wait); serr != nil {
				return err
			}
		}

		err = r.once(ctx, publish)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (r *Retry) once(ctx context.Context, publish func(ctx context.Context) error) error {
	if r.config.Timeout <= 0 {
		return publish(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()
	return publish(attemptCtx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
