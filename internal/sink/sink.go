// Package sink delivers graph documents to the loader.
package sink

import (
	"context"

	"github.com/globomap/acs-driver/pkg/types"
)

// Sink accepts one document at a time. A nil error means the document was
// durably accepted downstream.
type Sink interface {
	Publish(ctx context.Context, doc types.Document) error
}

// BatchSink can accept several documents in one call
type BatchSink interface {
	Sink
	PublishBatch(ctx context.Context, docs []types.Document) error
}

// Func adapts a function to the Sink interface
type Func func(ctx context.Context, doc types.Document) error

// Publish calls f
func (f Func) Publish(ctx context.Context, doc types.Document) error {
	return f(ctx, doc)
}

// PublishAll sends docs in order, as one batch when s supports it, and stops
// at the first failure
func PublishAll(ctx context.Context, s Sink, docs []types.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if batch, ok := s.(BatchSink); ok {
		return batch.PublishBatch(ctx, docs)
	}
	for _, doc := range docs {
		if err := s.Publish(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}
