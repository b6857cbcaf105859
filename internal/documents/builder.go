package documents

import (
	"context"
	"time"

	"github.com/globomap/acs-driver/internal/collectors"
	"github.com/globomap/acs-driver/internal/events"
	"github.com/globomap/acs-driver/internal/logger"
	"github.com/globomap/acs-driver/pkg/types"
)

// Options configures document synthesis
type Options struct {
	// Environment is the CloudStack region name stamped on every element
	Environment string
	// DefaultProcessID is the process every created VM is linked to
	DefaultProcessID string
	// Now returns the current time; time.Now when nil
	Now func() time.Time
}

// Builder produces the documents for one classified event
type Builder interface {
	Build(ctx context.Context, event events.Classified) ([]types.Document, error)
}

// Synthesizer turns raw events into documents by dispatching on the event
// category
type Synthesizer struct {
	base     *base
	builders map[events.Category]Builder
	logger   logger.Logger
}

// NewSynthesizer wires the builder of every handled category
func NewSynthesizer(inventory collectors.Inventory, opts Options, log logger.Logger) *Synthesizer {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	b := &base{
		inventory: inventory,
		opts:      opts,
		logger:    log,
	}
	vm := &vmUpdateBuilder{base: b}

	return &Synthesizer{
		base: b,
		builders: map[events.Category]Builder{
			events.VMCreate:            vm,
			events.VMUpgradeCompleted:  vm,
			events.VMPowerStateChanged: vm,
			events.VMDelete:            &vmDeleteBuilder{base: b},
			events.ZoneEdit:            &zoneBuilder{base: b},
		},
		logger: log,
	}
}

// Build classifies raw and returns its documents in publication order.
// Unrecognized events yield no documents and no error.
func (s *Synthesizer) Build(ctx context.Context, raw types.RawEvent) ([]types.Document, error) {
	event := events.NewClassified(raw)

	builder, ok := s.builders[event.Category]
	if !ok {
		s.logger.WithField("event", raw.String()).Debug("Ignoring unrecognized event")
		return nil, nil
	}

	docs, err := builder.Build(ctx, event)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"category":  string(event.Category),
		"resource":  event.ResourceID,
		"documents": len(docs),
	}).Debug("Built documents")

	return docs, nil
}

// Region returns the region node every zone_region edge points to
func (s *Synthesizer) Region() types.Document {
	return s.base.regionDocument()
}

// Environment returns the region name documents are stamped with
func (s *Synthesizer) Environment() string {
	return s.base.opts.Environment
}

// base holds what every builder shares
type base struct {
	inventory collectors.Inventory
	opts      Options
	logger    logger.Logger
}

func (b *base) now() int64 {
	return b.opts.Now().Unix()
}

// edge builds an UPDATE edge document keyed by id
func (b *base) edge(id, collection, from, to string) types.Document {
	element := &types.Edge{
		ID:        id,
		Provider:  ProviderGloboMap,
		Timestamp: b.now(),
		From:      from,
		To:        to,
		Properties: map[string]interface{}{
			"environment":   b.opts.Environment,
			"iaas_provider": IaaSProvider,
		},
		PropertiesMetadata: map[string]types.Property{
			"environment":   {Description: "Cloudstack Region"},
			"iaas_provider": {Description: "Iaas provider name"},
		},
	}
	return newDocument(types.ActionUpdate, collection, types.TypeEdges, element, id)
}
