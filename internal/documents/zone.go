package documents

import (
	"context"
	"fmt"

	"github.com/globomap/acs-driver/internal/events"
	"github.com/globomap/acs-driver/pkg/types"
)

// zoneBuilder refreshes a zone node after its allocation state changed
type zoneBuilder struct {
	*base
}

func (b *zoneBuilder) Build(ctx context.Context, event events.Classified) ([]types.Document, error) {
	zone, err := b.inventory.GetZoneByID(ctx, event.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("get zone %s: %w", event.ResourceID, err)
	}
	if zone == nil {
		b.logger.WithField("zone", event.ResourceID).Debug("Zone not found, nothing to update")
		return nil, nil
	}
	return []types.Document{b.zoneDocument(zone)}, nil
}

func (b *base) zoneDocument(zone *types.Zone) types.Document {
	element := &types.Element{
		ID:        zone.ID,
		Name:      zone.Name,
		Provider:  ProviderGloboMap,
		Timestamp: b.now(),
		Properties: map[string]interface{}{
			"uuid":          zone.ID,
			"state":         zone.AllocationState,
			"environment":   b.opts.Environment,
			"iaas_provider": IaaSProvider,
		},
		PropertiesMetadata: map[string]types.Property{
			"uuid":          {Description: "UUID"},
			"state":         {Description: "Zone state"},
			"environment":   {Description: "Cloudstack Region"},
			"iaas_provider": {Description: "IaaS provider"},
		},
	}
	return newDocument(types.ActionPatch, CollectionZone, types.TypeCollections, element, zone.ID)
}

func (b *base) regionDocument() types.Document {
	env := b.opts.Environment
	element := &types.Element{
		ID:        env,
		Name:      env,
		Provider:  ProviderGloboMap,
		Timestamp: b.now(),
		Properties: map[string]interface{}{
			"iaas_provider": IaaSProvider,
		},
		PropertiesMetadata: map[string]types.Property{
			"iaas_provider": {Description: "IaaS provider"},
		},
	}
	return newDocument(types.ActionPatch, CollectionRegion, types.TypeCollections, element, env)
}
