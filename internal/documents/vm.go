package documents

import (
	"context"
	"fmt"

	"github.com/globomap/acs-driver/internal/events"
	"github.com/globomap/acs-driver/pkg/types"
)

// compUnitDescriptions documents every comp_unit property. The property set
// always carries exactly these keys.
var compUnitDescriptions = map[string]string{
	"uuid":             "UUID",
	"state":            "Power state",
	"host":             "Host name",
	"zone":             "Zone name",
	"service_offering": "Compute Offering",
	"cpu_cores":        "Number of CPU cores",
	"cpu_speed":        "CPU speed",
	"memory":           "RAM size",
	"template":         "Template name",
	"project":          "Project",
	"account":          "Account",
	"environment":      "Cloudstack Region",
	"iaas_provider":    "Iaas provider name",
	"creation_date":    "Creation Date",
}

// deletedVMEdges are tombstoned when a VM is destroyed
var deletedVMEdges = []string{
	EdgeHostCompUnit,
	EdgeProcessCompUnit,
	EdgeBusinessServiceCompUnit,
	EdgeClientCompUnit,
}

// vmUpdateBuilder refreshes a VM node, its host, zone and region links and,
// on creation, its cost allocation links
type vmUpdateBuilder struct {
	*base
}

func (b *vmUpdateBuilder) Build(ctx context.Context, event events.Classified) ([]types.Document, error) {
	vm, err := b.inventory.GetVirtualMachine(ctx, event.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("get virtual machine %s: %w", event.ResourceID, err)
	}
	if vm == nil {
		b.logger.WithField("vm", event.ResourceID).Debug("Virtual machine not found, nothing to update")
		return nil, nil
	}

	project, err := b.inventory.GetProject(ctx, vm.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", vm.ProjectID, err)
	}
	if project == nil {
		project = &types.Project{}
	}

	docs := []types.Document{b.compUnitDocument(vm, project, event.Event.EventDateTime)}

	if vm.Hostname == "" {
		docs = append(docs, deleteDocument(EdgeHostCompUnit, types.TypeEdges, vm.ID))
	} else {
		docs = append(docs, b.hostEdge(vm))

		zoneDocs, err := b.zoneLinks(ctx, vm)
		if err != nil {
			return nil, err
		}
		docs = append(docs, zoneDocs...)
	}

	if event.Category == events.VMCreate {
		docs = append(docs, b.dictionaryEdges(vm, project)...)
	}

	return docs, nil
}

func (b *vmUpdateBuilder) compUnitDocument(vm *types.VirtualMachine, project *types.Project, eventDate string) types.Document {
	now := b.opts.Now()

	timestamp, ok := ParseDate(eventDate, now)
	if !ok && eventDate != "" {
		b.logger.WithField("eventDateTime", eventDate).Warn("Unparsable event date, using current time")
	}
	created, _ := ParseDate(vm.Created, now)

	account := project.Account
	if account == "" {
		account = vm.Account
	}

	metadata := make(map[string]types.Property, len(compUnitDescriptions))
	for key, description := range compUnitDescriptions {
		metadata[key] = types.Property{Description: description}
	}

	element := &types.Element{
		ID:        vm.ID,
		Name:      vm.Name,
		Provider:  ProviderGloboMap,
		Timestamp: timestamp.Unix(),
		Properties: map[string]interface{}{
			"uuid":             vm.ID,
			"state":            vm.State,
			"host":             vm.Hostname,
			"zone":             vm.ZoneName,
			"service_offering": vm.ServiceOffering,
			"cpu_cores":        numberOrEmpty(vm.CPUNumber),
			"cpu_speed":        numberOrEmpty(vm.CPUSpeed),
			"memory":           numberOrEmpty(vm.Memory),
			"template":         vm.Template,
			"project":          project.DisplayName(),
			"account":          account,
			"environment":      b.opts.Environment,
			"iaas_provider":    IaaSProvider,
			"creation_date":    created.Unix(),
		},
		PropertiesMetadata: metadata,
	}

	return newDocument(types.ActionPatch, CollectionCompUnit, types.TypeCollections, element, vm.ID)
}

func (b *vmUpdateBuilder) hostEdge(vm *types.VirtualMachine) types.Document {
	return b.edge(vm.ID, EdgeHostCompUnit,
		Link(CollectionCompUnit, ProviderGloboMap, vm.Hostname),
		Link(CollectionCompUnit, ProviderGloboMap, vm.ID))
}

// zoneLinks refreshes the VM zone and links it to the host and the region.
// A zone the API no longer knows produces no documents.
func (b *vmUpdateBuilder) zoneLinks(ctx context.Context, vm *types.VirtualMachine) ([]types.Document, error) {
	zone, err := b.inventory.GetZoneByName(ctx, vm.ZoneName)
	if err != nil {
		return nil, fmt.Errorf("get zone %q: %w", vm.ZoneName, err)
	}
	if zone == nil {
		b.logger.WithFields(map[string]interface{}{
			"vm":   vm.ID,
			"zone": vm.ZoneName,
		}).Warn("Zone not found, skipping zone links")
		return nil, nil
	}

	zoneLink := Link(CollectionZone, ProviderGloboMap, zone.ID)
	return []types.Document{
		b.zoneDocument(zone),
		b.edge(vm.Hostname, EdgeZoneHost, zoneLink, Link(CollectionCompUnit, ProviderGloboMap, vm.Hostname)),
		b.edge(zone.ID, EdgeZoneRegion, zoneLink, Link(CollectionRegion, ProviderGloboMap, b.opts.Environment)),
	}, nil
}

// vmDeleteBuilder tombstones the edges of a destroyed VM without asking the
// inventory, which no longer knows it
type vmDeleteBuilder struct {
	*base
}

func (b *vmDeleteBuilder) Build(_ context.Context, event events.Classified) ([]types.Document, error) {
	if event.ResourceID == "" {
		// "globomap_" alone would address no edge, so nothing is emitted
		b.logger.WithField("event", event.Event.String()).Warn("Destroy event without resource id")
		return nil, nil
	}

	docs := make([]types.Document, 0, len(deletedVMEdges))
	for _, collection := range deletedVMEdges {
		docs = append(docs, deleteDocument(collection, types.TypeEdges, event.ResourceID))
	}
	return docs, nil
}

// numberOrEmpty keeps the property set complete when the API omits a number
func numberOrEmpty(n int) interface{} {
	if n == 0 {
		return ""
	}
	return n
}
