// Package documents synthesizes the graph mutation documents the loader
// applies for each CloudStack event.
package documents

import (
	"fmt"

	"github.com/globomap/acs-driver/pkg/types"
)

// Providers used in element bodies and canonical links
const (
	ProviderGloboMap = "globomap"
	ProviderCusteio  = "custeio"

	// IaaSProvider tags every element this driver owns
	IaaSProvider = "cloudstack"
)

// Node collections
const (
	CollectionCompUnit        = "comp_unit"
	CollectionZone            = "zone"
	CollectionRegion          = "region"
	CollectionProcess         = "process"
	CollectionBusinessService = "business_service"
	CollectionClient          = "client"
	CollectionComponent       = "component"
	CollectionSubComponent    = "sub_component"
	CollectionProduct         = "product"
)

// Edge collections
const (
	EdgeHostCompUnit            = "host_comp_unit"
	EdgeProcessCompUnit         = "process_comp_unit"
	EdgeBusinessServiceCompUnit = "business_service_comp_unit"
	EdgeClientCompUnit          = "client_comp_unit"
	EdgeComponentCompUnit       = "component_comp_unit"
	EdgeSubComponentCompUnit    = "sub_component_comp_unit"
	EdgeProductCompUnit         = "product_comp_unit"
	EdgeZoneHost                = "zone_host"
	EdgeZoneRegion              = "zone_region"
)

// Key returns the loader key of the element owned by resource id
func Key(id string) string {
	return "globomap_" + id
}

// Link returns the canonical reference "{collection}/{provider}_{id}"
func Link(collection, provider, id string) string {
	return fmt.Sprintf("%s/%s_%s", collection, provider, id)
}

// newDocument builds a document keyed by the owning resource id
func newDocument(action types.Action, collection string, docType types.DocumentType, element interface{}, id string) types.Document {
	return types.Document{
		Action:     action,
		Collection: collection,
		Type:       docType,
		Element:    element,
		Key:        Key(id),
	}
}

// deleteDocument is a DELETE with an empty body
func deleteDocument(collection string, docType types.DocumentType, id string) types.Document {
	return newDocument(types.ActionDelete, collection, docType, map[string]interface{}{}, id)
}
