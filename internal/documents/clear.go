package documents

import (
	"github.com/globomap/acs-driver/pkg/types"
)

// ManagedCollection is a node or edge collection the sweep garbage collects
type ManagedCollection struct {
	Name string
	Type types.DocumentType
}

// ManagedCollections lists, in order, what a sweep clears
var ManagedCollections = []ManagedCollection{
	{CollectionCompUnit, types.TypeCollections},
	{CollectionZone, types.TypeCollections},
	{EdgeZoneHost, types.TypeEdges},
	{EdgeZoneRegion, types.TypeEdges},
	{EdgeProcessCompUnit, types.TypeEdges},
	{EdgeBusinessServiceCompUnit, types.TypeEdges},
	{EdgeClientCompUnit, types.TypeEdges},
	{EdgeHostCompUnit, types.TypeEdges},
}

// ClearDocuments returns one CLEAR per managed collection, each removing
// the elements the window says were not refreshed
func ClearDocuments(window types.ReconciliationWindow) []types.Document {
	docs := make([]types.Document, 0, len(ManagedCollections))
	for _, c := range ManagedCollections {
		docs = append(docs, types.Document{
			Action:     types.ActionClear,
			Collection: c.Name,
			Type:       c.Type,
			Element:    window.Filters(),
		})
	}
	return docs
}
