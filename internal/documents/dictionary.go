package documents

import (
	"github.com/globomap/acs-driver/pkg/types"
)

// dictionaryRelation links a VM to a cost allocation entity kept by the
// custeio provider
type dictionaryRelation struct {
	collection string
	edge       string
	id         func(*types.Project) string
}

// Order is publication order; the process link comes first and does not
// depend on the project.
var dictionaryRelations = []dictionaryRelation{
	{CollectionBusinessService, EdgeBusinessServiceCompUnit, func(p *types.Project) string { return p.BusinessServiceID }},
	{CollectionClient, EdgeClientCompUnit, func(p *types.Project) string { return p.ClientID }},
	{CollectionComponent, EdgeComponentCompUnit, func(p *types.Project) string { return p.ComponentID }},
	{CollectionSubComponent, EdgeSubComponentCompUnit, func(p *types.Project) string { return p.SubComponentID }},
	{CollectionProduct, EdgeProductCompUnit, func(p *types.Project) string { return p.ProductID }},
}

func (b *base) dictionaryEdges(vm *types.VirtualMachine, project *types.Project) []types.Document {
	to := Link(CollectionCompUnit, ProviderGloboMap, vm.ID)

	docs := []types.Document{
		b.edge(vm.ID, EdgeProcessCompUnit, Link(CollectionProcess, ProviderCusteio, b.opts.DefaultProcessID), to),
	}

	for _, rel := range dictionaryRelations {
		id := rel.id(project)
		if id == "" {
			continue
		}
		docs = append(docs, b.edge(vm.ID, rel.edge, Link(rel.collection, ProviderCusteio, id), to))
	}
	return docs
}
