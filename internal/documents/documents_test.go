package documents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/globomap/acs-driver/pkg/types"
)

func TestKeyAndLink(t *testing.T) {
	assert.Equal(t, "globomap_123", Key("123"))
	assert.Equal(t, "comp_unit/globomap_vm-1", Link(CollectionCompUnit, ProviderGloboMap, "vm-1"))
	assert.Equal(t, "process/custeio_p1", Link(CollectionProcess, ProviderCusteio, "p1"))
}

func TestClearDocuments(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	window := types.ReconciliationWindow{Environment: "rj", Provider: IaaSProvider, StartTime: start}

	docs := ClearDocuments(window)
	assert.Len(t, docs, 8)

	want := [][]types.Filter{{
		{Field: "timestamp", Value: start.Unix(), Operator: "<"},
		{Field: "properties.environment", Value: "rj", Operator: "=="},
		{Field: "properties.iaas_provider", Value: "cloudstack", Operator: "=="},
	}}

	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Collection)
		assert.Equal(t, types.ActionClear, d.Action)
		assert.Empty(t, d.Key)
		assert.Equal(t, want, d.Element)
		assert.NoError(t, d.Validate())
	}
	assert.Equal(t, []string{
		"comp_unit", "zone", "zone_host", "zone_region",
		"process_comp_unit", "business_service_comp_unit", "client_comp_unit", "host_comp_unit",
	}, names)
	assert.Equal(t, types.TypeCollections, docs[0].Type)
	assert.Equal(t, types.TypeEdges, docs[2].Type)
}

func TestParseDate(t *testing.T) {
	fallback := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		value  string
		want   time.Time
		wantOK bool
	}{
		{"event layout", "2024-03-01 09:00:00 -0300", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), true},
		{"created layout", "2024-02-01T10:00:00-0300", time.Date(2024, 2, 1, 13, 0, 0, 0, time.UTC), true},
		{"rfc3339", "2024-02-01T10:00:00Z", time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), true},
		{"no zone", "2024-02-01 10:00:00", time.Date(2024, 2, 1, 10, 0, 0, 0, time.Local), true},
		{"empty", "", fallback, false},
		{"garbage", "yesterday", fallback, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.value, fallback)
			assert.Equal(t, tt.wantOK, ok)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}
