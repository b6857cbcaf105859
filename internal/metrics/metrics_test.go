package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Event("vm_create")
	m.Event("vm_create")
	m.Message("acked")
	m.Published("comp_unit", "PATCH")
	m.Reconnect()
	m.SweepVM(true)
	m.SweepVM(false)
	m.InventoryCall("listZones", nil)
	m.InventoryCall("listZones", errors.New("timeout"))
	m.PublishDuration(20 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsTotal.WithLabelValues("vm_create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesTotal.WithLabelValues("acked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsTotal.WithLabelValues("comp_unit", "PATCH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnectsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepVMsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inventoryCallsTotal.WithLabelValues("listZones", "error")))
}

func TestMetrics_SweepCompleted(t *testing.T) {
	m := New()
	start := time.Unix(1700000000, 0)

	m.SweepCompleted(start, start.Add(time.Minute))

	assert.Equal(t, float64(1700000060), testutil.ToFloat64(m.sweepLastSuccess))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Event("vm_delete")
		m.Message("nacked")
		m.Published("zone", "PATCH")
		m.PublishDuration(time.Second)
		m.Reconnect()
		m.SweepVM(true)
		m.SweepCompleted(time.Now(), time.Now())
		m.InventoryCall("listProjects", nil)
	})
}

func TestRouter(t *testing.T) {
	m := New()
	m.Event("zone_edit")
	router := NewRouter(m)

	tests := []struct {
		path     string
		contains string
	}{
		{"/healthz", "ok"},
		{"/metrics", `globomap_acs_events_total{category="zone_edit"} 1`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, strings.Contains(rec.Body.String(), tt.contains), rec.Body.String())
		})
	}
}
