// Package metrics exposes driver counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "globomap_acs"

// Metrics holds the driver instruments. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	eventsTotal         *prometheus.CounterVec
	messagesTotal       *prometheus.CounterVec
	documentsTotal      *prometheus.CounterVec
	publishDuration     prometheus.Histogram
	reconnectsTotal     prometheus.Counter
	sweepVMsTotal       *prometheus.CounterVec
	sweepLastSuccess    prometheus.Gauge
	sweepDuration       prometheus.Histogram
	inventoryCallsTotal *prometheus.CounterVec
}

// New creates the instruments on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events pulled from the bus by category",
		}, []string{"category"}),
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages settled by outcome",
		}, []string{"outcome"}),
		documentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_published_total",
			Help:      "Documents delivered to the loader",
		}, []string{"collection", "action"}),
		publishDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time spent delivering the documents of one event",
			Buckets:   prometheus.DefBuckets,
		}),
		reconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_reconnects_total",
			Help:      "Reconnections after the bus connection was lost",
		}),
		sweepVMsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "virtual_machines_total",
			Help:      "Virtual machines visited by reconciliation sweeps",
		}, []string{"outcome"}),
		sweepLastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "last_success_timestamp_seconds",
			Help:      "Completion time of the last sweep that cleared stale elements",
		}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Duration of reconciliation sweeps",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
		}),
		inventoryCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_calls_total",
			Help:      "CloudStack API calls by command and outcome",
		}, []string{"command", "outcome"}),
	}
}

// Registry returns the registry the instruments live in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Event counts a pulled event
func (m *Metrics) Event(category string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(category).Inc()
}

// Message counts a settled message. Outcomes are acked, nacked and rejected.
func (m *Metrics) Message(outcome string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(outcome).Inc()
}

// Published counts a delivered document
func (m *Metrics) Published(collection, action string) {
	if m == nil {
		return
	}
	m.documentsTotal.WithLabelValues(collection, action).Inc()
}

// PublishDuration records how long one delivery took
func (m *Metrics) PublishDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.publishDuration.Observe(d.Seconds())
}

// Reconnect counts a bus reconnection
func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnectsTotal.Inc()
}

// SweepVM counts a virtual machine visited by a sweep
func (m *Metrics) SweepVM(ok bool) {
	if m == nil {
		return
	}
	outcome := "published"
	if !ok {
		outcome = "failed"
	}
	m.sweepVMsTotal.WithLabelValues(outcome).Inc()
}

// SweepCompleted records a finished sweep
func (m *Metrics) SweepCompleted(started, finished time.Time) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(finished.Sub(started).Seconds())
	m.sweepLastSuccess.Set(float64(finished.Unix()))
}

// InventoryCall counts a CloudStack API call
func (m *Metrics) InventoryCall(command string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.inventoryCallsTotal.WithLabelValues(command, outcome).Inc()
}
