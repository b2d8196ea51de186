// Package metric provides Prometheus metrics for the gateway's poll loop
// and client fan-out.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the gateway's platform metrics.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal       prometheus.Counter
	SourceErrors     prometheus.Counter
	PatchesBroadcast prometheus.Counter
	ChangedTags      prometheus.Counter
	ConnectedClients prometheus.Gauge
	CommsOK          prometheus.Gauge
	RegistryTags     prometheus.Gauge
}

// NewMetrics creates and registers all gateway metrics on a private
// registry, keeping the exposition free of default collectors' noise except
// process/go stats.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taglink",
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Total number of completed poll ticks",
		}),
		SourceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taglink",
			Subsystem: "engine",
			Name:      "source_errors_total",
			Help:      "Total number of upstream source read failures",
		}),
		PatchesBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taglink",
			Subsystem: "engine",
			Name:      "patches_broadcast_total",
			Help:      "Total number of patch batches broadcast to clients",
		}),
		ChangedTags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taglink",
			Subsystem: "engine",
			Name:      "changed_tags_total",
			Help:      "Total number of changed tag values detected",
		}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taglink",
			Subsystem: "stream",
			Name:      "connected_clients",
			Help:      "Number of currently connected streaming clients",
		}),
		CommsOK: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taglink",
			Subsystem: "liveness",
			Name:      "comms_ok",
			Help:      "Upstream comms liveness (0=lost, 1=ok)",
		}),
		RegistryTags: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taglink",
			Subsystem: "registry",
			Name:      "tags",
			Help:      "Number of concrete tags in the registry",
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.SourceErrors,
		m.PatchesBroadcast,
		m.ChangedTags,
		m.ConnectedClients,
		m.CommsOK,
		m.RegistryTags,
	)

	return m
}

// SetCommsOK records the current liveness state.
func (m *Metrics) SetCommsOK(ok bool) {
	if ok {
		m.CommsOK.Set(1)
	} else {
		m.CommsOK.Set(0)
	}
}

// Handler returns the Prometheus exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
