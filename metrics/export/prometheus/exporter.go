package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sessionkit "github.com/airvend/sessionkit"
	"github.com/airvend/sessionkit/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() sessionkit.MetricsSnapshot
	AuditDropped() uint64
}

// Collector exposes registry counters as a prometheus.Collector. Each
// Collect call takes one snapshot and emits constant counter metrics,
// so there is no double bookkeeping between the registry and the
// Prometheus client.
type Collector struct {
	source       metricsSource
	descs        map[sessionkit.MetricID]*prometheus.Desc
	auditDropped *prometheus.Desc
}

// NewCollector builds a collector reading from the registry.
func NewCollector(registry *sessionkit.Registry) *Collector {
	return NewCollectorFromSource(registry)
}

// NewCollectorFromSource is NewCollector for a custom snapshot source.
func NewCollectorFromSource(source metricsSource) *Collector {
	descs := make(map[sessionkit.MetricID]*prometheus.Desc, len(internaldefs.CounterDefs))
	for _, def := range internaldefs.CounterDefs {
		descs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	return &Collector{
		source:       source,
		descs:        descs,
		auditDropped: prometheus.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range internaldefs.CounterDefs {
		ch <- c.descs[def.ID]
	}
	ch <- c.auditDropped
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.source.MetricsSnapshot()
	for _, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(c.descs[def.ID], prometheus.CounterValue, float64(snapshot.Counters[def.ID]))
	}
	ch <- prometheus.MustNewConstMetric(c.auditDropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

// Handler registers the collector in a fresh Prometheus registry and
// returns the scrape handler for it.
func Handler(source metricsSource) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollectorFromSource(source))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
