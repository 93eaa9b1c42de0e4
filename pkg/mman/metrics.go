package mman

import "github.com/prometheus/client_golang/prometheus"

// metrics tracks Prometheus gauges mirroring a manager's counters
// (NumOpenRegions, NumUsedRegions, NumOpenCursors, MappedMemorySize).
//
// All metrics use the "mman_" prefix. Methods handle a nil receiver
// gracefully, so a nil *metrics acts as a no-op — metrics are opt-in via
// Config.EnableMetrics and cost nothing when disabled.
type metrics struct {
	openRegions prometheus.Gauge
	usedRegions prometheus.Gauge
	openCursors prometheus.Gauge
	mappedBytes prometheus.Gauge
	evictions   prometheus.Counter
	oomErrors   prometheus.Counter
}

// newMetrics creates and registers the package's Prometheus gauges against
// registerer. If registerer is nil, a fresh prometheus.NewRegistry() is
// used instead of the global default registerer, so that constructing
// several managers of the same name (e.g. in tests) never collides on
// duplicate registration; callers who want their manager scraped by the
// process-wide default registry should pass prometheus.DefaultRegisterer
// explicitly. name distinguishes multiple managers sharing one registerer.
func newMetrics(registerer prometheus.Registerer, name string) *metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}

	m := &metrics{
		openRegions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "mman_open_regions",
			Help:        "Current number of mapped regions held by the manager.",
			ConstLabels: prometheus.Labels{"manager": name},
		}),
		usedRegions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "mman_used_regions",
			Help:        "Current number of mapped regions with client_count > 0.",
			ConstLabels: prometheus.Labels{"manager": name},
		}),
		openCursors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "mman_open_cursors",
			Help:        "Current number of cursors issued and not yet closed.",
			ConstLabels: prometheus.Labels{"manager": name},
		}),
		mappedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "mman_mapped_memory_bytes",
			Help:        "Current sum of region sizes mapped by the manager.",
			ConstLabels: prometheus.Labels{"manager": name},
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "mman_region_evictions_total",
			Help:        "Total regions unmapped by eviction, Collect or Close.",
			ConstLabels: prometheus.Labels{"manager": name},
		}),
		oomErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "mman_out_of_memory_total",
			Help:        "Total region allocations that failed with ErrOutOfMemory.",
			ConstLabels: prometheus.Labels{"manager": name},
		}),
	}

	registerer.MustRegister(
		m.openRegions,
		m.usedRegions,
		m.openCursors,
		m.mappedBytes,
		m.evictions,
		m.oomErrors,
	)

	return m
}

func (m *metrics) setGauges(openRegions, usedRegions, openCursors int, mappedBytes int64) {
	if m == nil {
		return
	}
	m.openRegions.Set(float64(openRegions))
	m.usedRegions.Set(float64(usedRegions))
	m.openCursors.Set(float64(openCursors))
	m.mappedBytes.Set(float64(mappedBytes))
}

func (m *metrics) recordEviction() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

func (m *metrics) recordOutOfMemory() {
	if m == nil {
		return
	}
	m.oomErrors.Inc()
}
