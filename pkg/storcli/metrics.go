package storcli

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for one StorCLI instance. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	invocations   *prometheus.CounterVec
	duration      prometheus.Histogram
	active        prometheus.Gauge
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	invalidations prometheus.Counter
	results       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storcli",
				Subsystem: "exec",
				Name:      "invocations_total",
				Help:      "Subprocess invocations by process outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "storcli",
				Subsystem: "exec",
				Name:      "duration_seconds",
				Help:      "Wall-clock duration of subprocess invocations.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "storcli",
				Subsystem: "exec",
				Name:      "active",
				Help:      "Child processes currently running.",
			},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "storcli",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Runs answered from the response cache.",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "storcli",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Cacheable runs that had to invoke the binary.",
			},
		),
		invalidations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "storcli",
				Subsystem: "cache",
				Name:      "invalidated_entries_total",
				Help:      "Cache entries dropped by invalidation or clear.",
			},
		),
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storcli",
				Subsystem: "run",
				Name:      "results_total",
				Help:      "Classified run results by error kind.",
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.invocations, m.duration, m.active, m.cacheHits, m.cacheMisses, m.invalidations, m.results)
	}
	return m
}

func (m *Metrics) observeInvocation(outcome ErrorKind, d time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(string(outcome)).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) activeInc() {
	if m != nil {
		m.active.Inc()
	}
}

func (m *Metrics) activeDec() {
	if m != nil {
		m.active.Dec()
	}
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) cacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) invalidated(n int) {
	if m != nil && n > 0 {
		m.invalidations.Add(float64(n))
	}
}

func (m *Metrics) result(kind ErrorKind) {
	if m != nil {
		m.results.WithLabelValues(string(kind)).Inc()
	}
}
