// Package metrics exports dataset and sequencer activity as Prometheus
// collectors.
//
// A nil *Collectors is valid and records nothing, so components can take
// one unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "timingsrc"

// Collectors groups the collectors of one process.
type Collectors struct {
	batches     prometheus.Counter
	batchItems  prometheus.Histogram
	cues        prometheus.Gauge
	loads       prometheus.Counter
	loadEvents  prometheus.Histogram
	transitions *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg registers with
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collectors{
		batches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "batches_total",
			Help:      "Dataset update batches delivered to subscribers.",
		}),
		batchItems: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "batch_items",
			Help:      "Changed cues per dataset batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 9), // 1 to 65536
		}),
		cues: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "cues",
			Help:      "Cues currently stored.",
		}),
		loads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "loads_total",
			Help:      "Endpoint lookups performed by schedules.",
		}),
		loadEvents: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "load_events",
			Help:      "Crossing events queued per schedule load.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sequencer",
			Name:      "transitions_total",
			Help:      "Active set transitions by kind.",
		}, []string{"kind"}),
	}
}

// ObserveBatch records one published dataset batch of n items.
func (c *Collectors) ObserveBatch(n int) {
	if c == nil {
		return
	}
	c.batches.Inc()
	c.batchItems.Observe(float64(n))
}

// SetCues records the dataset size.
func (c *Collectors) SetCues(n int) {
	if c == nil {
		return
	}
	c.cues.Set(float64(n))
}

// ObserveLoad records one schedule load that queued n events.
func (c *Collectors) ObserveLoad(n int) {
	if c == nil {
		return
	}
	c.loads.Inc()
	c.loadEvents.Observe(float64(n))
}

// CountTransition counts one sequencer transition of kind.
func (c *Collectors) CountTransition(kind string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(kind).Inc()
}
