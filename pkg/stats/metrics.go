package stats

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var counterHelp = map[string]string{
	FragmentsExecuted:      "Plan fragments executed successfully",
	FragmentsFailed:        "Plan fragments that reported an exception",
	PlanCacheHits:          "Fragment loads served from the plan cache",
	PlanCacheMisses:        "Fragment loads that parsed and bound a new executor vector",
	PlanCacheEvictions:     "Executor vectors evicted from the plan cache",
	UndoQuantaReleased:     "Undo quanta released on commit",
	UndoQuantaUndone:       "Undo quanta rolled back",
	TuplesModified:         "Rows inserted, updated or deleted",
	DependenciesUnconsumed: "Dependencies still pending when a batch ended",
}

var gaugeHelp = map[string]string{
	PlanCacheSize:    "Estimated size of the plan cache in bytes",
	PlanCacheEntries: "Executor vectors held by the plan cache",
	UndoQuantaHeld:   "Undo quanta awaiting release or undo",
	TempTablePeak:    "Largest temp table footprint of a single fragment run",
}

// Metrics holds the Prometheus collectors for all engines of a process.
// Each engine reports through the Sink returned by ForPartition.
type Metrics struct {
	counters  map[string]*prometheus.CounterVec
	gauges    map[string]*prometheus.GaugeVec
	durations *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		counters: make(map[string]*prometheus.CounterVec, len(counterHelp)),
		gauges:   make(map[string]*prometheus.GaugeVec, len(gaugeHelp)),
	}
	for name, help := range counterHelp {
		m.counters[name] = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      name + "_total",
			Help:      help,
		}, []string{"partition"})
	}
	for name, help := range gaugeHelp {
		m.gauges[name] = factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      name,
			Help:      help,
		}, []string{"partition"})
	}
	m.durations = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      FragmentDuration,
		Help:      "Wall time of a single fragment execution",
		Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
	}, []string{"partition"})
	return m
}

// ForPartition returns a Sink that reports under the given partition label.
func (m *Metrics) ForPartition(partition int32) Sink {
	return &partitionSink{m: m, label: strconv.Itoa(int(partition))}
}

// Counter returns the collector for a counter name and partition, for tests
// and for callers that want the raw collector.
func (m *Metrics) Counter(name string, partition int32) prometheus.Counter {
	vec, ok := m.counters[name]
	if !ok {
		return nil
	}
	return vec.WithLabelValues(strconv.Itoa(int(partition)))
}

// Gauge is the gauge counterpart of Counter.
func (m *Metrics) Gauge(name string, partition int32) prometheus.Gauge {
	vec, ok := m.gauges[name]
	if !ok {
		return nil
	}
	return vec.WithLabelValues(strconv.Itoa(int(partition)))
}

type partitionSink struct {
	m     *Metrics
	label string
}

// Add ignores unknown names and negative deltas.
func (s *partitionSink) Add(name string, delta float64) {
	if vec, ok := s.m.counters[name]; ok && delta >= 0 {
		vec.WithLabelValues(s.label).Add(delta)
	}
}

func (s *partitionSink) Set(name string, value float64) {
	if vec, ok := s.m.gauges[name]; ok {
		vec.WithLabelValues(s.label).Set(value)
	}
}

func (s *partitionSink) Observe(name string, value float64) {
	if name == FragmentDuration {
		s.m.durations.WithLabelValues(s.label).Observe(value)
	}
}
