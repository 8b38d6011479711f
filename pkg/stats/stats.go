// Package stats collects named engine counters and gauges.
//
// Engine components report through the Sink interface. Counters is the
// in-memory sink every engine keeps for Engine.Stats; Metrics exports the
// same names to Prometheus.
package stats

import (
	"sort"
)

// Counter names (monotonic).
const (
	FragmentsExecuted      = "fragments_executed"
	FragmentsFailed        = "fragments_failed"
	PlanCacheHits          = "plan_cache_hits"
	PlanCacheMisses        = "plan_cache_misses"
	PlanCacheEvictions     = "plan_cache_evictions"
	UndoQuantaReleased     = "undo_quanta_released"
	UndoQuantaUndone       = "undo_quanta_undone"
	TuplesModified         = "tuples_modified"
	DependenciesUnconsumed = "dependencies_unconsumed"
)

// Gauge names (set to the current value).
const (
	PlanCacheSize    = "plan_cache_size"
	PlanCacheEntries = "plan_cache_entries"
	UndoQuantaHeld   = "undo_quanta_held"
	TempTablePeak    = "temp_table_peak_bytes"
)

// Observation names (distributions).
const (
	FragmentDuration = "fragment_duration_seconds"
)

// Sink receives engine statistics. Implementations need not be safe for
// concurrent use unless shared between engines.
type Sink interface {
	Add(name string, delta float64)
	Set(name string, value float64)
	Observe(name string, value float64)
}

// Counters is an in-memory Sink. Observations keep their count and sum
// under "<name>_count" and "<name>_sum".
type Counters struct {
	values map[string]float64
}

// NewCounters creates an empty in-memory sink.
func NewCounters() *Counters {
	return &Counters{values: make(map[string]float64)}
}

func (c *Counters) Add(name string, delta float64) { c.values[name] += delta }

func (c *Counters) Set(name string, value float64) { c.values[name] = value }

func (c *Counters) Observe(name string, value float64) {
	c.values[name+"_count"]++
	c.values[name+"_sum"] += value
}

// Get returns the current value of name (0 if never reported).
func (c *Counters) Get(name string) float64 { return c.values[name] }

// Snapshot copies all values.
func (c *Counters) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Names returns the reported names sorted.
func (c *Counters) Names() []string {
	names := make([]string, 0, len(c.values))
	for k := range c.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Reset clears all values.
func (c *Counters) Reset() {
	c.values = make(map[string]float64)
}

// Multi fans every report out to several sinks.
type Multi []Sink

func (m Multi) Add(name string, delta float64) {
	for _, s := range m {
		s.Add(name, delta)
	}
}

func (m Multi) Set(name string, value float64) {
	for _, s := range m {
		s.Set(name, value)
	}
}

func (m Multi) Observe(name string, value float64) {
	for _, s := range m {
		s.Observe(name, value)
	}
}

// Discard is a Sink that drops everything.
type Discard struct{}

func (Discard) Add(string, float64)     {}
func (Discard) Set(string, float64)     {}
func (Discard) Observe(string, float64) {}
