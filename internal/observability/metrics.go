// Package observability records what the solver does: structured event
// logs and in-process metrics, both fed through solver.Observer.
package observability

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rand/goalsolver/internal/solver"
)

// Metric names for the solver.
const (
	MetricTasksTotal       = "solver_tasks_total"
	MetricAttemptsTotal    = "solver_attempts_total"
	MetricFailuresTotal    = "solver_attempt_failures_total"
	MetricResolvedTotal    = "solver_resolved_total"
	MetricUnresolvedTotal  = "solver_unresolved_total"
	MetricCandidates       = "solver_candidates"
	MetricAttemptDuration  = "solver_attempt_duration_seconds"
	MetricEstimateDuration = "solver_estimate_duration_seconds"
	MetricInFlight         = "solver_tasks_in_flight"
)

// Labels for metrics.
type Labels map[string]string

// Counter is a monotonically increasing metric.
type Counter struct {
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds v to the counter.
func (c *Counter) Add(v int64) {
	c.value.Add(v)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return c.value.Load()
}

// Gauge is a metric that can go up and down.
type Gauge struct {
	value atomic.Int64
}

// Set sets the gauge to v.
func (g *Gauge) Set(v int64) {
	g.value.Store(v)
}

// Add adds v to the gauge; v may be negative.
func (g *Gauge) Add(v int64) {
	g.value.Add(v)
}

// Value returns the current gauge value.
func (g *Gauge) Value() int64 {
	return g.value.Load()
}

// Histogram tracks the distribution of values.
type Histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []int64
	sum     float64
	count   int64
}

// DefaultBuckets are latency buckets in seconds.
var DefaultBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10,
}

// CountBuckets suit small integer observations such as candidate counts.
var CountBuckets = []float64{0, 1, 2, 3, 5, 8, 13, 21}

// NewHistogram creates a histogram with the given upper bounds.
func NewHistogram(buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	return &Histogram{
		buckets: buckets,
		counts:  make([]int64, len(buckets)+1), // +1 for +Inf
	}
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++

	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
			return
		}
	}
	h.counts[len(h.buckets)]++
}

// ObserveDuration records d in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// Snapshot returns a copy of the histogram state.
func (h *Histogram) Snapshot() HistogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make([]int64, len(h.counts))
	copy(counts, h.counts)

	return HistogramSnapshot{
		Buckets: h.buckets,
		Counts:  counts,
		Sum:     h.sum,
		Count:   h.count,
	}
}

// HistogramSnapshot is a point-in-time copy of a histogram.
type HistogramSnapshot struct {
	Buckets []float64
	Counts  []int64
	Sum     float64
	Count   int64
}

// Mean returns the mean observed value.
func (s HistogramSnapshot) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// Percentile estimates the upper bound of the bucket holding the p-th
// percentile (0-100).
func (s HistogramSnapshot) Percentile(p float64) float64 {
	if s.Count == 0 {
		return 0
	}

	threshold := int64(float64(s.Count) * p / 100)
	var cumulative int64
	for i, count := range s.Counts {
		cumulative += count
		if cumulative >= threshold {
			if i < len(s.Buckets) {
				return s.Buckets[i]
			}
			if len(s.Buckets) > 0 {
				return s.Buckets[len(s.Buckets)-1]
			}
		}
	}
	return 0
}

// Registry holds named metrics.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// Counter returns the counter for name and labels, creating it if needed.
func (r *Registry) Counter(name string, labels Labels) *Counter {
	key := metricKey(name, labels)

	r.mu.RLock()
	c, ok := r.counters[key]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[key]; ok {
		return c
	}
	c = &Counter{}
	r.counters[key] = c
	return c
}

// Gauge returns the gauge for name and labels, creating it if needed.
func (r *Registry) Gauge(name string, labels Labels) *Gauge {
	key := metricKey(name, labels)

	r.mu.RLock()
	g, ok := r.gauges[key]
	r.mu.RUnlock()
	if ok {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[key]; ok {
		return g
	}
	g = &Gauge{}
	r.gauges[key] = g
	return g
}

// Histogram returns the histogram for name and labels, creating it with
// buckets if needed.
func (r *Registry) Histogram(name string, labels Labels, buckets []float64) *Histogram {
	key := metricKey(name, labels)

	r.mu.RLock()
	h, ok := r.histograms[key]
	r.mu.RUnlock()
	if ok {
		return h
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[key]; ok {
		return h
	}
	h = NewHistogram(buckets)
	r.histograms[key] = h
	return h
}

// Snapshot returns the current value of every metric, keyed by
// name{label=value,...}.
func (r *Registry) Snapshot() MetricsSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := MetricsSnapshot{
		Counters:   make(map[string]int64, len(r.counters)),
		Gauges:     make(map[string]int64, len(r.gauges)),
		Histograms: make(map[string]HistogramSnapshot, len(r.histograms)),
	}
	for k, c := range r.counters {
		snap.Counters[k] = c.Value()
	}
	for k, g := range r.gauges {
		snap.Gauges[k] = g.Value()
	}
	for k, h := range r.histograms {
		snap.Histograms[k] = h.Snapshot()
	}
	return snap
}

// MetricsSnapshot is a point-in-time copy of a registry.
type MetricsSnapshot struct {
	Counters   map[string]int64
	Gauges     map[string]int64
	Histograms map[string]HistogramSnapshot
}

// metricKey renders name and labels with labels in sorted order so that
// equal label sets map to the same metric.
func metricKey(name string, labels Labels) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

// SolverMetrics turns solver events into metrics. It implements
// solver.Observer.
type SolverMetrics struct {
	registry *Registry

	tasks            *Counter
	attempts         *Counter
	failures         *Counter
	resolved         *Counter
	unresolved       *Counter
	inFlight         *Gauge
	candidates       *Histogram
	attemptDuration  *Histogram
	estimateDuration *Histogram
}

// NewSolverMetrics registers the solver metrics in registry. A nil registry
// gets a fresh one.
func NewSolverMetrics(registry *Registry) *SolverMetrics {
	if registry == nil {
		registry = NewRegistry()
	}
	return &SolverMetrics{
		registry:         registry,
		tasks:            registry.Counter(MetricTasksTotal, nil),
		attempts:         registry.Counter(MetricAttemptsTotal, nil),
		failures:         registry.Counter(MetricFailuresTotal, nil),
		resolved:         registry.Counter(MetricResolvedTotal, nil),
		unresolved:       registry.Counter(MetricUnresolvedTotal, nil),
		inFlight:         registry.Gauge(MetricInFlight, nil),
		candidates:       registry.Histogram(MetricCandidates, nil, CountBuckets),
		attemptDuration:  registry.Histogram(MetricAttemptDuration, nil, DefaultBuckets),
		estimateDuration: registry.Histogram(MetricEstimateDuration, nil, DefaultBuckets),
	}
}

// Observe implements solver.Observer.
func (m *SolverMetrics) Observe(e solver.Event) {
	switch e.Type {
	case solver.EventEstimate:
		m.tasks.Inc()
		m.inFlight.Add(1)
		m.candidates.Observe(float64(e.Candidates))
		m.estimateDuration.ObserveDuration(e.Duration)
	case solver.EventAttempt:
		m.attempts.Inc()
		m.registry.Counter(MetricAttemptsTotal, Labels{"strategy": e.Strategy}).Inc()
	case solver.EventAttemptFailed:
		m.failures.Inc()
		m.registry.Counter(MetricFailuresTotal, Labels{"strategy": e.Strategy}).Inc()
		m.attemptDuration.ObserveDuration(e.Duration)
	case solver.EventResolved:
		m.resolved.Inc()
		m.inFlight.Add(-1)
		m.registry.Counter(MetricResolvedTotal, Labels{"strategy": e.Strategy}).Inc()
		m.attemptDuration.ObserveDuration(e.Duration)
	case solver.EventUnresolved:
		m.unresolved.Inc()
		m.inFlight.Add(-1)
		m.registry.Counter(MetricUnresolvedTotal, Labels{"kind": string(e.Kind)}).Inc()
	}
}

// Snapshot returns the underlying registry's snapshot.
func (m *SolverMetrics) Snapshot() MetricsSnapshot {
	return m.registry.Snapshot()
}

// Summary is a compact view of the solver counters.
type Summary struct {
	Tasks       int64
	Attempts    int64
	Failures    int64
	Resolved    int64
	Unresolved  int64
	InFlight    int64
	MeanAttempt time.Duration
}

// Summary returns the headline numbers.
func (m *SolverMetrics) Summary() Summary {
	attempt := m.attemptDuration.Snapshot()
	return Summary{
		Tasks:       m.tasks.Value(),
		Attempts:    m.attempts.Value(),
		Failures:    m.failures.Value(),
		Resolved:    m.resolved.Value(),
		Unresolved:  m.unresolved.Value(),
		InFlight:    m.inFlight.Value(),
		MeanAttempt: time.Duration(attempt.Mean() * float64(time.Second)),
	}
}
