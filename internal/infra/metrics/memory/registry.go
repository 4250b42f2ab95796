// Package memory provides an in-process metrics.Registry with an inspection
// API. It is used by tests and by local runs with METRICS_BACKEND=memory.
package memory

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"sentiment-app/internal/observability/metrics"
)

// Kind identifies the instrument variant stored under a name.
type Kind string

const (
	KindCounter Kind = "counter"
	KindTimer   Kind = "timer"
	KindSummary Kind = "summary"
	KindGauge   Kind = "gauge"
)

// Registry stores instruments in memory keyed by name and tag values.
type Registry struct {
	mu          sync.RWMutex
	kinds       map[string]Kind // name -> kind
	keys        map[string][]string
	counters    map[string]*Counter
	timers      map[string]*Timer
	summaries   map[string]*Summary
	gauges      map[string]*Gauge
	gaugeFailed bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds:     make(map[string]Kind),
		keys:      make(map[string][]string),
		counters:  make(map[string]*Counter),
		timers:    make(map[string]*Timer),
		summaries: make(map[string]*Summary),
		gauges:    make(map[string]*Gauge),
	}
}

// FailGauges makes every subsequent Gauge registration fail. Used to exercise
// degraded facades.
func (r *Registry) FailGauges() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gaugeFailed = true
}

// checkLocked enforces one kind and one tag-key layout per metric name.
func (r *Registry) checkLocked(desc metrics.Descriptor, kind Kind) error {
	if desc.Name == "" {
		return fmt.Errorf("metric name is required")
	}
	if existing, ok := r.kinds[desc.Name]; ok && existing != kind {
		return fmt.Errorf("metric %q already registered as %s", desc.Name, existing)
	}
	keys := desc.Tags.Keys()
	if existing, ok := r.keys[desc.Name]; ok && !slices.Equal(existing, keys) {
		return fmt.Errorf("metric %q tag keys %v do not match %v", desc.Name, keys, existing)
	}
	r.kinds[desc.Name] = kind
	r.keys[desc.Name] = keys
	return nil
}

// Counter implements metrics.Registry.
func (r *Registry) Counter(desc metrics.Descriptor) (metrics.Counter, error) {
	id := desc.ID()

	r.mu.RLock()
	c, ok := r.counters[id]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[id]; ok {
		return c, nil
	}
	if err := r.checkLocked(desc, KindCounter); err != nil {
		return nil, err
	}
	c = &Counter{desc: desc}
	r.counters[id] = c
	return c, nil
}

// Timer implements metrics.Registry.
func (r *Registry) Timer(desc metrics.Descriptor) (metrics.Timer, error) {
	id := desc.ID()

	r.mu.RLock()
	t, ok := r.timers[id]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[id]; ok {
		return t, nil
	}
	if err := r.checkLocked(desc, KindTimer); err != nil {
		return nil, err
	}
	t = &Timer{desc: desc}
	r.timers[id] = t
	return t, nil
}

// Summary implements metrics.Registry.
func (r *Registry) Summary(desc metrics.Descriptor) (metrics.DistributionSummary, error) {
	id := desc.ID()

	r.mu.RLock()
	s, ok := r.summaries[id]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.summaries[id]; ok {
		return s, nil
	}
	if err := r.checkLocked(desc, KindSummary); err != nil {
		return nil, err
	}
	s = &Summary{desc: desc}
	r.summaries[id] = s
	return s, nil
}

// Gauge implements metrics.Registry.
func (r *Registry) Gauge(desc metrics.Descriptor, cell *atomic.Int64) (metrics.Gauge, error) {
	if cell == nil {
		return nil, fmt.Errorf("gauge %q: nil cell", desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gaugeFailed {
		return nil, fmt.Errorf("gauge %q: registration disabled", desc.Name)
	}
	id := desc.ID()
	if _, ok := r.gauges[id]; ok {
		return nil, fmt.Errorf("gauge %q already registered", id)
	}
	if err := r.checkLocked(desc, KindGauge); err != nil {
		return nil, err
	}
	g := &Gauge{desc: desc, cell: cell}
	r.gauges[id] = g
	return g, nil
}

// FindCounter returns the counter for name and tags, if it exists.
func (r *Registry) FindCounter(name string, tags metrics.Tags) (*Counter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.counters[metrics.Descriptor{Name: name, Tags: tags}.ID()]
	return c, ok
}

// FindTimer returns the timer for name and tags, if it exists.
func (r *Registry) FindTimer(name string, tags metrics.Tags) (*Timer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.timers[metrics.Descriptor{Name: name, Tags: tags}.ID()]
	return t, ok
}

// FindSummary returns the summary for name and tags, if it exists.
func (r *Registry) FindSummary(name string, tags metrics.Tags) (*Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.summaries[metrics.Descriptor{Name: name, Tags: tags}.ID()]
	return s, ok
}

// FindGauge returns the gauge registered under name, if it exists.
func (r *Registry) FindGauge(name string) (*Gauge, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gauges[metrics.Descriptor{Name: name}.ID()]
	return g, ok
}

// Instruments lists the IDs of every registered instrument, sorted.
func (r *Registry) Instruments() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.counters)+len(r.timers)+len(r.summaries)+len(r.gauges))
	for id := range r.counters {
		ids = append(ids, id)
	}
	for id := range r.timers {
		ids = append(ids, id)
	}
	for id := range r.summaries {
		ids = append(ids, id)
	}
	for id := range r.gauges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Counter accumulates increments.
type Counter struct {
	desc metrics.Descriptor
	mu   sync.Mutex
	sum  float64
}

// Increment implements metrics.Counter.
func (c *Counter) Increment(delta float64) {
	c.mu.Lock()
	c.sum += delta
	c.mu.Unlock()
}

// Count returns the accumulated value.
func (c *Counter) Count() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sum
}

// Descriptor returns the descriptor the counter was created with.
func (c *Counter) Descriptor() metrics.Descriptor { return c.desc }

// Snapshot summarizes recorded samples.
type Snapshot struct {
	Count int64
	Sum   float64
	Max   float64
	Last  float64
}

// Mean returns Sum/Count, or zero for an empty snapshot.
func (s Snapshot) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

type distribution struct {
	mu   sync.Mutex
	snap Snapshot
}

func (d *distribution) record(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snap.Count == 0 {
		d.snap.Max = v
	} else {
		d.snap.Max = math.Max(d.snap.Max, v)
	}
	d.snap.Count++
	d.snap.Sum += v
	d.snap.Last = v
}

func (d *distribution) snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

// Timer records durations in milliseconds.
type Timer struct {
	desc metrics.Descriptor
	dist distribution
}

// Record implements metrics.Timer.
func (t *Timer) Record(d time.Duration) {
	t.dist.record(float64(d) / float64(time.Millisecond))
}

// Snapshot returns the recorded statistics, in milliseconds.
func (t *Timer) Snapshot() Snapshot { return t.dist.snapshot() }

// Descriptor returns the descriptor the timer was created with.
func (t *Timer) Descriptor() metrics.Descriptor { return t.desc }

// Summary records raw values in the descriptor's base unit.
type Summary struct {
	desc metrics.Descriptor
	dist distribution
}

// Record implements metrics.DistributionSummary.
func (s *Summary) Record(v float64) { s.dist.record(v) }

// Snapshot returns the recorded statistics.
func (s *Summary) Snapshot() Snapshot { return s.dist.snapshot() }

// Descriptor returns the descriptor the summary was created with.
func (s *Summary) Descriptor() metrics.Descriptor { return s.desc }

// Gauge samples its cell on read.
type Gauge struct {
	desc metrics.Descriptor
	cell *atomic.Int64
}

// Value implements metrics.Gauge.
func (g *Gauge) Value() float64 { return float64(g.cell.Load()) }
