// Package prom implements metrics.Registry on top of the Prometheus client.
//
// Every instrument lives in a custom *prometheus.Registry rather than the
// global default registerer, so tests can create isolated registries and the
// metrics server can expose exactly one of them via Handler.
//
// Dotted names are converted to Prometheus form: non-alphanumeric characters
// become underscores and the unit is appended as a suffix, so
// sentiment.analysis.duration becomes sentiment_analysis_duration_seconds.
package prom

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sentiment-app/internal/observability/metrics"
)

// DefaultTimerBuckets covers model calls from 50ms up to roughly 100s.
var DefaultTimerBuckets = prometheus.ExponentialBuckets(0.05, 2, 12)

// Registry is a Prometheus-backed metrics.Registry.
type Registry struct {
	registry *prometheus.Registry
	buckets  []float64

	mu        sync.Mutex
	claims    map[string]claim // prometheus name -> kind and label names
	counters  map[string]*prometheus.CounterVec
	timers    map[string]*prometheus.HistogramVec
	summaries map[string]*prometheus.SummaryVec
	gauges    map[string]prometheus.GaugeFunc
}

type kind string

const (
	kindCounter kind = "counter"
	kindTimer   kind = "timer"
	kindSummary kind = "summary"
	kindGauge   kind = "gauge"
)

// claim is the instrument kind and label layout a name was first used with.
type claim struct {
	kind kind
	keys []string
}

// Option configures a Registry.
type Option func(*Registry)

// WithRegistry uses an existing Prometheus registry instead of a fresh one.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(r *Registry) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// WithTimerBuckets overrides the histogram buckets used by timers, in seconds.
func WithTimerBuckets(buckets []float64) Option {
	return func(r *Registry) {
		if len(buckets) > 0 {
			r.buckets = buckets
		}
	}
}

// NewRegistry creates a Registry with its own Prometheus registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		registry:  prometheus.NewRegistry(),
		buckets:   DefaultTimerBuckets,
		claims:    make(map[string]claim),
		counters:  make(map[string]*prometheus.CounterVec),
		timers:    make(map[string]*prometheus.HistogramVec),
		summaries: make(map[string]*prometheus.SummaryVec),
		gauges:    make(map[string]prometheus.GaugeFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prometheus returns the underlying registry.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Counter implements metrics.Registry.
func (r *Registry) Counter(desc metrics.Descriptor) (metrics.Counter, error) {
	name := MetricName(desc.Name, desc.BaseUnit)
	vec, err := resolve(r, r.counters, name, kindCounter, desc.Tags.Keys(), func() *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: help(desc),
		}, desc.Tags.Keys())
	})
	if err != nil {
		return nil, err
	}

	c, err := vec.GetMetricWithLabelValues(desc.Tags.Values()...)
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", name, err)
	}
	return counter{c}, nil
}

// Timer implements metrics.Registry. Durations are exported in seconds.
func (r *Registry) Timer(desc metrics.Descriptor) (metrics.Timer, error) {
	name := MetricName(desc.Name, "seconds")
	vec, err := resolve(r, r.timers, name, kindTimer, desc.Tags.Keys(), func() *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    help(desc),
			Buckets: r.buckets,
		}, desc.Tags.Keys())
	})
	if err != nil {
		return nil, err
	}

	o, err := vec.GetMetricWithLabelValues(desc.Tags.Values()...)
	if err != nil {
		return nil, fmt.Errorf("timer %s: %w", name, err)
	}
	return timer{o}, nil
}

// Summary implements metrics.Registry. Only count and sum are exported.
func (r *Registry) Summary(desc metrics.Descriptor) (metrics.DistributionSummary, error) {
	name := MetricName(desc.Name, desc.BaseUnit)
	vec, err := resolve(r, r.summaries, name, kindSummary, desc.Tags.Keys(), func() *prometheus.SummaryVec {
		return prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name: name,
			Help: help(desc),
		}, desc.Tags.Keys())
	})
	if err != nil {
		return nil, err
	}

	o, err := vec.GetMetricWithLabelValues(desc.Tags.Values()...)
	if err != nil {
		return nil, fmt.Errorf("summary %s: %w", name, err)
	}
	return summary{o}, nil
}

// resolve returns the cached vector for name, creating and registering it on
// first use. The claim is checked on every call, cache hits included.
func resolve[V prometheus.Collector](r *Registry, cache map[string]V, name string, k kind, keys []string, create func() V) (V, error) {
	var zero V

	r.mu.Lock()
	defer r.mu.Unlock()

	_, claimed := r.claims[name]
	if err := r.claimLocked(name, k, keys); err != nil {
		return zero, err
	}
	if vec, ok := cache[name]; ok {
		return vec, nil
	}

	registered, err := register(r.registry, create())
	if err == nil {
		if vec, ok := registered.(V); ok {
			cache[name] = vec
			return vec, nil
		}
		err = fmt.Errorf("already registered as %T", registered)
	}
	if !claimed {
		delete(r.claims, name)
	}
	return zero, fmt.Errorf("%s %s: %w", k, name, err)
}

// Gauge implements metrics.Registry with a GaugeFunc reading cell on scrape.
func (r *Registry) Gauge(desc metrics.Descriptor, cell *atomic.Int64) (metrics.Gauge, error) {
	if cell == nil {
		return nil, fmt.Errorf("gauge %s: nil cell", desc.Name)
	}
	if len(desc.Tags) > 0 {
		return nil, fmt.Errorf("gauge %s: tagged gauges are not supported", desc.Name)
	}
	name := MetricName(desc.Name, desc.BaseUnit)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.gauges[name]; ok {
		return nil, fmt.Errorf("gauge %s already registered", name)
	}
	if err := r.claimLocked(name, kindGauge, nil); err != nil {
		return nil, err
	}
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: name,
		Help: help(desc),
	}, func() float64 { return float64(cell.Load()) })
	if err := r.registry.Register(g); err != nil {
		return nil, fmt.Errorf("gauge %s: %w", name, err)
	}
	r.gauges[name] = g
	return gauge{cell}, nil
}

// claimLocked reserves name for one instrument kind and label layout. A name
// may not change either after first use.
func (r *Registry) claimLocked(name string, k kind, keys []string) error {
	existing, ok := r.claims[name]
	if !ok {
		r.claims[name] = claim{kind: k, keys: slices.Clone(keys)}
		return nil
	}
	if existing.kind != k {
		return fmt.Errorf("metric %s: already registered as a %s, not a %s", name, existing.kind, k)
	}
	if !slices.Equal(existing.keys, keys) {
		return fmt.Errorf("metric %s: label keys %v do not match registered %v", name, keys, existing.keys)
	}
	return nil
}

// register registers c, reusing an identical collector that is already present.
func register(reg prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector, nil
		}
		return nil, err
	}
	return c, nil
}

// MetricName converts a dotted metric name to Prometheus form and appends the
// unit suffix when it is not already present.
func MetricName(name, unit string) string {
	sanitized := sanitize(name)
	if unit == "" || unit == metrics.UnitMilliseconds {
		return sanitized
	}
	suffix := "_" + sanitize(unit)
	if strings.HasSuffix(sanitized, suffix) {
		return sanitized
	}
	return sanitized + suffix
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		default:
			return '_'
		}
	}, s)
}

func help(desc metrics.Descriptor) string {
	if desc.Description != "" {
		return desc.Description
	}
	return desc.Name
}

type counter struct{ c prometheus.Counter }

// Increment ignores negative deltas: Prometheus counters are monotonic.
func (c counter) Increment(delta float64) {
	if delta < 0 {
		return
	}
	c.c.Add(delta)
}

type timer struct{ o prometheus.Observer }

func (t timer) Record(d time.Duration) { t.o.Observe(d.Seconds()) }

type summary struct{ o prometheus.Observer }

func (s summary) Record(v float64) { s.o.Observe(v) }

type gauge struct{ cell *atomic.Int64 }

func (g gauge) Value() float64 { return float64(g.cell.Load()) }
