// Package otelmetrics implements metrics.Registry on an OpenTelemetry meter.
//
// Instruments are created lazily per metric name and cached; tags travel as
// attributes on each measurement. Timers become float64 histograms in
// milliseconds and gauges are observable, read from their cells at collection.
package otelmetrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"sentiment-app/internal/observability/metrics"
)

// ScopeName is the instrumentation scope used when building a meter.
const ScopeName = "sentiment-app/metrics"

// ErrNilMeter indicates that a nil meter was provided.
var ErrNilMeter = errors.New("metric meter cannot be nil")

// Registry is an OpenTelemetry-backed metrics.Registry.
type Registry struct {
	meter metric.Meter

	counters   sync.Map // name -> metric.Float64Counter
	histograms sync.Map // name -> metric.Float64Histogram

	mu     sync.Mutex
	gauges map[string]metric.Registration
}

// NewRegistry creates a Registry recording through meter.
func NewRegistry(meter metric.Meter) (*Registry, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	return &Registry{
		meter:  meter,
		gauges: make(map[string]metric.Registration),
	}, nil
}

// NewRegistryFromProvider creates a Registry from the provider's ScopeName meter.
func NewRegistryFromProvider(provider metric.MeterProvider) (*Registry, error) {
	if provider == nil {
		return nil, ErrNilMeter
	}
	return NewRegistry(provider.Meter(ScopeName))
}

// Counter implements metrics.Registry.
func (r *Registry) Counter(desc metrics.Descriptor) (metrics.Counter, error) {
	if c, ok := r.counters.Load(desc.Name); ok {
		return counter{c.(metric.Float64Counter), attributes(desc.Tags)}, nil
	}

	c, err := r.meter.Float64Counter(desc.Name, counterOptions(desc)...)
	if err != nil {
		return nil, fmt.Errorf("create counter %q: %w", desc.Name, err)
	}
	actual, _ := r.counters.LoadOrStore(desc.Name, c)
	return counter{actual.(metric.Float64Counter), attributes(desc.Tags)}, nil
}

// Timer implements metrics.Registry.
func (r *Registry) Timer(desc metrics.Descriptor) (metrics.Timer, error) {
	desc.BaseUnit = "ms"
	h, err := r.histogram(desc)
	if err != nil {
		return nil, err
	}
	return timer{h, attributes(desc.Tags)}, nil
}

// Summary implements metrics.Registry.
func (r *Registry) Summary(desc metrics.Descriptor) (metrics.DistributionSummary, error) {
	h, err := r.histogram(desc)
	if err != nil {
		return nil, err
	}
	return summary{h, attributes(desc.Tags)}, nil
}

func (r *Registry) histogram(desc metrics.Descriptor) (metric.Float64Histogram, error) {
	if h, ok := r.histograms.Load(desc.Name); ok {
		return h.(metric.Float64Histogram), nil
	}

	opts := []metric.Float64HistogramOption{metric.WithDescription(desc.Description)}
	if unit := otelUnit(desc.BaseUnit); unit != "" {
		opts = append(opts, metric.WithUnit(unit))
	}
	h, err := r.meter.Float64Histogram(desc.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("create histogram %q: %w", desc.Name, err)
	}
	actual, _ := r.histograms.LoadOrStore(desc.Name, h)
	return actual.(metric.Float64Histogram), nil
}

// Gauge implements metrics.Registry with an observable gauge reading cell on
// every collection.
func (r *Registry) Gauge(desc metrics.Descriptor, cell *atomic.Int64) (metrics.Gauge, error) {
	if cell == nil {
		return nil, fmt.Errorf("gauge %s: nil cell", desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := desc.ID()
	if _, ok := r.gauges[id]; ok {
		return nil, fmt.Errorf("gauge %s already registered", id)
	}

	opts := []metric.Int64ObservableGaugeOption{metric.WithDescription(desc.Description)}
	if unit := otelUnit(desc.BaseUnit); unit != "" {
		opts = append(opts, metric.WithUnit(unit))
	}
	g, err := r.meter.Int64ObservableGauge(desc.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gauge %q: %w", desc.Name, err)
	}

	set := metric.WithAttributeSet(attribute.NewSet(tagAttributes(desc.Tags)...))
	reg, err := r.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(g, cell.Load(), set)
		return nil
	}, g)
	if err != nil {
		return nil, fmt.Errorf("register gauge %q callback: %w", desc.Name, err)
	}
	r.gauges[id] = reg
	return gauge{cell}, nil
}

// Close unregisters every gauge callback.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, reg := range r.gauges {
		if err := reg.Unregister(); err != nil {
			errs = append(errs, fmt.Errorf("unregister %s: %w", id, err))
		}
		delete(r.gauges, id)
	}
	return errors.Join(errs...)
}

func counterOptions(desc metrics.Descriptor) []metric.Float64CounterOption {
	opts := []metric.Float64CounterOption{metric.WithDescription(desc.Description)}
	if unit := otelUnit(desc.BaseUnit); unit != "" {
		opts = append(opts, metric.WithUnit(unit))
	}
	return opts
}

// otelUnit maps base units to UCUM codes.
func otelUnit(unit string) string {
	switch unit {
	case metrics.UnitMilliseconds:
		return "ms"
	case metrics.UnitRatio:
		return "1"
	default:
		return unit
	}
}

func tagAttributes(tags metrics.Tags) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(tags))
	for _, t := range tags {
		kvs = append(kvs, attribute.String(t.Key, t.Value))
	}
	return kvs
}

func attributes(tags metrics.Tags) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(tagAttributes(tags)...))
}

type counter struct {
	c     metric.Float64Counter
	attrs metric.MeasurementOption
}

// Increment ignores negative deltas: OpenTelemetry counters are monotonic.
func (c counter) Increment(delta float64) {
	if delta < 0 {
		return
	}
	c.c.Add(context.Background(), delta, c.attrs)
}

type timer struct {
	h     metric.Float64Histogram
	attrs metric.MeasurementOption
}

func (t timer) Record(d time.Duration) {
	t.h.Record(context.Background(), float64(d)/float64(time.Millisecond), t.attrs)
}

type summary struct {
	h     metric.Float64Histogram
	attrs metric.MeasurementOption
}

func (s summary) Record(v float64) {
	s.h.Record(context.Background(), v, s.attrs)
}

type gauge struct{ cell *atomic.Int64 }

func (g gauge) Value() float64 { return float64(g.cell.Load()) }
