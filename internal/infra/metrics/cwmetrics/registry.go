// Package cwmetrics implements metrics.Registry on Amazon CloudWatch.
//
// Aggregation and transport are delegated to go-kit's cloudwatch2 package:
// observations are accumulated in memory and published as statistic sets
// (count, sum, min, max) once per step by Run. Tags become CloudWatch
// dimensions. Gauges are sampled from their cells right before each publish.
//
// cloudwatch2 leaves MetricDatum.Unit unset, so the client handed to New is
// wrapped to stamp Milliseconds on timer data and Count on counter data.
// Summaries and gauges are published without a unit.
package cwmetrics

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	kitmetrics "github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/cloudwatch2"

	"sentiment-app/internal/observability/metrics"
)

// Defaults mirror the dashboards and alarms provisioned for the service.
const (
	DefaultRegion    = "eu-north-1"
	DefaultNamespace = "kandidat-48-SentimentApp"
	DefaultStep      = 5 * time.Second
)

// Registry is a CloudWatch-backed metrics.Registry.
type Registry struct {
	cw        *cloudwatch2.CloudWatch
	units     *unitClient
	namespace string
	logger    *slog.Logger

	mu         sync.Mutex
	keys       map[string][]string // metric name -> dimension names
	counters   map[string]kitmetrics.Counter
	histograms map[string]kitmetrics.Histogram
	gauges     map[string]*cellGauge
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewClient builds a CloudWatch client from the default AWS credential chain.
func NewClient(ctx context.Context, region string) (*cloudwatch.Client, error) {
	if region == "" {
		region = DefaultRegion
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return cloudwatch.NewFromConfig(cfg), nil
}

// New creates a Registry publishing into namespace through client.
func New(namespace string, client cloudwatch2.CloudWatchAPI, opts ...Option) *Registry {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	units := &unitClient{next: client, units: make(map[string]types.StandardUnit)}
	r := &Registry{
		cw:         cloudwatch2.New(namespace, units),
		units:      units,
		namespace:  namespace,
		logger:     slog.Default(),
		keys:       make(map[string][]string),
		counters:   make(map[string]kitmetrics.Counter),
		histograms: make(map[string]kitmetrics.Histogram),
		gauges:     make(map[string]*cellGauge),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Namespace returns the CloudWatch namespace metrics are published to.
func (r *Registry) Namespace() string {
	return r.namespace
}

// Counter implements metrics.Registry.
func (r *Registry) Counter(desc metrics.Descriptor) (metrics.Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := desc.ID()
	if c, ok := r.counters[id]; ok {
		return counter{c}, nil
	}
	if err := r.claimLocked(desc); err != nil {
		return nil, err
	}
	c := r.cw.NewCounter(desc.Name).With(desc.Tags.Pairs()...)
	r.counters[id] = c
	r.units.set(desc.Name, types.StandardUnitCount)
	return counter{c}, nil
}

// Timer implements metrics.Registry. Samples are published in milliseconds.
func (r *Registry) Timer(desc metrics.Descriptor) (metrics.Timer, error) {
	h, err := r.histogram(desc)
	if err != nil {
		return nil, err
	}
	r.units.set(desc.Name, types.StandardUnitMilliseconds)
	return timer{h}, nil
}

// Summary implements metrics.Registry.
func (r *Registry) Summary(desc metrics.Descriptor) (metrics.DistributionSummary, error) {
	h, err := r.histogram(desc)
	if err != nil {
		return nil, err
	}
	return summary{h}, nil
}

func (r *Registry) histogram(desc metrics.Descriptor) (kitmetrics.Histogram, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := desc.ID()
	if h, ok := r.histograms[id]; ok {
		return h, nil
	}
	if err := r.claimLocked(desc); err != nil {
		return nil, err
	}
	h := r.cw.NewHistogram(desc.Name).With(desc.Tags.Pairs()...)
	r.histograms[id] = h
	return h, nil
}

// Gauge implements metrics.Registry.
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
	if err := r.claimLocked(desc); err != nil {
		return nil, err
	}
	g := &cellGauge{
		gauge: r.cw.NewGauge(desc.Name).With(desc.Tags.Pairs()...),
		cell:  cell,
	}
	r.gauges[id] = g
	return g, nil
}

func (r *Registry) claimLocked(desc metrics.Descriptor) error {
	keys := desc.Tags.Keys()
	if existing, ok := r.keys[desc.Name]; ok && !slices.Equal(existing, keys) {
		return fmt.Errorf("metric %s: dimensions %v do not match registered %v", desc.Name, keys, existing)
	}
	r.keys[desc.Name] = keys
	return nil
}

// Flush samples every gauge and publishes all pending observations.
func (r *Registry) Flush() error {
	r.mu.Lock()
	for _, g := range r.gauges {
		g.sample()
	}
	r.mu.Unlock()

	if err := r.cw.Send(); err != nil {
		return fmt.Errorf("publish metrics to %s: %w", r.namespace, err)
	}
	return nil
}

// Run publishes every step until ctx is cancelled, then flushes once more.
// Publish failures are logged; samples of a failed step are dropped.
func (r *Registry) Run(ctx context.Context, step time.Duration) error {
	if step <= 0 {
		step = DefaultStep
	}
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	r.logger.Info("cloudwatch publisher started",
		slog.String("namespace", r.namespace),
		slog.Duration("step", step))

	for {
		select {
		case <-ctx.Done():
			if err := r.Flush(); err != nil {
				r.logger.Warn("final cloudwatch flush failed", slog.Any("error", err))
			}
			r.logger.Info("cloudwatch publisher stopped")
			return nil
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				r.logger.Warn("cloudwatch publish failed", slog.Any("error", err))
			}
		}
	}
}

// unitClient fills in the unit of outgoing data by metric name.
type unitClient struct {
	next cloudwatch2.CloudWatchAPI

	mu    sync.RWMutex
	units map[string]types.StandardUnit
}

func (u *unitClient) set(name string, unit types.StandardUnit) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.units[name] = unit
}

func (u *unitClient) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	u.mu.RLock()
	for i := range params.MetricData {
		d := &params.MetricData[i]
		if d.Unit != "" || d.MetricName == nil {
			continue
		}
		if unit, ok := u.units[*d.MetricName]; ok {
			d.Unit = unit
		}
	}
	u.mu.RUnlock()
	return u.next.PutMetricData(ctx, params, optFns...)
}

type counter struct{ c kitmetrics.Counter }

func (c counter) Increment(delta float64) { c.c.Add(delta) }

type timer struct{ h kitmetrics.Histogram }

func (t timer) Record(d time.Duration) {
	t.h.Observe(float64(d) / float64(time.Millisecond))
}

type summary struct{ h kitmetrics.Histogram }

func (s summary) Record(v float64) { s.h.Observe(v) }

type cellGauge struct {
	gauge kitmetrics.Gauge
	cell  *atomic.Int64
}

func (g *cellGauge) sample() { g.gauge.Set(float64(g.cell.Load())) }

func (g *cellGauge) Value() float64 { return float64(g.cell.Load()) }
