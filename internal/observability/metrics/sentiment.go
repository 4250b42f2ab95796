package metrics

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metric names. These are referenced verbatim by dashboards and alarms.
const (
	AnalysisTotalName     = "sentiment.analysis.total"
	AnalysisDurationName  = "sentiment.analysis.duration"
	CompaniesDetectedName = "sentiment.analysis.companies.detected"
	ConfidenceName        = "sentiment.analysis.confidence"
)

// Tag keys.
const (
	TagSentiment = "sentiment"
	TagCompany   = "company"
	TagModel     = "model"
)

// Unknown replaces blank tag values.
const Unknown = "UNKNOWN"

// SentimentMetrics records sentiment-analysis events into a Registry.
//
// Only the companies-detected gauge is registered at construction; every other
// instrument is resolved lazily per tag combination. All Record methods are
// best effort: registry failures are logged and never reach the caller.
type SentimentMetrics struct {
	registry  Registry
	logger    *slog.Logger
	companies *atomic.Int64 // nil when the gauge failed to register
}

// Option configures a SentimentMetrics.
type Option func(*SentimentMetrics)

// WithLogger sets the logger used to report dropped samples.
func WithLogger(logger *slog.Logger) Option {
	return func(m *SentimentMetrics) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewSentimentMetrics creates the facade and registers the companies-detected
// gauge. It fails immediately when registry is nil.
func NewSentimentMetrics(registry Registry, opts ...Option) (*SentimentMetrics, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}

	m := &SentimentMetrics{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	cell := new(atomic.Int64)
	gauge, err := m.registerGauge(cell)
	switch {
	case err != nil:
		m.logger.Warn("companies gauge registration failed, gauge updates disabled",
			slog.String("metric", CompaniesDetectedName),
			slog.Any("error", err))
	case gauge == nil:
		m.logger.Warn("companies gauge registration returned no handle, gauge updates disabled",
			slog.String("metric", CompaniesDetectedName))
	default:
		m.companies = cell
	}

	return m, nil
}

func (m *SentimentMetrics) registerGauge(cell *atomic.Int64) (g Gauge, err error) {
	defer func() {
		if r := recover(); r != nil {
			g, err = nil, fmt.Errorf("register gauge panicked: %v", r)
		}
	}()
	return m.registry.Gauge(Descriptor{
		Name:        CompaniesDetectedName,
		Description: "Number of companies detected in the most recent analysis",
	}, cell)
}

// RecordAnalysis increments sentiment.analysis.total for the sentiment/company pair.
func (m *SentimentMetrics) RecordAnalysis(sentiment, company string) {
	defer m.recoverPanic(AnalysisTotalName)

	counter, err := m.registry.Counter(Descriptor{
		Name:        AnalysisTotalName,
		Description: "Total number of sentiment analysis requests per sentiment/company",
		Tags: Tags{
			{Key: TagSentiment, Value: Normalize(sentiment)},
			{Key: TagCompany, Value: Normalize(company)},
		},
	})
	if err != nil {
		m.drop(AnalysisTotalName, err)
		return
	}
	counter.Increment(1)
}

// RecordDuration records one sample into sentiment.analysis.duration.
// Negative durations are passed through to the registry unchanged.
func (m *SentimentMetrics) RecordDuration(d time.Duration, company, model string) {
	defer m.recoverPanic(AnalysisDurationName)

	timer, err := m.registry.Timer(Descriptor{
		Name:        AnalysisDurationName,
		Description: "Time taken to perform a sentiment analysis",
		BaseUnit:    UnitMilliseconds,
		Tags: Tags{
			{Key: TagCompany, Value: Normalize(company)},
			{Key: TagModel, Value: Normalize(model)},
		},
	})
	if err != nil {
		m.drop(AnalysisDurationName, err)
		return
	}
	timer.Record(d)
}

// RecordCompaniesDetected sets the companies-detected gauge. Last write wins.
// It is a no-op when the gauge could not be registered.
func (m *SentimentMetrics) RecordCompaniesDetected(count int) {
	if m.companies == nil {
		return
	}
	m.companies.Store(int64(count))
}

// RecordConfidence records one sample into sentiment.analysis.confidence.
// The value is expected in [0, 1] but is not clamped.
func (m *SentimentMetrics) RecordConfidence(confidence float64, sentiment, company string) {
	defer m.recoverPanic(ConfidenceName)

	summary, err := m.registry.Summary(Descriptor{
		Name:        ConfidenceName,
		Description: "Model confidence per company and sentiment (0.0 - 1.0)",
		BaseUnit:    UnitRatio,
		Tags: Tags{
			{Key: TagSentiment, Value: Normalize(sentiment)},
			{Key: TagCompany, Value: Normalize(company)},
		},
	})
	if err != nil {
		m.drop(ConfidenceName, err)
		return
	}
	summary.Record(confidence)
}

// CompaniesDetected returns the current gauge cell value, and false when the
// gauge is disabled.
func (m *SentimentMetrics) CompaniesDetected() (int64, bool) {
	if m.companies == nil {
		return 0, false
	}
	return m.companies.Load(), true
}

func (m *SentimentMetrics) drop(metric string, err error) {
	m.logger.Warn("metric sample dropped",
		slog.String("metric", metric),
		slog.Any("error", err))
}

func (m *SentimentMetrics) recoverPanic(metric string) {
	if r := recover(); r != nil {
		m.drop(metric, fmt.Errorf("registry panicked: %v", r))
	}
}

// Normalize maps blank tag values to Unknown.
func Normalize(value string) string {
	if strings.TrimSpace(value) == "" {
		return Unknown
	}
	return value
}
