// Package analysis runs one text through the configured analyzer, records
// the sentiment metrics and persists the result.
package analysis

import (
	"context"
	"crypto/md5" // #nosec G501 -- request IDs only, not a security boundary
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"sentiment-app/internal/domain/entity"
	"sentiment-app/internal/observability/tracing"
	"sentiment-app/internal/repository"
	"sentiment-app/internal/utils/text"
)

const (
	// MaxTextBytes is the largest text handed to an analyzer. Longer input
	// is cut on a UTF-8 boundary.
	MaxTextBytes = 5000
	// DefaultKeyPrefix is the storage prefix results are written under.
	DefaultKeyPrefix = "midlertidig"

	keyTimeLayout = "20060102-150405"
)

// ErrTextRequired is returned when the request carries no text.
var ErrTextRequired = &entity.ValidationError{Field: "text", Message: "Text field is required"}

// Analyzer turns a text into a verdict.
type Analyzer interface {
	// Name is the short provider name used in storage keys.
	Name() string
	// Method is the human readable description stored with each result.
	Method() string
	Analyze(ctx context.Context, text string) (entity.Verdict, error)
}

// Recorder receives the sentiment metrics of every analysis.
// *metrics.SentimentMetrics satisfies it.
type Recorder interface {
	RecordAnalysis(sentiment, company string)
	RecordDuration(d time.Duration, company, model string)
	RecordCompaniesDetected(count int)
	RecordConfidence(confidence float64, sentiment, company string)
}

// NoopRecorder drops every measurement.
type NoopRecorder struct{}

func (NoopRecorder) RecordAnalysis(string, string) {}
func (NoopRecorder) RecordDuration(time.Duration, string, string) {}
func (NoopRecorder) RecordCompaniesDetected(int) {}
func (NoopRecorder) RecordConfidence(float64, string, string) {}

// Request is one analysis request.
type Request struct {
	Text string
	// RequestID is optional. When empty an ID is derived from the text.
	RequestID string
}

// Outcome is the stored result and where it was stored.
type Outcome struct {
	Analysis *entity.Analysis
	Location string
}

// Service orchestrates analyzer, metrics and result store.
type Service struct {
	analyzer  Analyzer
	store     repository.ResultStore
	recorder  Recorder
	keyPrefix string
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Service) {
		if p := strings.Trim(prefix, "/"); p != "" {
			s.keyPrefix = p
		}
	}
}

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. A nil recorder disables metrics.
func NewService(analyzer Analyzer, store repository.ResultStore, recorder Recorder, opts ...Option) *Service {
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	s := &Service{
		analyzer:  analyzer,
		store:     store,
		recorder:  recorder,
		keyPrefix: DefaultKeyPrefix,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze validates the request, runs the analyzer and stores the result.
//
// An analyzer failure does not fail the request: the error message is kept
// in the result's analysis_error field and the result is stored anyway.
// Only validation and store failures are returned as errors.
func (s *Service) Analyze(ctx context.Context, req Request) (*Outcome, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrTextRequired
	}

	input := text.TruncateBytes(req.Text, MaxTextBytes)
	requestID := req.RequestID
	if requestID == "" {
		requestID = DeriveRequestID(input)
	}

	now := s.now().UTC()
	result := &entity.Analysis{
		RequestID:  requestID,
		Timestamp:  now,
		TextLength: text.CountRunes(input),
		Method:     s.analyzer.Method(),
	}

	ctx, span := tracing.GetTracer().Start(ctx, "analysis.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("analysis.request_id", requestID),
		attribute.String("analysis.provider", s.analyzer.Name()),
		attribute.Int("analysis.text_length", result.TextLength),
	)

	start := time.Now()
	verdict, err := s.analyzer.Analyze(ctx, input)
	elapsed := time.Since(start)
	if err != nil {
		result.Error = err.Error()
		span.RecordError(err)
		slog.WarnContext(ctx, "analyzer failed, storing result without verdict",
			slog.String("request_id", requestID),
			slog.String("provider", s.analyzer.Name()),
			slog.Any("error", err))
	} else {
		result.Apply(verdict)
	}

	s.record(result, elapsed)

	key := s.resultKey(now, requestID)
	location, err := s.store.Save(ctx, key, result)
	if err != nil {
		span.SetStatus(codes.Error, "store failed")
		slog.ErrorContext(ctx, "failed to store analysis result",
			slog.String("request_id", requestID),
			slog.String("key", key),
			slog.Any("error", err))
		return nil, fmt.Errorf("store analysis %s: %w", requestID, err)
	}

	slog.InfoContext(ctx, "analysis completed",
		slog.String("request_id", requestID),
		slog.String("provider", s.analyzer.Name()),
		slog.String("sentiment", string(result.OverallSentiment)),
		slog.Int("companies", len(result.Companies)),
		slog.Duration("duration", elapsed),
		slog.String("location", location))

	return &Outcome{Analysis: result, Location: location}, nil
}

// record emits one analysis/duration/confidence sample per detected company.
// Results without companies are recorded once under a blank company, which
// the metrics facade reports as UNKNOWN.
func (s *Service) record(a *entity.Analysis, elapsed time.Duration) {
	s.recorder.RecordCompaniesDetected(len(a.Companies))

	if len(a.Companies) == 0 {
		s.recorder.RecordAnalysis(string(a.OverallSentiment), "")
		s.recorder.RecordDuration(elapsed, "", a.Model)
		if !a.Failed() {
			s.recorder.RecordConfidence(a.OverallConfidence(), string(a.OverallSentiment), "")
		}
		return
	}

	for _, c := range a.Companies {
		sentiment := string(a.CompanySentiment(c))
		s.recorder.RecordAnalysis(sentiment, c.Name)
		s.recorder.RecordDuration(elapsed, c.Name, a.Model)
		s.recorder.RecordConfidence(c.Confidence, sentiment, c.Name)
	}
}

func (s *Service) resultKey(at time.Time, requestID string) string {
	return fmt.Sprintf("%s/%s-%s-%s.json", s.keyPrefix, s.analyzer.Name(), at.Format(keyTimeLayout), requestID)
}

// DeriveRequestID returns the first 8 hex characters of the MD5 of text.
func DeriveRequestID(input string) string {
	sum := md5.Sum([]byte(input)) // #nosec G401
	return hex.EncodeToString(sum[:])[:8]
}
