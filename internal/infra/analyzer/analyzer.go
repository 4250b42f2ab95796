// Package analyzer provides sentiment analyzers backed by Amazon Comprehend,
// Anthropic Claude and OpenAI, plus a NoOp analyzer for development.
//
// Every remote analyzer runs its calls through a circuit breaker and a
// retry-with-backoff loop. A call rejected by an open breaker fails with
// entity.ErrAnalyzerUnavailable and is not retried.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sentiment-app/internal/domain/entity"
	"sentiment-app/internal/resilience/circuitbreaker"
	"sentiment-app/internal/resilience/retry"
)

// Provider names, used in storage keys and logs.
const (
	ProviderComprehend = "comprehend"
	ProviderClaude     = "claude"
	ProviderOpenAI     = "openai"
	ProviderNoOp       = "noop"
)

// Config holds the settings shared by the LLM analyzers.
type Config struct {
	// Model is the provider model identifier.
	Model string

	// MaxTokens bounds the size of the model's JSON answer.
	MaxTokens int

	// Timeout bounds a single Analyze call, retries included.
	Timeout time.Duration

	// BaseURL overrides the provider endpoint. Empty means the SDK default.
	BaseURL string
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Model == "" {
		return errors.New("model cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// Option customises the resilience wrapper of an analyzer.
type Option func(*guard)

// WithRetryConfig replaces the retry policy.
func WithRetryConfig(cfg retry.Config) Option {
	return func(g *guard) { g.retry = cfg }
}

// WithCircuitBreaker replaces the circuit breaker.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(g *guard) {
		if cb != nil {
			g.cb = cb
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// guard runs analyzer calls through a circuit breaker inside a retry loop.
type guard struct {
	cb     *circuitbreaker.CircuitBreaker
	retry  retry.Config
	logger *slog.Logger
}

func newGuard(cbCfg circuitbreaker.Config, retryCfg retry.Config, opts []Option) *guard {
	g := &guard{
		cb:     circuitbreaker.New(cbCfg),
		retry:  retryCfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *guard) do(ctx context.Context, fn func(context.Context) (entity.Verdict, error)) (entity.Verdict, error) {
	var verdict entity.Verdict
	err := retry.WithBackoff(ctx, g.retry, func() error {
		v, err := circuitbreaker.Run(g.cb, func() (entity.Verdict, error) {
			return fn(ctx)
		})
		if err != nil {
			if circuitbreaker.IsRejected(err) {
				g.logger.WarnContext(ctx, "analyzer circuit breaker open, request rejected",
					slog.String("service", g.cb.Name()),
					slog.String("state", g.cb.State().String()))
				return fmt.Errorf("%s: %w", g.cb.Name(), entity.ErrAnalyzerUnavailable)
			}
			return err
		}
		verdict = v
		return nil
	})
	if err != nil {
		return entity.Verdict{}, err
	}
	return verdict, nil
}
