package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"sentiment-app/internal/domain/entity"
	"sentiment-app/internal/resilience/circuitbreaker"
	"sentiment-app/internal/resilience/retry"
)

// DefaultClaudeConfig returns the Claude analyzer defaults.
func DefaultClaudeConfig() Config {
	return Config{
		Model:     string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens: 1024,
		Timeout:   60 * time.Second,
	}
}

// Claude analyzes text with Anthropic's Claude API.
type Claude struct {
	client anthropic.Client
	guard  *guard
	config Config
}

// NewClaude creates a Claude analyzer. The SDK's own retries are disabled;
// retrying is left to the analyzer's retry policy.
func NewClaude(apiKey string, cfg Config, opts ...Option) (*Claude, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid claude configuration: %w", err)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}

	c := &Claude{
		client: anthropic.NewClient(clientOpts...),
		guard:  newGuard(circuitbreaker.ClaudeAPIConfig(), retry.AIAPIConfig(), opts),
		config: cfg,
	}
	c.guard.logger.Info("initialized claude analyzer", slog.String("model", cfg.Model))
	return c, nil
}

// Name implements the analysis Analyzer interface.
func (c *Claude) Name() string { return ProviderClaude }

// Method implements the analysis Analyzer interface.
func (c *Claude) Method() string { return "Anthropic Claude (LLM)" }

// Analyze asks Claude for a JSON sentiment verdict on text.
func (c *Claude) Analyze(ctx context.Context, text string) (entity.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	v, err := c.guard.do(ctx, func(ctx context.Context) (entity.Verdict, error) {
		return c.doAnalyze(ctx, text)
	})
	if err != nil {
		return entity.Verdict{}, fmt.Errorf("claude analyze: %w", err)
	}
	return v, nil
}

func (c *Claude) doAnalyze(ctx context.Context, text string) (entity.Verdict, error) {
	start := time.Now()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	duration := time.Since(start)

	if err != nil {
		c.guard.logger.ErrorContext(ctx, "claude request failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return entity.Verdict{}, fmt.Errorf("claude api error: %w",
				&retry.HTTPError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()})
		}
		return entity.Verdict{}, fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return entity.Verdict{}, errors.New("claude api returned empty response")
	}
	block, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return entity.Verdict{}, errors.New("claude api returned unexpected response type")
	}

	v, err := parseVerdict(block.Text, c.config.Model)
	if err != nil {
		return entity.Verdict{}, fmt.Errorf("claude: %w", err)
	}

	c.guard.logger.InfoContext(ctx, "claude analysis completed",
		slog.String("sentiment", string(v.Sentiment)),
		slog.Int("companies", len(v.Companies)),
		slog.Duration("duration", duration))
	return v, nil
}

// Breaker exposes the circuit breaker state for health reporting.
func (c *Claude) Breaker() *circuitbreaker.CircuitBreaker { return c.guard.cb }
