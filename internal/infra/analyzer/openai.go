package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"sentiment-app/internal/domain/entity"
	"sentiment-app/internal/resilience/circuitbreaker"
	"sentiment-app/internal/resilience/retry"
)

// DefaultOpenAIConfig returns the OpenAI analyzer defaults.
func DefaultOpenAIConfig() Config {
	return Config{
		Model:     openai.GPT4oMini,
		MaxTokens: 1024,
		Timeout:   60 * time.Second,
	}
}

// OpenAI analyzes text with the OpenAI chat completions API in JSON mode.
type OpenAI struct {
	client *openai.Client
	guard  *guard
	config Config
}

// NewOpenAI creates an OpenAI analyzer.
func NewOpenAI(apiKey string, cfg Config, opts ...Option) (*OpenAI, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid openai configuration: %w", err)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	o := &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		guard:  newGuard(circuitbreaker.OpenAIAPIConfig(), retry.AIAPIConfig(), opts),
		config: cfg,
	}
	o.guard.logger.Info("initialized openai analyzer", slog.String("model", cfg.Model))
	return o, nil
}

// Name implements the analysis Analyzer interface.
func (o *OpenAI) Name() string { return ProviderOpenAI }

// Method implements the analysis Analyzer interface.
func (o *OpenAI) Method() string { return "OpenAI (LLM)" }

// Analyze asks the model for a JSON sentiment verdict on text.
func (o *OpenAI) Analyze(ctx context.Context, text string) (entity.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	v, err := o.guard.do(ctx, func(ctx context.Context) (entity.Verdict, error) {
		return o.doAnalyze(ctx, text)
	})
	if err != nil {
		return entity.Verdict{}, fmt.Errorf("openai analyze: %w", err)
	}
	return v, nil
}

func (o *OpenAI) doAnalyze(ctx context.Context, text string) (entity.Verdict, error) {
	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.config.Model,
		MaxTokens: o.config.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	duration := time.Since(start)

	if err != nil {
		o.guard.logger.ErrorContext(ctx, "openai request failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return entity.Verdict{}, fmt.Errorf("openai api error: %w",
				&retry.HTTPError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message})
		}
		return entity.Verdict{}, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return entity.Verdict{}, errors.New("openai api returned empty response")
	}

	model := resp.Model
	if model == "" {
		model = o.config.Model
	}
	v, err := parseVerdict(resp.Choices[0].Message.Content, model)
	if err != nil {
		return entity.Verdict{}, fmt.Errorf("openai: %w", err)
	}

	o.guard.logger.InfoContext(ctx, "openai analysis completed",
		slog.String("sentiment", string(v.Sentiment)),
		slog.Int("companies", len(v.Companies)),
		slog.Duration("duration", duration))
	return v, nil
}

// Breaker exposes the circuit breaker state for health reporting.
func (o *OpenAI) Breaker() *circuitbreaker.CircuitBreaker { return o.guard.cb }
