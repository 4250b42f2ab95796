package analyzer

import (
	"context"

	"sentiment-app/internal/domain/entity"
)

// NoOp is an analyzer that reports every text as neutral and finds no
// companies. It is useful for development when no provider is configured.
type NoOp struct{}

// NewNoOp creates a new NoOp analyzer.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Name implements the analysis Analyzer interface.
func (n *NoOp) Name() string { return ProviderNoOp }

// Method implements the analysis Analyzer interface.
func (n *NoOp) Method() string { return "NoOp (development)" }

// Analyze returns a neutral verdict.
func (n *NoOp) Analyze(_ context.Context, _ string) (entity.Verdict, error) {
	return entity.Verdict{
		Sentiment: entity.SentimentNeutral,
		Scores:    entity.SentimentScores{Neutral: 1},
		Model:     ProviderNoOp,
	}, nil
}
