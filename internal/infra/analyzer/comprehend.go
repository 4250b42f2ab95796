package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"
	"golang.org/x/sync/errgroup"

	"sentiment-app/internal/domain/entity"
	"sentiment-app/internal/resilience/circuitbreaker"
	"sentiment-app/internal/resilience/retry"
)

// DefaultComprehendRegion is where Comprehend is normally available to us.
const DefaultComprehendRegion = "eu-west-1"

// ComprehendAPI is the subset of the Comprehend client the analyzer uses.
type ComprehendAPI interface {
	DetectSentiment(ctx context.Context, params *comprehend.DetectSentimentInput, optFns ...func(*comprehend.Options)) (*comprehend.DetectSentimentOutput, error)
	DetectEntities(ctx context.Context, params *comprehend.DetectEntitiesInput, optFns ...func(*comprehend.Options)) (*comprehend.DetectEntitiesOutput, error)
}

// NewComprehendClient builds a Comprehend client from the default AWS
// credential chain.
func NewComprehendClient(ctx context.Context, region string) (*comprehend.Client, error) {
	if region == "" {
		region = DefaultComprehendRegion
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return comprehend.NewFromConfig(cfg), nil
}

// Comprehend analyzes text with Amazon Comprehend. Sentiment and entity
// detection run concurrently; ORGANIZATION entities become companies.
type Comprehend struct {
	client  ComprehendAPI
	guard   *guard
	timeout time.Duration
}

// NewComprehend creates a Comprehend analyzer.
func NewComprehend(client ComprehendAPI, opts ...Option) *Comprehend {
	return &Comprehend{
		client:  client,
		guard:   newGuard(circuitbreaker.ComprehendAPIConfig(), retry.AIAPIConfig(), opts),
		timeout: 30 * time.Second,
	}
}

// Name implements the analysis Analyzer interface.
func (c *Comprehend) Name() string { return ProviderComprehend }

// Method implements the analysis Analyzer interface.
func (c *Comprehend) Method() string { return "Amazon Comprehend (Statistical)" }

// Analyze detects overall sentiment and the organisations mentioned in text.
func (c *Comprehend) Analyze(ctx context.Context, text string) (entity.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	v, err := c.guard.do(ctx, func(ctx context.Context) (entity.Verdict, error) {
		return c.detect(ctx, text)
	})
	if err != nil {
		return entity.Verdict{}, fmt.Errorf("comprehend analyze: %w", err)
	}
	return v, nil
}

func (c *Comprehend) detect(ctx context.Context, text string) (entity.Verdict, error) {
	var (
		sentiment *comprehend.DetectSentimentOutput
		entities  *comprehend.DetectEntitiesOutput
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := c.client.DetectSentiment(gctx, &comprehend.DetectSentimentInput{
			Text:         aws.String(text),
			LanguageCode: types.LanguageCodeEn,
		})
		if err != nil {
			return fmt.Errorf("detect sentiment: %w", err)
		}
		sentiment = out
		return nil
	})
	g.Go(func() error {
		out, err := c.client.DetectEntities(gctx, &comprehend.DetectEntitiesInput{
			Text:         aws.String(text),
			LanguageCode: types.LanguageCodeEn,
		})
		if err != nil {
			return fmt.Errorf("detect entities: %w", err)
		}
		entities = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return entity.Verdict{}, err
	}

	v := entity.Verdict{
		Sentiment: entity.ParseSentiment(string(sentiment.Sentiment)),
		Companies: organisations(entities.Entities),
		Model:     "comprehend",
	}
	if s := sentiment.SentimentScore; s != nil {
		v.Scores = entity.SentimentScores{
			Positive: float64(aws.ToFloat32(s.Positive)),
			Negative: float64(aws.ToFloat32(s.Negative)),
			Neutral:  float64(aws.ToFloat32(s.Neutral)),
			Mixed:    float64(aws.ToFloat32(s.Mixed)),
		}
	}

	slog.DebugContext(ctx, "comprehend analysis completed",
		slog.String("sentiment", string(v.Sentiment)),
		slog.Int("companies", len(v.Companies)))
	return v, nil
}

// organisations keeps ORGANIZATION entities, one per name (case-insensitive),
// with the highest score seen. Order of first mention is preserved.
func organisations(ents []types.Entity) []entity.Company {
	var companies []entity.Company
	index := make(map[string]int)
	for _, e := range ents {
		if e.Type != types.EntityTypeOrganization {
			continue
		}
		name := strings.TrimSpace(aws.ToString(e.Text))
		if name == "" {
			continue
		}
		score := float64(aws.ToFloat32(e.Score))
		key := strings.ToLower(name)
		if i, ok := index[key]; ok {
			if score > companies[i].Confidence {
				companies[i].Confidence = score
			}
			continue
		}
		index[key] = len(companies)
		companies = append(companies, entity.Company{Name: name, Confidence: score})
	}
	return companies
}

// Breaker exposes the circuit breaker state for health reporting.
func (c *Comprehend) Breaker() *circuitbreaker.CircuitBreaker { return c.guard.cb }
