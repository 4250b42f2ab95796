package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sentiment-app/internal/domain/entity"
)

// systemPrompt asks the model for a strict JSON verdict.
const systemPrompt = `You are a financial news sentiment classifier.
Read the article and answer with a single JSON object and nothing else:
{"sentiment": "POSITIVE|NEGATIVE|NEUTRAL|MIXED",
 "scores": {"positive": 0.0, "negative": 0.0, "neutral": 0.0, "mixed": 0.0},
 "companies": [{"name": "Company", "sentiment": "POSITIVE|NEGATIVE|NEUTRAL|MIXED", "confidence": 0.0}]}
Scores and confidences are between 0.0 and 1.0. List only companies and other
organisations that are explicitly mentioned.`

var errNoJSON = errors.New("model answer contains no JSON object")

type llmCompany struct {
	Name       string  `json:"name"`
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

type llmAnswer struct {
	Sentiment string `json:"sentiment"`
	Scores    struct {
		Positive float64 `json:"positive"`
		Negative float64 `json:"negative"`
		Neutral  float64 `json:"neutral"`
		Mixed    float64 `json:"mixed"`
	} `json:"scores"`
	Companies []llmCompany `json:"companies"`
}

// parseVerdict decodes a model answer. Markdown code fences and text around
// the JSON object are tolerated.
func parseVerdict(answer, model string) (entity.Verdict, error) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end < start {
		return entity.Verdict{}, errNoJSON
	}

	var a llmAnswer
	if err := json.Unmarshal([]byte(answer[start:end+1]), &a); err != nil {
		return entity.Verdict{}, fmt.Errorf("decode model answer: %w", err)
	}

	sentiment := entity.ParseSentiment(a.Sentiment)
	if sentiment == "" {
		return entity.Verdict{}, fmt.Errorf("model answer has unknown sentiment %q", a.Sentiment)
	}

	v := entity.Verdict{
		Sentiment: sentiment,
		Scores: entity.SentimentScores{
			Positive: a.Scores.Positive,
			Negative: a.Scores.Negative,
			Neutral:  a.Scores.Neutral,
			Mixed:    a.Scores.Mixed,
		},
		Model: model,
	}
	for _, c := range a.Companies {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		v.Companies = append(v.Companies, entity.Company{
			Name:       name,
			Sentiment:  entity.ParseSentiment(c.Sentiment),
			Confidence: c.Confidence,
		})
	}
	return v, nil
}
