// Package entity defines the core domain entities of the sentiment service:
// the analysis result written to storage and returned to callers, the
// verdict an analyzer produces, and the domain-specific errors.
package entity

import (
	"strings"
	"time"
)

// Sentiment is the overall polarity label of a text.
type Sentiment string

// Labels produced by the analyzers. They match Amazon Comprehend's vocabulary.
const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentMixed    Sentiment = "MIXED"
)

// ParseSentiment maps a free-form label onto a known Sentiment.
// Unrecognised labels yield the empty Sentiment.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(strings.ToUpper(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNegative:
		return SentimentNegative
	case SentimentNeutral:
		return SentimentNeutral
	case SentimentMixed:
		return SentimentMixed
	default:
		return ""
	}
}

// SentimentScores holds per-label probabilities in the range 0.0 - 1.0.
type SentimentScores struct {
	Positive float64 `json:"Positive"`
	Negative float64 `json:"Negative"`
	Neutral  float64 `json:"Neutral"`
	Mixed    float64 `json:"Mixed"`
}

// For returns the score belonging to label s, or 0 for an unknown label.
func (sc SentimentScores) For(s Sentiment) float64 {
	switch s {
	case SentimentPositive:
		return sc.Positive
	case SentimentNegative:
		return sc.Negative
	case SentimentNeutral:
		return sc.Neutral
	case SentimentMixed:
		return sc.Mixed
	default:
		return 0
	}
}

// Company is an organisation mentioned in the analysed text.
type Company struct {
	Name string `json:"name"`
	// Sentiment towards this company. Empty when the analyzer only reports
	// an overall sentiment.
	Sentiment  Sentiment `json:"sentiment,omitempty"`
	Confidence float64   `json:"confidence"`
}

// Verdict is what an analyzer returns for one text.
type Verdict struct {
	Sentiment Sentiment
	Scores    SentimentScores
	Companies []Company
	Model     string
}

// Analysis is the stored and returned result of one analysis request.
// It is always produced, even when the analyzer failed; in that case Error is
// set and the verdict fields are empty.
type Analysis struct {
	RequestID        string           `json:"requestId"`
	Timestamp        time.Time        `json:"timestamp"`
	TextLength       int              `json:"text_length"`
	Method           string           `json:"method"`
	Model            string           `json:"model,omitempty"`
	OverallSentiment Sentiment        `json:"overall_sentiment,omitempty"`
	SentimentScores  *SentimentScores `json:"sentiment_scores,omitempty"`
	Companies        []Company        `json:"companies_detected,omitempty"`
	Error            string           `json:"analysis_error,omitempty"`
}

// Apply copies an analyzer verdict into the analysis.
func (a *Analysis) Apply(v Verdict) {
	scores := v.Scores
	a.OverallSentiment = v.Sentiment
	a.SentimentScores = &scores
	a.Companies = v.Companies
	if v.Model != "" {
		a.Model = v.Model
	}
}

// Failed reports whether the analyzer call failed.
func (a *Analysis) Failed() bool {
	return a.Error != ""
}

// CompanySentiment returns the sentiment recorded for c, falling back to the
// overall sentiment.
func (a *Analysis) CompanySentiment(c Company) Sentiment {
	if c.Sentiment != "" {
		return c.Sentiment
	}
	return a.OverallSentiment
}

// OverallConfidence returns the score of the overall sentiment label.
func (a *Analysis) OverallConfidence() float64 {
	if a.SentimentScores == nil {
		return 0
	}
	return a.SentimentScores.For(a.OverallSentiment)
}
