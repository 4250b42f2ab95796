package analysis

import "sentiment-app/internal/domain/entity"

// Note is returned with every successful analysis.
const Note = "The analyzer is used when available; errors are captured in 'analysis_error' and results are still stored."

// AnalyzeRequest is the POST /api/analyze body.
type AnalyzeRequest struct {
	Text      string `json:"text"`
	RequestID string `json:"requestId,omitempty"`
}

// AnalyzeResponse is returned by POST /api/analyze.
type AnalyzeResponse struct {
	Analysis *entity.Analysis `json:"analysis"`
	Location string           `json:"location"`
	Note     string           `json:"note"`
}

// ListResponse is returned by GET /api/analyses.
type ListResponse struct {
	Analyses []*entity.Analysis `json:"analyses"`
	Count    int                `json:"count"`
}
