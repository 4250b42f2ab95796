package analysis

import (
	"encoding/json"
	"errors"
	"net/http"

	"sentiment-app/internal/domain/entity"
	"sentiment-app/internal/handler/http/respond"
	analysisUC "sentiment-app/internal/usecase/analysis"
)

// AnalyzeHandler serves POST /api/analyze.
type AnalyzeHandler struct{ Svc Service }

// ServeHTTP decodes the text, runs the analysis and returns the stored
// result with its storage location.
//
// 400 on malformed JSON or missing text, 500 when the result could not be
// stored. An analyzer failure still answers 200 with analysis_error set.
func (h AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	out, err := h.Svc.Analyze(r.Context(), analysisUC.Request{
		Text:      req.Text,
		RequestID: req.RequestID,
	})
	if err != nil {
		var ve *entity.ValidationError
		if errors.As(err, &ve) {
			respond.Error(w, http.StatusBadRequest, errors.New(ve.Message))
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusOK, AnalyzeResponse{
		Analysis: out.Analysis,
		Location: out.Location,
		Note:     Note,
	})
}
