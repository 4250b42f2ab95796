package analysis

import (
	"errors"
	"net/http"
	"strconv"

	"sentiment-app/internal/domain/entity"
	"sentiment-app/internal/handler/http/respond"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// GetHandler serves GET /api/analyses/{requestId}.
type GetHandler struct{ Reader Reader }

func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("requestId")
	if id == "" {
		respond.Error(w, http.StatusBadRequest, errors.New("requestId is required"))
		return
	}

	a, err := h.Reader.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, errors.New("analysis not found"))
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, a)
}

// ListHandler serves GET /api/analyses?limit=N, newest first.
type ListHandler struct{ Reader Reader }

func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.Error(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, maxListLimit)
	}

	list, err := h.Reader.ListRecent(r.Context(), limit)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []*entity.Analysis{}
	}
	respond.JSON(w, http.StatusOK, ListResponse{Analyses: list, Count: len(list)})
}
