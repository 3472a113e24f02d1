package api

import (
	"context"
	"net/http"

	"github.com/okian/studyroom/internal/domain/model"
)

// ResultsDependencies defines the per-user result cache operations.
type ResultsDependencies interface {
	Results(ctx context.Context, uid string) ([]model.ResultItem, error)
	SaveResult(ctx context.Context, uid string, item model.ResultItem) error
	ClearResults(ctx context.Context, uid string) error
}

// ResultsHandler handles result cache requests.
type ResultsHandler struct {
	deps ResultsDependencies
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps ResultsDependencies) *ResultsHandler {
	return &ResultsHandler{deps: deps}
}

// HandleList handles GET /users/{uid}/results.
func (h *ResultsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_results"
	items, err := h.deps.Results(r.Context(), r.PathValue("uid"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleUpsert handles POST /users/{uid}/results and returns the updated list.
func (h *ResultsHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	const op = "api.upsert_result"
	var item model.ResultItem
	if err := decodeJSON(r, &item); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	uid := r.PathValue("uid")
	if err := h.deps.SaveResult(r.Context(), uid, item); err != nil {
		writeServiceError(w, op, err)
		return
	}
	items, err := h.deps.Results(r.Context(), uid)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleClear handles DELETE /users/{uid}/results.
func (h *ResultsHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	const op = "api.clear_results"
	if err := h.deps.ClearResults(r.Context(), r.PathValue("uid")); err != nil {
		writeServiceError(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
