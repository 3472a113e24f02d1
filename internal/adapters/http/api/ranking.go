package api

import (
	"context"
	"net/http"

	"github.com/okian/studyroom/internal/domain/model"
)

// RankingDependencies defines the interface for presence rankings.
type RankingDependencies interface {
	Ranking(ctx context.Context, id string, w model.Window) ([]model.RankItem, error)
}

// RankingHandler handles ranking requests.
type RankingHandler struct {
	deps RankingDependencies
}

// NewRankingHandler creates a new ranking handler.
func NewRankingHandler(deps RankingDependencies) *RankingHandler {
	return &RankingHandler{deps: deps}
}

// HandleRanking handles GET /sessions/{id}/ranking?start_ms=&end_ms=.
// Without bounds the session's own window is used.
func (h *RankingHandler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.ranking"
	startMs, err := queryMillis(r, "start_ms")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	endMs, err := queryMillis(r, "end_ms")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	items, err := h.deps.Ranking(r.Context(), r.PathValue("id"), model.WindowFromMillis(startMs, endMs))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
