package api

import (
	"errors"
	"net/http"

	"github.com/okian/studyroom/internal/domain/model"
)

// ScoreDependencies defines the interface for XP computation.
type ScoreDependencies interface {
	Score(in model.XPInput) int
}

// ScoreHandler handles score requests.
type ScoreHandler struct {
	deps ScoreDependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

type scoreResponse struct {
	XP int `json:"xp"`
}

// HandleScore handles POST /score.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"
	var in model.XPInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if in.FocusMS < 0 || in.PlannedMS < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("durations must not be negative")))
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{XP: h.deps.Score(in)})
}
