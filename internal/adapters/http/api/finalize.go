package api

import (
	"context"
	"net/http"
)

// FinalizeDependencies defines the interface for scheduling finalization.
type FinalizeDependencies interface {
	// RequestFinalize reports duplicate=true when the session is already queued.
	RequestFinalize(ctx context.Context, id string) (duplicate bool, err error)
}

// FinalizeHandler handles finalize requests.
type FinalizeHandler struct {
	deps FinalizeDependencies
}

// NewFinalizeHandler creates a new finalize handler.
func NewFinalizeHandler(deps FinalizeDependencies) *FinalizeHandler {
	return &FinalizeHandler{deps: deps}
}

// HandleFinalize handles POST /sessions/{id}/finalize.
func (h *FinalizeHandler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	const op = "api.finalize"
	duplicate, err := h.deps.RequestFinalize(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
