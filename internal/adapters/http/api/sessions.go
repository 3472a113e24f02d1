package api

import (
	"context"
	"net/http"

	"github.com/okian/studyroom/internal/domain/model"
)

// SessionDependencies defines the session lifecycle operations.
type SessionDependencies interface {
	CreateSession(ctx context.Context, doc model.Session) (model.Session, error)
	GetSession(ctx context.Context, id string) (model.Session, error)
	StartSession(ctx context.Context, id string) (model.Session, error)
	Join(ctx context.Context, id string, p model.Participant) error
	Leave(ctx context.Context, id, uid string) error
	ForceEnd(ctx context.Context, id string) (model.Session, error)
}

// SessionsHandler handles session document and presence requests.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// presenceRequest is the body of join and leave.
type presenceRequest struct {
	UID         string  `json:"uid"`
	DisplayName *string `json:"display_name"`
}

// HandleCreate handles POST /sessions.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	var doc model.Session
	if err := decodeJSON(r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	created, err := h.deps.CreateSession(r.Context(), doc)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleGet handles GET /sessions/{id}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"
	doc, err := h.deps.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// HandleStart handles POST /sessions/{id}/start.
func (h *SessionsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_session"
	doc, err := h.deps.StartSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// HandleJoin handles POST /sessions/{id}/join.
func (h *SessionsHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	const op = "api.join"
	var req presenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	p := model.Participant{UID: req.UID, DisplayName: req.DisplayName}
	if err := h.deps.Join(r.Context(), r.PathValue("id"), p); err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "joined"})
}

// HandleLeave handles POST /sessions/{id}/leave.
func (h *SessionsHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	const op = "api.leave"
	var req presenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.Leave(r.Context(), r.PathValue("id"), req.UID); err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "left"})
}

// HandleForceEnd handles POST /sessions/{id}/force-end.
func (h *SessionsHandler) HandleForceEnd(w http.ResponseWriter, r *http.Request) {
	const op = "api.force_end"
	doc, err := h.deps.ForceEnd(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
