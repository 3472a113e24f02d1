// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionDependencies
	RankingDependencies
	CountdownDependencies
	ScoreDependencies
	ResultsDependencies
	FinalizeDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	sessionsHandler  *SessionsHandler
	rankingHandler   *RankingHandler
	countdownHandler *CountdownHandler
	scoreHandler     *ScoreHandler
	resultsHandler   *ResultsHandler
	finalizeHandler  *FinalizeHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(deps),
		sessionsHandler:  NewSessionsHandler(deps),
		rankingHandler:   NewRankingHandler(deps),
		countdownHandler: NewCountdownHandler(deps),
		scoreHandler:     NewScoreHandler(deps),
		resultsHandler:   NewResultsHandler(deps),
		finalizeHandler:  NewFinalizeHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /sessions", MetricsMiddleware(s.sessionsHandler.HandleCreate, "sessions_create"))
	mux.HandleFunc("GET /sessions/{id}", MetricsMiddleware(s.sessionsHandler.HandleGet, "sessions_get"))
	mux.HandleFunc("POST /sessions/{id}/start", MetricsMiddleware(s.sessionsHandler.HandleStart, "sessions_start"))
	mux.HandleFunc("POST /sessions/{id}/join", MetricsMiddleware(s.sessionsHandler.HandleJoin, "sessions_join"))
	mux.HandleFunc("POST /sessions/{id}/leave", MetricsMiddleware(s.sessionsHandler.HandleLeave, "sessions_leave"))
	mux.HandleFunc("POST /sessions/{id}/force-end", MetricsMiddleware(s.sessionsHandler.HandleForceEnd, "sessions_force_end"))
	mux.HandleFunc("POST /sessions/{id}/finalize", MetricsMiddleware(s.finalizeHandler.HandleFinalize, "sessions_finalize"))

	mux.HandleFunc("GET /sessions/{id}/ranking", MetricsMiddleware(s.rankingHandler.HandleRanking, "ranking"))
	mux.HandleFunc("GET /sessions/{id}/countdown", MetricsMiddleware(s.countdownHandler.HandleCountdown, "countdown"))
	// Long-lived stream; request metrics would only record its end.
	mux.HandleFunc("GET /sessions/{id}/countdown/stream", s.countdownHandler.HandleStream)

	mux.HandleFunc("POST /score", MetricsMiddleware(s.scoreHandler.HandleScore, "score"))

	mux.HandleFunc("GET /users/{uid}/results", MetricsMiddleware(s.resultsHandler.HandleList, "results_list"))
	mux.HandleFunc("POST /users/{uid}/results", MetricsMiddleware(s.resultsHandler.HandleUpsert, "results_upsert"))
	mux.HandleFunc("DELETE /users/{uid}/results", MetricsMiddleware(s.resultsHandler.HandleClear, "results_clear"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// queryMillis parses an optional epoch-millisecond query parameter.
func queryMillis(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return &v, nil
}
