package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/studyroom/internal/domain/countdown"
	"github.com/okian/studyroom/pkg/logger"
)

// CountdownDependencies defines the interface for countdown reads.
type CountdownDependencies interface {
	Countdown(ctx context.Context, id string) (countdown.State, error)
	SubscribeCountdown(ctx context.Context, id string, fn func(countdown.State)) (*countdown.Subscription, error)
}

// CountdownHandler handles one-shot and streaming countdown requests.
type CountdownHandler struct {
	deps   CountdownDependencies
	logger logger.Logger
}

// NewCountdownHandler creates a new countdown handler.
func NewCountdownHandler(deps CountdownDependencies) *CountdownHandler {
	return &CountdownHandler{deps: deps, logger: logger.Get().Named("countdown-stream")}
}

// HandleCountdown handles GET /sessions/{id}/countdown.
func (h *CountdownHandler) HandleCountdown(w http.ResponseWriter, r *http.Request) {
	const op = "api.countdown"
	st, err := h.deps.Countdown(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleStream handles GET /sessions/{id}/countdown/stream as server-sent
// events. A frame is written only when the displayed clock or the over flag
// changes; the stream ends after the over state or when the client leaves.
func (h *CountdownHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	const op = "api.countdown_stream"
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", NewKind(op, ErrStreamingUnsupported))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	states := make(chan countdown.State)
	sub, err := h.deps.SubscribeCountdown(ctx, r.PathValue("id"), func(st countdown.State) {
		select {
		case states <- st:
		case <-ctx.Done():
		}
	})
	if err != nil {
		cancel()
		writeServiceError(w, op, err)
		return
	}
	defer func() {
		cancel()
		sub.Cancel()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var (
		last    countdown.State
		written bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case st := <-states:
			if written && st.Clock == last.Clock && st.IsOver == last.IsOver {
				continue
			}
			if err := writeEvent(w, st); err != nil {
				h.logger.Debug(ctx, "countdown stream closed", logger.Error(err))
				return
			}
			flusher.Flush()
			last, written = st, true
		}
	}
}

func writeEvent(w http.ResponseWriter, st countdown.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: countdown\ndata: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}
