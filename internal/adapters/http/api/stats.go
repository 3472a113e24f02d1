package api

import (
	"net/http"
	"runtime"
	"time"
)

// StatsProvider reports service counters such as queue length and worker count.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
	bootedAt time.Time
}

// NewStatsHandler captures the boot time used for uptimeMs.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider, bootedAt: time.Now()}
}

// HandleStats merges the service snapshot with process-level figures.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.provider.GetStats()
	out := make(map[string]interface{}, len(snapshot)+2)
	for k, v := range snapshot {
		out[k] = v
	}
	out["uptimeMs"] = time.Since(h.bootedAt).Milliseconds()
	out["goroutines"] = runtime.NumGoroutine()
	writeJSON(w, http.StatusOK, out)
}
