// Package countdown derives live timer state for a session.
package countdown

import (
	"fmt"
	"time"

	"github.com/okian/studyroom/internal/domain/model"
)

// State is the countdown as seen at one instant.
type State struct {
	Clock       string  `json:"clock"`
	RemainingMS int64   `json:"remainingMs"`
	ElapsedMS   int64   `json:"elapsedMs"`
	TotalMS     int64   `json:"totalMs"`
	Progress    float64 `json:"progress"`
	IsOver      bool    `json:"isOver"`
	StartMS     int64   `json:"startMs"`
	EndMS       int64   `json:"endMs"`
}

// Compute derives the state of src at now, given its resolved start.
func Compute(src model.SessionTimeSource, start, now time.Time) State {
	total := src.TotalMS()
	end := src.EffectiveEnd(start)

	remaining := end.Sub(now).Milliseconds()
	if remaining < 0 {
		remaining = 0
	}

	elapsed := now.Sub(start).Milliseconds()
	switch {
	case elapsed < 0:
		elapsed = 0
	case elapsed > total:
		elapsed = total
	}

	var progress float64
	if total > 0 {
		progress = min(1, float64(elapsed)/float64(total))
	}

	return State{
		Clock:       FormatClock(remaining),
		RemainingMS: remaining,
		ElapsedMS:   elapsed,
		TotalMS:     total,
		Progress:    progress,
		IsOver:      remaining <= 0,
		StartMS:     start.UnixMilli(),
		EndMS:       end.UnixMilli(),
	}
}

// FormatClock renders remaining milliseconds as MM:SS. Minutes are not
// wrapped into hours, so long sessions show 100:00 and above.
func FormatClock(remainingMS int64) string {
	if remainingMS < 0 {
		remainingMS = 0
	}
	minutes := remainingMS / model.MillisPerMinute
	seconds := (remainingMS % model.MillisPerMinute) / 1000
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
