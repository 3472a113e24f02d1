// Package presence measures how long participants were present in a session.
package presence

import (
	"time"

	"github.com/okian/studyroom/internal/domain/model"
)

// Clamp returns the part of [start, end] that falls inside w.
// Unbounded window sides default to the interval's own bounds. Never negative.
func Clamp(start, end time.Time, w model.Window) time.Duration {
	effStart := start
	if w.HasStart() && w.Start.After(effStart) {
		effStart = w.Start
	}
	effEnd := end
	if w.HasEnd() && w.End.Before(effEnd) {
		effEnd = w.End
	}
	if d := effEnd.Sub(effStart); d > 0 {
		return d
	}
	return 0
}
