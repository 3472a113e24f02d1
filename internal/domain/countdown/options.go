package countdown

import (
	"time"

	"github.com/okian/studyroom/pkg/clock"
	"github.com/okian/studyroom/pkg/logger"
)

// Option applies a configuration option to the Timer.
type Option func(*Timer)

// WithClock sets the instant source.
func WithClock(c clock.Clock) Option {
	return func(t *Timer) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithFrameInterval sets how often subscriptions re-evaluate.
func WithFrameInterval(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.frame = d
		}
	}
}

// WithLogger sets a custom logger for the timer.
func WithLogger(l logger.Logger) Option {
	return func(t *Timer) {
		if l != nil {
			t.logger = l
		}
	}
}
