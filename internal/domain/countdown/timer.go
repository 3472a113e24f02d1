package countdown

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/studyroom/internal/domain/model"
	"github.com/okian/studyroom/pkg/clock"
	"github.com/okian/studyroom/pkg/logger"
	"github.com/okian/studyroom/pkg/metrics"
)

// DefaultFrameInterval approximates a 60Hz display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// Timer evaluates the countdown of one session. The start instant is
// resolved on first evaluation and then held, so a session without a
// declared start counts down from that moment.
type Timer struct {
	src    model.SessionTimeSource
	clock  clock.Clock
	frame  time.Duration
	logger logger.Logger

	once  sync.Once
	start time.Time
}

// NewTimer creates a Timer for src.
func NewTimer(src model.SessionTimeSource, opts ...Option) *Timer {
	t := &Timer{
		src:    src,
		clock:  clock.System{},
		frame:  DefaultFrameInterval,
		logger: logger.Get().Named("countdown"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Now evaluates the countdown at the current instant.
func (t *Timer) Now() State {
	now := t.clock.Now()
	t.once.Do(func() { t.start = t.src.ResolveStart(now) })
	return Compute(t.src, t.start, now)
}

// Subscription is a running countdown loop.
type Subscription struct {
	cancel     context.CancelFunc
	done       chan struct{}
	once       sync.Once
	inCallback atomic.Bool
}

// Cancel stops the loop and waits for it to exit. Safe to call repeatedly.
// While fn is running Cancel only signals, so fn may cancel its own
// subscription; wait on Done in that case.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
	if s.inCallback.Load() {
		return
	}
	<-s.done
}

// Done is closed once the loop has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// SubscribeOption tunes a single subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	stopWhenOver bool
}

// StopWhenOver ends the loop after the first over state has been delivered.
func StopWhenOver() SubscribeOption {
	return func(c *subscribeConfig) { c.stopWhenOver = true }
}

// Subscribe calls fn with a fresh State immediately and then once per frame
// until ctx is done or the subscription is cancelled. fn runs on the
// subscription's goroutine and must not block for long.
func (t *Timer) Subscribe(ctx context.Context, fn func(State), opts ...SubscribeOption) *Subscription {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	metrics.CountdownSubscribed()
	go func() {
		defer close(sub.done)
		defer cancel()
		defer metrics.CountdownUnsubscribed()

		ticker := time.NewTicker(t.frame)
		defer ticker.Stop()

		for {
			if ctx.Err() != nil {
				return
			}
			st := t.Now()
			metrics.RecordCountdownTick()
			sub.inCallback.Store(true)
			fn(st)
			sub.inCallback.Store(false)
			if cfg.stopWhenOver && st.IsOver {
				t.logger.Debug(ctx, "countdown over", logger.Int64("end_ms", st.EndMS))
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return sub
}
