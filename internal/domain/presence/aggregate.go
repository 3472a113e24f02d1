package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/studyroom/internal/domain/model"
	"github.com/okian/studyroom/pkg/clock"
	"github.com/okian/studyroom/pkg/logger"
	"github.com/okian/studyroom/pkg/metrics"
)

const defaultConcurrency = 8

// SessionReader is the slice of the document store the aggregator needs.
type SessionReader interface {
	// GetSession returns ErrSessionNotFound (possibly wrapped) for unknown ids.
	GetSession(ctx context.Context, sessionID string) (model.Session, error)
	ListStays(ctx context.Context, sessionID, uid string) ([]model.StayInterval, error)
}

// Aggregator turns raw stays into a presence ranking.
type Aggregator struct {
	reader      SessionReader
	clock       clock.Clock
	concurrency int
	logger      logger.Logger
}

// NewAggregator creates an aggregator reading from r.
func NewAggregator(r SessionReader, opts ...Option) *Aggregator {
	a := &Aggregator{
		reader:      r,
		clock:       clock.System{},
		concurrency: defaultConcurrency,
		logger:      logger.Get().Named("presence"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Total sums the clamped length of every stay. Open stays close at w.End when
// the window has one, otherwise at now.
func Total(stays []model.StayInterval, w model.Window, now time.Time) time.Duration {
	var total time.Duration
	for _, s := range stays {
		end := now
		switch {
		case s.EndAt != nil:
			end = *s.EndAt
		case w.HasEnd():
			end = w.End
		}
		total += Clamp(s.StartAt, end, w)
	}
	return total
}

// Aggregate ranks the participants of sessionID by presence inside w,
// descending; ties keep participant order. An unknown session ranks empty.
// A participant whose stays cannot be read ranks with zero presence.
func (a *Aggregator) Aggregate(ctx context.Context, sessionID string, w model.Window) ([]model.RankItem, error) {
	started := time.Now()
	now := a.clock.Now()
	ctx = logger.WithSession(ctx, sessionID)

	session, err := a.reader.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return []model.RankItem{}, nil
		}
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}

	items := make([]model.RankItem, len(session.Participants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, p := range session.Participants {
		items[i] = model.RankItem{UID: p.UID, DisplayName: p.DisplayName}
		g.Go(func() error {
			stays, err := a.reader.ListStays(gctx, sessionID, p.UID)
			if err != nil {
				metrics.RecordParticipantReadFailure()
				metrics.RecordErrorByComponent("presence", "stay_read_failed")
				a.logger.Warn(gctx, "stay read failed; ranking participant with zero presence",
					logger.String("uid", p.UID),
					logger.Error(err),
				)
				return nil
			}
			items[i].TotalMS = Total(stays, w, now).Milliseconds()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].TotalMS > items[j].TotalMS })

	metrics.RecordRanking(len(items), float64(time.Since(started).Microseconds())/1000)
	a.logger.Debug(ctx, "ranking built",
		logger.Int("participants", len(items)),
	)
	return items, nil
}
