// Package service ties the presence, countdown, scoring and result engines to
// the session store and runs the finalize pipeline behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/studyroom/internal/adapters/mq/queue"
	"github.com/okian/studyroom/internal/adapters/mq/worker"
	"github.com/okian/studyroom/internal/adapters/repository"
	"github.com/okian/studyroom/internal/domain/countdown"
	"github.com/okian/studyroom/internal/domain/dedupe"
	"github.com/okian/studyroom/internal/domain/model"
	"github.com/okian/studyroom/internal/domain/presence"
	"github.com/okian/studyroom/internal/domain/results"
	"github.com/okian/studyroom/internal/domain/scoring"
	"github.com/okian/studyroom/pkg/clock"
	"github.com/okian/studyroom/pkg/logger"
	"github.com/okian/studyroom/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize  = 1024
	defaultDedupeSize = 50_000
	coinsPerXP        = 10
)

// Service implements the API dependencies for study sessions.
type Service struct {
	mu sync.RWMutex

	store      repository.SessionStore
	kv         results.KV
	aggregator *presence.Aggregator
	calculator *scoring.Calculator
	registry   *results.Registry
	deduper    dedupe.Deduper
	jobs       *queue.InMemoryQueue
	pool       *worker.Pool

	workerCount          int
	queueSize            int
	dedupeSize           int
	studyTags            []string
	aggregateConcurrency int
	frameInterval        time.Duration
	resultPrefix         string
	resultLimit          int

	started bool
	clock   clock.Clock
	logger  logger.Logger
}

// New constructs a Service over a session store and a key-value store for
// result caches. Call Start before requesting finalization.
func New(store repository.SessionStore, kv results.KV, opts ...Option) *Service {
	s := &Service{
		store:         store,
		kv:            kv,
		workerCount:   runtime.NumCPU(),
		queueSize:     defaultQueueSize,
		dedupeSize:    defaultDedupeSize,
		studyTags:     scoring.DefaultStudyTags,
		frameInterval: countdown.DefaultFrameInterval,
		resultPrefix:  results.DefaultKey,
		resultLimit:   results.DefaultLimit,
		clock:         clock.System{},
		logger:        logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	aggOpts := []presence.Option{presence.WithClock(s.clock), presence.WithLogger(s.logger.Named("presence"))}
	if s.aggregateConcurrency > 0 {
		aggOpts = append(aggOpts, presence.WithConcurrency(s.aggregateConcurrency))
	}
	s.aggregator = presence.NewAggregator(store, aggOpts...)
	s.calculator = scoring.NewCalculator(scoring.WithStudyTags(s.studyTags))
	s.registry = results.NewRegistry(kv, s.resultPrefix,
		results.WithLimit(s.resultLimit),
		results.WithLogger(s.logger.Named("results")),
	)
	return s
}

// Start builds the finalize pipeline and launches its workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.jobs, s, worker.WithLogger(s.logger.Named("worker")))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "study session service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains queued finalize jobs and stops the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	s.logger.Info(ctx, "stopping study session service")
	if err := s.pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop workers: %w", err)
	}
	return nil
}

// CreateSession validates and stores a new session. A missing id is
// generated and a missing creation time defaults to now.
func (s *Service) CreateSession(ctx context.Context, doc model.Session) (model.Session, error) {
	doc.ID = strings.TrimSpace(doc.ID)
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if strings.TrimSpace(doc.Title) == "" {
		return model.Session{}, fmt.Errorf("%w: missing title", ErrInvalidSession)
	}
	if doc.Minutes != nil && *doc.Minutes < 0 {
		return model.Session{}, fmt.Errorf("%w: negative minutes", ErrInvalidSession)
	}
	if doc.Minutes != nil && *doc.Minutes > model.MaxMinutes {
		return model.Session{}, fmt.Errorf("%w: minutes above %d", ErrInvalidSession, model.MaxMinutes)
	}
	for _, p := range doc.Participants {
		if strings.TrimSpace(p.UID) == "" {
			return model.Session{}, fmt.Errorf("%w: participant without uid", ErrInvalidSession)
		}
	}
	if doc.CreatedAt == nil {
		now := s.clock.Now()
		doc.CreatedAt = &now
	}
	if doc.Participants == nil {
		doc.Participants = []model.Participant{}
	}
	doc.FinalizedAt = nil

	if err := s.store.CreateSession(ctx, doc); err != nil {
		return model.Session{}, err
	}
	s.logger.Info(ctx, "session created",
		logger.String("session", doc.ID),
		logger.String("tag", doc.Tag),
	)
	return doc, nil
}

// GetSession returns the session document.
func (s *Service) GetSession(ctx context.Context, id string) (model.Session, error) {
	return s.store.GetSession(ctx, id)
}

// StartSession stamps the session start at now unless already started.
func (s *Service) StartSession(ctx context.Context, id string) (model.Session, error) {
	if err := s.store.Start(ctx, id, s.clock.Now()); err != nil {
		return model.Session{}, err
	}
	return s.store.GetSession(ctx, id)
}

// Join opens a stay for p at now.
func (s *Service) Join(ctx context.Context, id string, p model.Participant) error {
	if strings.TrimSpace(p.UID) == "" {
		return ErrInvalidUID
	}
	return s.store.Join(ctx, id, p, s.clock.Now())
}

// Leave closes the open stay of uid at now.
func (s *Service) Leave(ctx context.Context, id, uid string) error {
	if strings.TrimSpace(uid) == "" {
		return ErrInvalidUID
	}
	return s.store.Leave(ctx, id, uid, s.clock.Now())
}

// ForceEnd ends the session at now.
func (s *Service) ForceEnd(ctx context.Context, id string) (model.Session, error) {
	if err := s.store.ForceEnd(ctx, id, s.clock.Now()); err != nil {
		return model.Session{}, err
	}
	return s.store.GetSession(ctx, id)
}

// Ranking aggregates presence for the session. A zero window measures
// against the session itself: from its resolved start up to its effective
// end, or up to now while the session is still running.
func (s *Service) Ranking(ctx context.Context, id string, w model.Window) ([]model.RankItem, error) {
	if !w.HasStart() && !w.HasEnd() {
		doc, err := s.store.GetSession(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return []model.RankItem{}, nil
		}
		if err != nil {
			return nil, err
		}
		w = s.liveWindow(doc)
	}
	return s.aggregator.Aggregate(ctx, id, w)
}

func (s *Service) liveWindow(doc model.Session) model.Window {
	now := s.clock.Now()
	w := doc.Window(now)
	if w.End.After(now) {
		w.End = time.Time{}
	}
	return w
}

// Countdown evaluates the session's countdown at now.
func (s *Service) Countdown(ctx context.Context, id string) (countdown.State, error) {
	doc, err := s.store.GetSession(ctx, id)
	if err != nil {
		return countdown.State{}, err
	}
	return countdown.NewTimer(doc.TimeSource(), countdown.WithClock(s.clock)).Now(), nil
}

// SubscribeCountdown streams countdown states of the session to fn until ctx
// is done or the returned subscription is cancelled.
func (s *Service) SubscribeCountdown(ctx context.Context, id string, fn func(countdown.State)) (*countdown.Subscription, error) {
	doc, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	timer := countdown.NewTimer(doc.TimeSource(),
		countdown.WithClock(s.clock),
		countdown.WithFrameInterval(s.frameInterval),
		countdown.WithLogger(s.logger.Named("countdown")),
	)
	return timer.Subscribe(ctx, fn, countdown.StopWhenOver()), nil
}

// Score computes the XP award for in.
func (s *Service) Score(in model.XPInput) int {
	return s.calculator.Score(in)
}

// Results returns the cached results of uid, newest first.
func (s *Service) Results(ctx context.Context, uid string) ([]model.ResultItem, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, ErrInvalidUID
	}
	return s.registry.For(uid).Load(ctx), nil
}

// SaveResult upserts item into the result cache of uid.
func (s *Service) SaveResult(ctx context.Context, uid string, item model.ResultItem) error {
	if strings.TrimSpace(uid) == "" {
		return ErrInvalidUID
	}
	if strings.TrimSpace(item.RoomID) == "" {
		return fmt.Errorf("%w: missing roomId", ErrInvalidResult)
	}
	return s.registry.For(uid).Upsert(ctx, item)
}

// ClearResults empties the result cache of uid.
func (s *Service) ClearResults(ctx context.Context, uid string) error {
	if strings.TrimSpace(uid) == "" {
		return ErrInvalidUID
	}
	return s.registry.For(uid).Clear(ctx)
}

// RequestFinalize schedules the session for finalization. Repeated requests
// for the same session report duplicate=true without queueing again.
func (s *Service) RequestFinalize(ctx context.Context, id string) (duplicate bool, err error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return false, ErrNotStarted
	}

	doc, err := s.store.GetSession(ctx, id)
	if err != nil {
		return false, err
	}
	if doc.FinalizedAt != nil {
		return false, ErrAlreadyFinalized
	}
	if !s.isOver(doc) {
		return false, ErrSessionNotOver
	}

	if s.deduper.SeenAndRecord(ctx, id) {
		metrics.RecordFinalizeDuplicate()
		return true, nil
	}
	if !s.jobs.Enqueue(ctx, queue.Job{SessionID: id, RequestedAt: s.clock.Now()}) {
		s.deduper.Unrecord(ctx, id)
		return false, fmt.Errorf("%w: %w", ErrBackpressure, queue.ErrFull)
	}
	return false, nil
}

func (s *Service) isOver(doc model.Session) bool {
	src := doc.TimeSource()
	now := s.clock.Now()
	return countdown.Compute(src, src.ResolveStart(now), now).IsOver
}

// Finalize ranks the session's participants, awards XP and coins, stores a
// result item for each participant and marks the session finalized.
// A failed attempt can be requested again.
func (s *Service) Finalize(ctx context.Context, id string) (err error) {
	ctx = logger.WithSession(ctx, id)
	defer func() {
		if err != nil && s.deduper != nil {
			s.deduper.Unrecord(ctx, id)
		}
	}()

	doc, err := s.store.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	now := s.clock.Now()
	window := doc.Window(now)

	ranking, err := s.aggregator.Aggregate(ctx, id, window)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	planned := doc.PlannedMS()
	var errs []error
	for i, item := range ranking {
		xp := s.calculator.Score(model.XPInput{FocusMS: item.TotalMS, PlannedMS: planned, Tag: doc.Tag})
		result := model.ResultItem{
			RoomID:      doc.ID,
			Title:       doc.Title,
			FinalizedAt: now.UnixMilli(),
			DurationMin: int(planned / model.MillisPerMinute),
			Rank:        model.IntPtr(i + 1),
			XP:          model.IntPtr(xp),
			Coins:       model.IntPtr(xp / coinsPerXP),
		}
		if err := s.registry.For(item.UID).Upsert(ctx, result); err != nil {
			errs = append(errs, fmt.Errorf("store result for %s: %w", item.UID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if err := s.store.MarkFinalized(ctx, id, now); err != nil {
		return fmt.Errorf("mark finalized: %w", err)
	}
	s.logger.Info(ctx, "session results stored",
		logger.Int("participants", len(ranking)),
	)
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"studyTags":   s.studyTags,
	}
	if s.started {
		queueLen := s.jobs.Len()
		stats["queueLength"] = queueLen
		stats["finalizeRequests"] = s.deduper.Size()
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}
