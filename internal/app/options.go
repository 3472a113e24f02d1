package service

import (
	"time"

	"github.com/okian/studyroom/pkg/clock"
	"github.com/okian/studyroom/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of finalize workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending finalize jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the finalize idempotency tracker.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithStudyTags sets the tags that earn the study bonus.
func WithStudyTags(tags []string) Option {
	return func(s *Service) {
		if len(tags) > 0 {
			s.studyTags = tags
		}
	}
}

// WithAggregateConcurrency bounds concurrent stay reads per ranking.
func WithAggregateConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.aggregateConcurrency = n
		}
	}
}

// WithFrameInterval sets the countdown subscription tick.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.frameInterval = d
		}
	}
}

// WithResultCache sets the key prefix and bound of per-user result caches.
func WithResultCache(prefix string, limit int) Option {
	return func(s *Service) {
		if prefix != "" {
			s.resultPrefix = prefix
		}
		if limit > 0 {
			s.resultLimit = limit
		}
	}
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
