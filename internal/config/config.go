// Package config defines service configuration and its defaults.
package config

import (
	"runtime"
)

// Supported result cache backends.
const (
	KVBackendSQLite = "sqlite"
	KVBackendRedis  = "redis"
	KVBackendMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite file holding sessions, stays and the kv table.
	DBPath string `koanf:"db_path"`

	// KVBackend selects where result caches live: sqlite, redis or memory.
	KVBackend string `koanf:"kv_backend"`

	// RedisURL is used when KVBackend is redis, e.g. redis://localhost:6379/0.
	RedisURL string `koanf:"redis_url"`

	// ResultCacheKey prefixes per-user result cache keys.
	ResultCacheKey string `koanf:"result_cache_key"`

	// ResultCacheLimit bounds each user's result cache.
	ResultCacheLimit int `koanf:"result_cache_limit"`

	// StudyTags earn the study bonus when scoring.
	StudyTags []string `koanf:"study_tags"`

	// AggregateConcurrency bounds concurrent stay reads per ranking.
	AggregateConcurrency int `koanf:"aggregate_concurrency"`

	// CountdownFrameMS is the countdown stream tick in milliseconds.
	CountdownFrameMS int `koanf:"countdown_frame_ms"`

	// QueueSize bounds pending finalize jobs.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of finalize workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the finalize idempotency tracker.
	DedupeSize int `koanf:"dedupe_size"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		DBPath:               "studyroom.db",
		KVBackend:            KVBackendSQLite,
		ResultCacheKey:       "session_results",
		ResultCacheLimit:     100,
		StudyTags:            []string{"study"},
		AggregateConcurrency: 8,
		CountdownFrameMS:     16,
		QueueSize:            1024,
		WorkerCount:          runtime.NumCPU(),
		DedupeSize:           50_000,
	}
}
