// Package metrics provides Prometheus metrics for the studyroom service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBucketsMs covers store reads and ranking fan-outs, in milliseconds.
var latencyBucketsMs = []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500} //nolint:gochecknoglobals // immutable bucket layout

// Manager manages all Prometheus metrics for the studyroom service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Presence
	rankingsBuilt           prometheus.Counter
	rankingLatency          prometheus.Histogram
	participantsRanked      prometheus.Counter
	participantReadFailures prometheus.Counter

	// Scoring
	scoresComputed prometheus.Counter
	xpAwarded      prometheus.Counter

	// Countdown
	countdownSubscriptions prometheus.Gauge
	countdownTicks         prometheus.Counter

	// Result cache
	resultCacheWrites    prometheus.Counter
	resultCacheEvictions prometheus.Counter
	resultCacheCorrupt   prometheus.Counter

	// Finalize pipeline
	finalizeProcessed prometheus.Counter
	finalizeFailed    prometheus.Counter
	finalizeDuplicate prometheus.Counter
	finalizeLatency   prometheus.Histogram

	// Queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge

	// Repository
	repositoryQueryLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegisterer(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "studyroom",
		subsystem:        "engine",
		histogramBuckets: latencyBucketsMs,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.rankingsBuilt = auto.NewCounter(m.counterOpts("rankings_built_total",
		"Total number of presence rankings produced"))
	m.rankingLatency = auto.NewHistogram(m.histogramOpts("ranking_latency_milliseconds",
		"Time to read stays and aggregate a ranking, in milliseconds", m.histogramBuckets))
	m.participantsRanked = auto.NewCounter(m.counterOpts("participants_ranked_total",
		"Total number of participant rows produced by rankings"))
	m.participantReadFailures = auto.NewCounter(m.counterOpts("participant_read_failures_total",
		"Stay reads that failed and were ranked as zero presence"))

	m.scoresComputed = auto.NewCounter(m.counterOpts("scores_computed_total",
		"Total number of XP computations"))
	m.xpAwarded = auto.NewCounter(m.counterOpts("xp_awarded_total",
		"Sum of XP produced by the score calculator"))

	m.countdownSubscriptions = auto.NewGauge(m.gaugeOpts("countdown_subscriptions",
		"Countdown subscriptions currently ticking"))
	m.countdownTicks = auto.NewCounter(m.counterOpts("countdown_ticks_total",
		"Countdown frames evaluated"))

	m.resultCacheWrites = auto.NewCounter(m.counterOpts("result_cache_writes_total",
		"Full snapshot writes of the result cache"))
	m.resultCacheEvictions = auto.NewCounter(m.counterOpts("result_cache_evictions_total",
		"Result items dropped by the bound"))
	m.resultCacheCorrupt = auto.NewCounter(m.counterOpts("result_cache_corrupt_total",
		"Corrupt result cache payloads discarded"))

	m.finalizeProcessed = auto.NewCounter(m.counterOpts("finalize_processed_total",
		"Sessions finalized"))
	m.finalizeFailed = auto.NewCounter(m.counterOpts("finalize_failed_total",
		"Session finalizations that failed"))
	m.finalizeDuplicate = auto.NewCounter(m.counterOpts("finalize_duplicate_total",
		"Duplicate finalize requests ignored"))
	m.finalizeLatency = auto.NewHistogram(m.histogramOpts("finalize_latency_milliseconds",
		"End-to-end finalize job latency in milliseconds", m.histogramBuckets))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size",
		"Current size of the finalize queue (backlog indicator)"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity",
		"Maximum capacity of the finalize queue"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization",
		"Finalize queue utilization ratio (0-1)"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total",
		"Jobs enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total",
		"Jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total",
		"Jobs rejected by the queue"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count",
		"Finalize workers running"))

	m.repositoryQueryLatency = auto.NewHistogramVec(m.histogramOpts("repository_query_latency_milliseconds",
		"Document store query latency in milliseconds", m.histogramBuckets), []string{"op"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Errors by component and type"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total",
		"Errors by type and severity"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Errors by endpoint, method and type"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds",
		"Latency of operations that ended in an error", m.histogramBuckets), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes",
		"System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count",
		"Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordRanking records a produced ranking of n participants.
func RecordRanking(participants int, latencyMs float64) {
	globalManager.rankingsBuilt.Inc()
	globalManager.participantsRanked.Add(float64(participants))
	globalManager.rankingLatency.Observe(latencyMs)
}

// RecordParticipantReadFailure counts a stay read that failed open.
func RecordParticipantReadFailure() {
	globalManager.participantReadFailures.Inc()
}

// RecordScore counts one XP computation and the XP it produced.
func RecordScore(xp int) {
	globalManager.scoresComputed.Inc()
	if xp > 0 {
		globalManager.xpAwarded.Add(float64(xp))
	}
}

// CountdownSubscribed tracks a countdown subscription starting.
func CountdownSubscribed() {
	globalManager.countdownSubscriptions.Inc()
}

// CountdownUnsubscribed tracks a countdown subscription ending.
func CountdownUnsubscribed() {
	globalManager.countdownSubscriptions.Dec()
}

// RecordCountdownTick counts an evaluated countdown frame.
func RecordCountdownTick() {
	globalManager.countdownTicks.Inc()
}

// RecordResultCacheWrite counts a snapshot write and the items evicted by it.
func RecordResultCacheWrite(evicted int) {
	globalManager.resultCacheWrites.Inc()
	if evicted > 0 {
		globalManager.resultCacheEvictions.Add(float64(evicted))
	}
}

// RecordResultCacheCorrupt counts a discarded corrupt payload.
func RecordResultCacheCorrupt() {
	globalManager.resultCacheCorrupt.Inc()
}

// RecordFinalizeProcessed records a finalized session.
func RecordFinalizeProcessed(latencyMs float64) {
	globalManager.finalizeProcessed.Inc()
	globalManager.finalizeLatency.Observe(latencyMs)
}

// RecordFinalizeFailed counts a failed finalization.
func RecordFinalizeFailed() {
	globalManager.finalizeFailed.Inc()
}

// RecordFinalizeDuplicate counts an ignored duplicate finalize request.
func RecordFinalizeDuplicate() {
	globalManager.finalizeDuplicate.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue counts an enqueued job.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue counts a dequeued job.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError counts a rejected job.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordRepositoryQueryLatency records a document store query latency for op.
func RecordRepositoryQueryLatency(op string, latencyMs float64) {
	globalManager.repositoryQueryLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
