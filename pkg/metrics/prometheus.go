// Package metrics provides Prometheus metrics for the 11Votes consensus service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Aggregation
	snapshotsProcessed  *prometheus.CounterVec
	snapshotsDuplicate  prometheus.Counter
	snapshotsRejected   *prometheus.CounterVec
	aggregationLatency  *prometheus.HistogramVec
	aggregationErrors   *prometheus.CounterVec
	viewUpdates         *prometheus.CounterVec
	valuesRepaired      *prometheus.CounterVec
	substitutionSkipped prometheus.Counter
	matchesTotal        prometheus.Gauge

	// Live push
	wsClients   prometheus.Gauge
	wsBroadcast prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Repository
	repositoryLatency *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors and runtime
	errorsByComponent    *prometheus.CounterVec
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide metrics

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates and registers every collector.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "elevenvotes",
		subsystem:        "consensus",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.register()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) register() {
	m.snapshotsProcessed = m.counterVec("snapshots_processed_total", "Snapshots aggregated into a view section", "kind")
	m.snapshotsDuplicate = m.counter("snapshots_duplicate_total", "Snapshots dropped because their id was already seen")
	m.snapshotsRejected = m.counterVec("snapshots_rejected_total", "Snapshots refused at ingestion", "reason")
	m.aggregationLatency = m.histogramVec("aggregation_latency_milliseconds", "Time to decode and aggregate one snapshot", "kind")
	m.aggregationErrors = m.counterVec("aggregation_errors_total", "Snapshots whose document could not be aggregated", "kind")
	m.viewUpdates = m.counterVec("view_updates_total", "Match view sections replaced", "kind")
	m.valuesRepaired = m.counterVec("values_repaired_total", "Vote counts clamped or dropped while decoding", "kind")
	m.substitutionSkipped = m.counter("substitutions_skipped_total", "Substitution events skipped as inconsistent")
	m.matchesTotal = m.gauge("matches_total", "Matches with at least one computed section")

	m.wsClients = m.gauge("ws_clients", "Connected live subscribers")
	m.wsBroadcast = m.counter("ws_broadcast_total", "Section updates pushed to subscribers")

	m.queueSize = m.gauge("queue_size", "Snapshots waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Snapshots enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Snapshots dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Snapshots refused by the queue")

	m.workerCount = m.gauge("worker_count", "Configured worker goroutines")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently processing a snapshot")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time a worker spends on one snapshot")
	m.workerErrors = m.counter("worker_errors_total", "Snapshots a worker failed to process")

	m.repositoryLatency = m.histogramVec("repository_latency_milliseconds", "Repository operation latency", "operation")
	m.cacheLookups = m.counterVec("cache_lookups_total", "View cache lookups by result", "result")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordSnapshotProcessed counts a snapshot aggregated into its section.
func RecordSnapshotProcessed(kind string) {
	globalManager.snapshotsProcessed.WithLabelValues(kind).Inc()
}

// RecordSnapshotDuplicate counts a snapshot dropped by the deduper.
func RecordSnapshotDuplicate() {
	globalManager.snapshotsDuplicate.Inc()
}

// RecordSnapshotRejected counts a snapshot refused at ingestion.
func RecordSnapshotRejected(reason string) {
	globalManager.snapshotsRejected.WithLabelValues(reason).Inc()
}

// RecordAggregationLatency records decode plus aggregation time.
func RecordAggregationLatency(kind string, latencyMs float64) {
	globalManager.aggregationLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordAggregationError counts a snapshot that failed to aggregate.
func RecordAggregationError(kind string) {
	globalManager.aggregationErrors.WithLabelValues(kind).Inc()
}

// RecordViewUpdate counts a replaced view section.
func RecordViewUpdate(kind string) {
	globalManager.viewUpdates.WithLabelValues(kind).Inc()
}

// RecordValuesRepaired adds n clamped or dropped values.
func RecordValuesRepaired(kind string, n int) {
	if n > 0 {
		globalManager.valuesRepaired.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordSubstitutionsSkipped adds n skipped substitution events.
func RecordSubstitutionsSkipped(n int) {
	if n > 0 {
		globalManager.substitutionSkipped.Add(float64(n))
	}
}

// UpdateMatchesTotal sets the number of tracked matches.
func UpdateMatchesTotal(count int) {
	globalManager.matchesTotal.Set(float64(count))
}

// UpdateWSClients sets the number of live subscribers.
func UpdateWSClients(count int) {
	globalManager.wsClients.Set(float64(count))
}

// RecordWSBroadcast counts a pushed section update.
func RecordWSBroadcast() {
	globalManager.wsBroadcast.Inc()
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

// RecordQueueEnqueue counts an enqueued snapshot.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a dequeued snapshot.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a refused enqueue.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records the time spent on one snapshot.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed snapshot.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordRepositoryLatency records a repository operation's latency.
func RecordRepositoryLatency(operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordCacheLookup counts a cache lookup; result is "hit", "miss" or "error".
func RecordCacheLookup(result string) {
	globalManager.cacheLookups.WithLabelValues(result).Inc()
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap memory in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the registry holding the global metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler serves the global registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}
