// Package metrics provides Prometheus metrics for the moodscale service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Assessment metrics
	assessmentsScored    *prometheus.CounterVec
	assessmentsRejected  *prometheus.CounterVec
	assessmentsDuplicate prometheus.Counter
	assessmentsPersisted prometheus.Counter
	scoringLatency       prometheus.Histogram
	configurationDefects *prometheus.CounterVec

	// Repository metrics
	persistenceErrors      prometheus.Counter
	repositoryRecordsTotal prometheus.Gauge
	repositoryWriteLatency prometheus.Histogram
	repositoryQueryLatency prometheus.Histogram

	// Queue metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error breakdowns
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "moodscale",
		subsystem:        "assessments",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
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

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	m.assessmentsScored = m.counterVec("scored_total",
		"Assessments scored, by instrument and severity band", "instrument", "band")
	m.assessmentsRejected = m.counterVec("rejected_total",
		"Assessments rejected before scoring, by instrument and reason", "instrument", "reason")
	m.assessmentsDuplicate = m.counter("duplicate_total",
		"Submissions ignored because their submission id was already seen")
	m.assessmentsPersisted = m.counter("persisted_total",
		"Assessments written to the store")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds",
		"Time to validate, total and interpret one questionnaire", m.histogramBuckets)
	m.configurationDefects = m.counterVec("configuration_defects_total",
		"Scores that matched no band; any increment is a registry bug", "instrument")

	m.persistenceErrors = m.counter("persistence_errors_total",
		"Assessments that could not be written to the store")
	m.repositoryRecordsTotal = m.gauge("repository_records_total",
		"Assessments currently held by the store")
	m.repositoryWriteLatency = m.histogram("repository_write_latency_milliseconds",
		"Store write latency in milliseconds", m.histogramBuckets)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds",
		"Store query latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Assessments waiting to be persisted")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size / capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Assessments enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Assessments dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue attempts rejected")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds",
		"Enqueue latency in milliseconds", m.histogramBuckets)

	m.workerCount = m.gauge("worker_count", "Persistence workers running")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Time for a worker to persist one assessment", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Worker processing errors")

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Errors by component and type", "component", "error_type")
	m.errorsByType = m.counterVec("errors_by_type_total",
		"Errors by type and severity", "error_type", "severity")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total",
		"HTTP errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Running goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds",
		"Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordAssessmentScored counts a scored assessment under its band.
func RecordAssessmentScored(instrument, band string) {
	globalManager.assessmentsScored.WithLabelValues(instrument, band).Inc()
}

// RecordAssessmentRejected counts a rejected submission.
func RecordAssessmentRejected(instrument, reason string) {
	globalManager.assessmentsRejected.WithLabelValues(instrument, reason).Inc()
}

// RecordAssessmentDuplicate counts an idempotent replay.
func RecordAssessmentDuplicate() {
	globalManager.assessmentsDuplicate.Inc()
}

// RecordAssessmentPersisted counts a stored assessment.
func RecordAssessmentPersisted() {
	globalManager.assessmentsPersisted.Inc()
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordConfigurationDefect counts a score that no band covered.
func RecordConfigurationDefect(instrument string) {
	globalManager.configurationDefects.WithLabelValues(instrument).Inc()
}

// RecordPersistenceError counts a failed store write.
func RecordPersistenceError() {
	globalManager.persistenceErrors.Inc()
}

// UpdateRepositoryRecordsTotal sets the stored assessment count.
func UpdateRepositoryRecordsTotal(count int) {
	globalManager.repositoryRecordsTotal.Set(float64(count))
}

// RecordRepositoryWriteLatency records store write latency in milliseconds.
func RecordRepositoryWriteLatency(latencyMs float64) {
	globalManager.repositoryWriteLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records store query latency in milliseconds.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue length.
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

// RecordQueueEnqueue counts an enqueued assessment.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a dequeued assessment.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records enqueue latency in milliseconds.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records per-assessment worker latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a worker failure.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error raised by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType counts an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint counts an HTTP error by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
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
