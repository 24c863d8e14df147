// Package metrics provides Prometheus metrics for the revenue schedule service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Pipeline outcomes
	documentsProcessed   *prometheus.CounterVec
	recordsNormalized    prometheus.Counter
	issuesTotal          prometheus.Counter
	policyActions        *prometheus.CounterVec
	priceResolutions     *prometheus.CounterVec
	catalogMatches       *prometheus.CounterVec
	agreementConfidence  prometheus.Histogram
	flaggedRecords       prometheus.Counter
	retryRecommendations prometheus.Counter
	parseOutcomes        *prometheus.CounterVec
	pipelineLatency      prometheus.Histogram

	// Jobs
	jobsSubmitted prometheus.Counter
	jobsDuplicate prometheus.Counter
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueue  prometheus.Counter
	queueDequeue  prometheus.Counter
	queueRejected prometheus.Counter
	workerCount   prometheus.Gauge
	workerActive  prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter
	storedResults prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemory     prometheus.Gauge
	systemGoroutines prometheus.Gauge
	systemGCPause    prometheus.Histogram

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "revsched",
		subsystem:        "pipeline",
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
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() {
	m.documentsProcessed = m.counterVec("documents_processed_total", "Documents run through the pipeline by outcome", "outcome")
	m.recordsNormalized = m.counter("records_normalized_total", "Schedule records produced by normalization")
	m.issuesTotal = m.counter("issues_total", "Issues attached to records and documents")
	m.policyActions = m.counterVec("policy_actions_total", "Policy corrections applied to records", "action")
	m.priceResolutions = m.counterVec("price_resolutions_total", "How total_price was resolved", "source")
	m.catalogMatches = m.counterVec("catalog_matches_total", "Integration item lookups by result", "result")
	m.agreementConfidence = m.histogram("agreement_confidence", "Per-record confidence between two extraction runs",
		[]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.75, 0.8, 0.9, 0.95, 1})
	m.flaggedRecords = m.counter("flagged_records_total", "Records flagged for human review")
	m.retryRecommendations = m.counter("retry_recommendations_total", "Documents whose extraction should be rerun")
	m.parseOutcomes = m.counterVec("parse_outcomes_total", "Model output parsing results", "outcome")
	m.pipelineLatency = m.histogram("latency_milliseconds", "Pipeline run latency in milliseconds", m.histogramBuckets)

	m.jobsSubmitted = m.counter("jobs_submitted_total", "Asynchronous jobs accepted")
	m.jobsDuplicate = m.counter("jobs_duplicate_total", "Job submissions ignored as duplicates")
	m.queueSize = m.gauge("queue_size", "Current size of the job queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum job queue capacity")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Jobs enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Jobs dequeued")
	m.queueRejected = m.counter("queue_rejected_total", "Jobs rejected because the queue was full")
	m.workerCount = m.gauge("worker_count", "Configured pipeline workers")
	m.workerActive = m.gauge("worker_active_count", "Workers currently running a job")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Worker job latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Jobs that failed in a worker")
	m.storedResults = m.gauge("stored_results", "Job results held in memory")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemory = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutines = m.gauge("system_goroutines", "Running goroutines")
	m.systemGCPause = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
}

// RecordDocument counts a processed document by outcome: ok, retry, failed.
func RecordDocument(outcome string) {
	globalManager.documentsProcessed.WithLabelValues(outcome).Inc()
}

// RecordRecordsNormalized adds n normalized records.
func RecordRecordsNormalized(n int) {
	globalManager.recordsNormalized.Add(float64(n))
}

// RecordIssues adds n issues.
func RecordIssues(n int) {
	globalManager.issuesTotal.Add(float64(n))
}

// RecordPolicyAction counts a policy correction such as brand_override or unit_demoted.
func RecordPolicyAction(action string) {
	globalManager.policyActions.WithLabelValues(action).Inc()
}

// RecordPriceResolution counts how a price was resolved.
func RecordPriceResolution(source string) {
	globalManager.priceResolutions.WithLabelValues(source).Inc()
}

// RecordCatalogMatch counts a catalog lookup result.
func RecordCatalogMatch(result string) {
	globalManager.catalogMatches.WithLabelValues(result).Inc()
}

// RecordAgreementConfidence observes a per-record confidence.
func RecordAgreementConfidence(c float64) {
	globalManager.agreementConfidence.Observe(c)
}

// RecordFlagged counts records flagged for review.
func RecordFlagged(n int) {
	globalManager.flaggedRecords.Add(float64(n))
}

// RecordRetryRecommendation counts a should_retry document.
func RecordRetryRecommendation() {
	globalManager.retryRecommendations.Inc()
}

// RecordParseOutcome counts a model output parse: clean, recovered, failed.
func RecordParseOutcome(outcome string) {
	globalManager.parseOutcomes.WithLabelValues(outcome).Inc()
}

// RecordPipelineLatency records a pipeline run in milliseconds.
func RecordPipelineLatency(latencyMs float64) {
	globalManager.pipelineLatency.Observe(latencyMs)
}

// RecordJobSubmitted counts an accepted job.
func RecordJobSubmitted() {
	globalManager.jobsSubmitted.Inc()
}

// RecordJobDuplicate counts a duplicate submission.
func RecordJobDuplicate() {
	globalManager.jobsDuplicate.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueRejected counts an enqueue refused for backpressure.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateStoredResults sets the number of stored job results.
func UpdateStoredResults(count int) {
	globalManager.storedResults.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemory.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutines.Set(float64(count))
}

// RecordSystemGCPauseTime records the average GC pause.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.systemGCPause.Observe(ms)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
