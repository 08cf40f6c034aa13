// Package metrics provides Prometheus metrics for the flight delay analytics service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultLatencyBuckets suit in-memory aggregation and rendering, which
// mostly finish well under DefBuckets' smallest bound.
var defaultLatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250} //nolint:gochecknoglobals // bucket layout

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	latencyBuckets   []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Dataset
	recordsLoaded    *prometheus.CounterVec
	recordsIngested  prometheus.Counter
	recordsRejected  *prometheus.CounterVec
	recordsDuplicate prometheus.Counter
	recordsTotal     prometheus.Gauge
	routesTotal      prometheus.Gauge

	// Analytics
	recommendations    *prometheus.CounterVec
	aggregationLatency *prometheus.HistogramVec
	renderLatency      *prometheus.HistogramVec

	// Snapshot store
	snapshotRebuildDuration prometheus.Histogram
	snapshotLastUnix        prometheus.Gauge
	snapshotCount           prometheus.Counter

	// Ingestion queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec
	errorLatency      *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of the exposition.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "flightdelay",
		subsystem:        "analytics",
		histogramBuckets: prometheus.DefBuckets,
		latencyBuckets:   defaultLatencyBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix != "" {
		return m.metricPrefix + "_" + n
	}
	return n
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
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.recordsLoaded = auto.NewCounterVec(m.counterOpts("records_loaded_total",
		"Flight records loaded from a record source"), []string{"source"})
	m.recordsIngested = auto.NewCounter(m.counterOpts("records_ingested_total",
		"Flight records appended through the ingestion pipeline"))
	m.recordsRejected = auto.NewCounterVec(m.counterOpts("records_rejected_total",
		"Flight records dropped as malformed"), []string{"reason"})
	m.recordsDuplicate = auto.NewCounter(m.counterOpts("records_duplicate_total",
		"Ingested flight records skipped as duplicates"))
	m.recordsTotal = auto.NewGauge(m.gaugeOpts("records",
		"Flight records held in the current snapshot"))
	m.routesTotal = auto.NewGauge(m.gaugeOpts("routes",
		"Distinct routes held in the current snapshot"))

	m.recommendations = auto.NewCounterVec(m.counterOpts("recommendations_total",
		"Route recommendations by outcome"), []string{"outcome"})
	m.aggregationLatency = auto.NewHistogramVec(m.histogramOpts("aggregation_latency_milliseconds",
		"Latency of aggregation queries in milliseconds", m.latencyBuckets), []string{"query"})
	m.renderLatency = auto.NewHistogramVec(m.histogramOpts("render_latency_milliseconds",
		"Latency of chart and report rendering in milliseconds", m.latencyBuckets), []string{"kind"})

	m.snapshotRebuildDuration = auto.NewHistogram(m.histogramOpts("snapshot_rebuild_duration_milliseconds",
		"Record snapshot rebuild duration in milliseconds", m.latencyBuckets))
	m.snapshotLastUnix = auto.NewGauge(m.gaugeOpts("snapshot_last_unix",
		"Unix timestamp of the last snapshot publish"))
	m.snapshotCount = auto.NewCounter(m.counterOpts("snapshot_count_total",
		"Record snapshots published"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size",
		"Current size of the ingestion queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity",
		"Maximum ingestion queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio",
		"Ingestion queue utilization (size / capacity)"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total",
		"Records enqueued for ingestion"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total",
		"Records dequeued by workers"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total",
		"Failed enqueue attempts"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts("queue_processing_latency_milliseconds",
		"Enqueue latency in milliseconds", nil))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count",
		"Ingestion workers running"))
	m.workerMessagesPerSecond = auto.NewGauge(m.gaugeOpts("worker_messages_per_second",
		"Records processed per second by the worker pool"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Per-record worker processing latency in milliseconds", nil))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total",
		"Worker processing errors"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", nil), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Errors by component"), []string{"component", "error_type"})
	m.errorsByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total",
		"Errors by type and severity"), []string{"error_type", "severity"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Errors by endpoint"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds",
		"Latency of operations that resulted in errors", nil), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes",
		"Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count",
		"Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"Average GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Dataset metrics.

// RecordRecordsLoaded adds n records loaded from the named source.
func RecordRecordsLoaded(source string, n int) {
	globalManager.recordsLoaded.WithLabelValues(source).Add(float64(n))
}

// RecordRecordIngested adds n records applied through the ingestion path.
func RecordRecordIngested(n int) {
	globalManager.recordsIngested.Add(float64(n))
}

// RecordRecordRejected adds n malformed records by reason.
func RecordRecordRejected(reason string, n int) {
	globalManager.recordsRejected.WithLabelValues(reason).Add(float64(n))
}

// RecordRecordDuplicate increments the duplicate counter.
func RecordRecordDuplicate() {
	globalManager.recordsDuplicate.Inc()
}

// UpdateRecordsTotal sets the number of records in the current snapshot.
func UpdateRecordsTotal(n int) {
	globalManager.recordsTotal.Set(float64(n))
}

// UpdateRoutesTotal sets the number of distinct routes in the current snapshot.
func UpdateRoutesTotal(n int) {
	globalManager.routesTotal.Set(float64(n))
}

// Analytics metrics.

// RecordRecommendation counts a recommendation by outcome ("found", "not_found").
func RecordRecommendation(outcome string) {
	globalManager.recommendations.WithLabelValues(outcome).Inc()
}

// RecordAggregationLatency observes the latency of an aggregation query.
func RecordAggregationLatency(query string, latencyMs float64) {
	globalManager.aggregationLatency.WithLabelValues(query).Observe(latencyMs)
}

// RecordRenderLatency observes the latency of a chart or report render.
func RecordRenderLatency(kind string, latencyMs float64) {
	globalManager.renderLatency.WithLabelValues(kind).Observe(latencyMs)
}

// Snapshot metrics.

// RecordSnapshotRebuild records a snapshot publish that took latencyMs.
func RecordSnapshotRebuild(latencyMs float64) {
	globalManager.snapshotRebuildDuration.Observe(latencyMs)
	globalManager.snapshotLastUnix.Set(float64(time.Now().Unix()))
	globalManager.snapshotCount.Inc()
}

// Queue metrics.

// UpdateQueueSize sets the current ingestion queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the ingestion queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker metrics.

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerMessagesPerSecond sets the pool throughput.
func UpdateWorkerMessagesPerSecond(rate float64) {
	globalManager.workerMessagesPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records per-batch worker latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP metrics.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method and type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that failed.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System metrics.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
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

// GetRegistry returns the custom Prometheus registry used by the service.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler serves the custom registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}
