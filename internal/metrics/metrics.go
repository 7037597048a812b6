// Package metrics instruments the container pipeline with Prometheus
// counters, histograms, and gauges: chunk counts and bytes processed per
// phase, phase durations, buffer-pool hit rate, and hardware-acceleration
// status, adapted from the teacher's HTTP/S3 instrumentation layer to the
// encode/decode/restore domain.
package metrics

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

var (
	// defaultRegistry is the default Prometheus registry.
	defaultRegistry = prometheus.DefaultRegisterer
)

// Config holds metrics configuration.
type Config struct {
	// EnablePathLabel controls whether blob paths are used as a metric
	// label. Real backup containers can carry thousands of distinct blob
	// paths; leaving this off (the default) collapses the label to "*" to
	// avoid unbounded cardinality in the blobOperationsTotal series.
	EnablePathLabel bool
}

// Metrics holds every metric this module emits.
type Metrics struct {
	config Config

	containerOperationsTotal *prometheus.CounterVec
	containerOperationErrors *prometheus.CounterVec
	phaseDuration            *prometheus.HistogramVec
	chunkBytesTotal          *prometheus.CounterVec
	chunkCountTotal          *prometheus.CounterVec
	blobOperationsTotal      *prometheus.CounterVec
	kdfDuration              prometheus.Histogram
	restoreRowsInserted      *prometheus.CounterVec
	restoreRowFallbacks      *prometheus.CounterVec
	bufferPoolHits           *prometheus.CounterVec
	bufferPoolMisses         *prometheus.CounterVec
	goroutines               prometheus.Gauge
	memoryAllocBytes         prometheus.Gauge
	memorySysBytes           prometheus.Gauge

	hardwareAccelerationEnabled *prometheus.GaugeVec
}

// NewMetrics creates a new metrics instance against the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithConfig(Config{EnablePathLabel: false})
}

// NewMetricsWithConfig creates a new metrics instance with the given
// configuration against the default registry.
func NewMetricsWithConfig(cfg Config) *Metrics {
	return newMetricsWithRegistry(defaultRegistry, cfg)
}

// NewMetricsWithRegistry creates a metrics instance bound to a custom
// registry, so tests don't collide on the package-global default registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetricsWithRegistry(reg, Config{EnablePathLabel: false})
}

func newMetricsWithRegistry(reg prometheus.Registerer, cfg Config) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		config: cfg,
		containerOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "container_operations_total",
				Help: "Total number of encode/decode/restore operations",
			},
			[]string{"operation"}, // "encode", "decode", "quick_validate", "restore"
		),
		containerOperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "container_operation_errors_total",
				Help: "Total number of encode/decode/restore operations that ended in error",
			},
			[]string{"operation", "error_kind"},
		),
		phaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "container_phase_duration_seconds",
				Help:    "Duration of one encode/decode phase",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "phase"},
		),
		chunkBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "container_chunk_bytes_total",
				Help: "Total ciphertext bytes written or read, by chunk type",
			},
			[]string{"operation", "chunk_type"},
		),
		chunkCountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "container_chunks_total",
				Help: "Total number of chunks written or read, by chunk type",
			},
			[]string{"operation", "chunk_type"},
		),
		blobOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blob_operations_total",
				Help: "Total number of blob-storage port reads/writes during encode/restore",
			},
			[]string{"operation", "path"},
		),
		kdfDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "container_kdf_duration_seconds",
				Help:    "Duration of one PBKDF2 key-derivation call",
				Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1, 1.5, 2, 3, 5},
			},
		),
		restoreRowsInserted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restore_rows_inserted_total",
				Help: "Total number of rows successfully inserted during restore",
			},
			[]string{"table"},
		),
		restoreRowFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restore_row_fallbacks_total",
				Help: "Total number of rows that required the per-row insert fallback after a batch insert failed",
			},
			[]string{"table"},
		),
		bufferPoolHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buffer_pool_hits_total",
				Help: "Total number of chunk buffer pool hits",
			},
			[]string{"size_class"},
		),
		bufferPoolMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buffer_pool_misses_total",
				Help: "Total number of chunk buffer pool misses",
			},
			[]string{"size_class"},
		),
		goroutines: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "goroutines_total",
				Help: "Number of goroutines",
			},
		),
		memoryAllocBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_alloc_bytes",
				Help: "Number of bytes allocated and not yet freed",
			},
		),
		memorySysBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_sys_bytes",
				Help: "Total bytes of memory obtained from OS",
			},
		),
		hardwareAccelerationEnabled: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hardware_acceleration_enabled",
				Help: "AES hardware acceleration status (1=enabled, 0=disabled)",
			},
			[]string{"type"},
		),
	}
}

// SetHardwareAccelerationStatus sets the hardware acceleration status
// metric, surfacing whether the PBKDF2/AES-GCM path runs with CPU
// acceleration on this host.
func (m *Metrics) SetHardwareAccelerationStatus(accelType string, enabled bool) {
	val := 0.0
	if enabled {
		val = 1.0
	}
	m.hardwareAccelerationEnabled.WithLabelValues(accelType).Set(val)
}

// GetHardwareAccelerationEnabledMetric returns the hardware acceleration
// gauge vector (for testing).
func (m *Metrics) GetHardwareAccelerationEnabledMetric() *prometheus.GaugeVec {
	return m.hardwareAccelerationEnabled
}

// RecordOperation records the outcome of one top-level encode/decode/
// restore/quick-validate call.
func (m *Metrics) RecordOperation(ctx context.Context, operation string, err error, errorKind string) {
	if exemplar := getExemplar(ctx); exemplar != nil {
		if adder, ok := m.containerOperationsTotal.WithLabelValues(operation).(prometheus.ExemplarAdder); ok {
			adder.AddWithExemplar(1, exemplar)
		} else {
			m.containerOperationsTotal.WithLabelValues(operation).Inc()
		}
	} else {
		m.containerOperationsTotal.WithLabelValues(operation).Inc()
	}

	if err != nil {
		m.containerOperationErrors.WithLabelValues(operation, errorKind).Inc()
	}
}

// RecordPhase records how long one encode/decode phase (preparing,
// database, blobs, finalizing) took.
func (m *Metrics) RecordPhase(ctx context.Context, operation, phase string, duration time.Duration) {
	if exemplar := getExemplar(ctx); exemplar != nil {
		if observer, ok := m.phaseDuration.WithLabelValues(operation, phase).(prometheus.ExemplarObserver); ok {
			observer.ObserveWithExemplar(duration.Seconds(), exemplar)
			return
		}
	}
	m.phaseDuration.WithLabelValues(operation, phase).Observe(duration.Seconds())
}

// chunkTypeLabel maps a chunk type tag (0/1/2) to a stable, low-cardinality
// metric label.
func chunkTypeLabel(chunkType int) string {
	switch chunkType {
	case 0:
		return "manifest"
	case 1:
		return "database"
	case 2:
		return "blob"
	default:
		return "unknown"
	}
}

// RecordChunk records one chunk written or read: its type and its
// ciphertext byte length.
func (m *Metrics) RecordChunk(operation string, chunkType int, bytes int) {
	label := chunkTypeLabel(chunkType)
	m.chunkCountTotal.WithLabelValues(operation, label).Inc()
	m.chunkBytesTotal.WithLabelValues(operation, label).Add(float64(bytes))
}

// blobPathLabel collapses a blob path to "*" unless EnablePathLabel is set,
// since a real backup can carry thousands of distinct blob paths and an
// unbounded path label would blow up series cardinality.
func (m *Metrics) blobPathLabel(path string) string {
	if !m.config.EnablePathLabel {
		return "*"
	}
	return path
}

// RecordBlobOperation records one blob-storage port call made while
// encoding (read) or restoring (write).
func (m *Metrics) RecordBlobOperation(operation, path string) {
	m.blobOperationsTotal.WithLabelValues(operation, m.blobPathLabel(path)).Inc()
}

// RecordKDFDuration records one PBKDF2 key-derivation call's wall time.
func (m *Metrics) RecordKDFDuration(d time.Duration) {
	m.kdfDuration.Observe(d.Seconds())
}

// RecordRestoreRows records rows inserted (directly, without the per-row
// fallback) for one table during restore.
func (m *Metrics) RecordRestoreRows(table string, count int) {
	m.restoreRowsInserted.WithLabelValues(table).Add(float64(count))
}

// RecordRestoreFallback records one row that needed the per-row insert
// fallback after its containing batch insert failed.
func (m *Metrics) RecordRestoreFallback(table string) {
	m.restoreRowFallbacks.WithLabelValues(table).Inc()
}

// RecordBufferPoolHit records a chunk buffer pool hit.
func (m *Metrics) RecordBufferPoolHit(sizeClass string) {
	m.bufferPoolHits.WithLabelValues(sizeClass).Inc()
}

// RecordBufferPoolMiss records a chunk buffer pool miss.
func (m *Metrics) RecordBufferPoolMiss(sizeClass string) {
	m.bufferPoolMisses.WithLabelValues(sizeClass).Inc()
}

// UpdateSystemMetrics refreshes goroutine and memory gauges from the Go
// runtime.
func (m *Metrics) UpdateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.memoryAllocBytes.Set(float64(memStats.Alloc))
	m.memorySysBytes.Set(float64(memStats.Sys))
}

// StartSystemMetricsCollector starts a goroutine that periodically updates
// system metrics.
func (m *Metrics) StartSystemMetricsCollector() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		for range ticker.C {
			m.UpdateSystemMetrics()
		}
	}()
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// getExemplar extracts the active span's trace ID from ctx, if any, for
// attaching as a Prometheus exemplar.
func getExemplar(ctx context.Context) prometheus.Labels {
	if ctx == nil {
		return nil
	}
	spanContext := trace.SpanFromContext(ctx).SpanContext()
	if spanContext.IsValid() {
		return prometheus.Labels{"trace_id": spanContext.TraceID().String()}
	}
	return nil
}
