package observability

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the repository.
type Metrics struct {
	// Backup metrics
	BackupsTotal      *prometheus.CounterVec
	BackupsActive     prometheus.Gauge
	BackupDuration    prometheus.Histogram
	BytesWrittenTotal *prometheus.CounterVec
	ChunksWrittenTotal prometheus.Counter
	ChunksDedupedTotal prometheus.Counter

	// Backend metrics
	BackendOperationsTotal    *prometheus.CounterVec
	BackendOperationDuration  prometheus.Histogram
	LockWaitDuration          prometheus.Histogram
	LockStealsTotal           prometheus.Counter
	ErasureReconstructionsTotal       prometheus.Counter
	ErasureReconstructionFailuresTotal prometheus.Counter
	ErasureParityShardsWrittenTotal   prometheus.Counter

	// Crypto metrics
	CryptoOperationsTotal   *prometheus.CounterVec
	CryptoOperationDuration prometheus.Histogram
	VerifyChunksTotal       *prometheus.CounterVec

	// Storage metrics
	IndexCommitDuration     prometheus.Histogram
	SegmentOperationsTotal  *prometheus.CounterVec
	DiskSpaceUsedBytes      prometheus.Gauge

	// Active backups counter (atomic for thread-safety)
	activeBackups int64
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		BackupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asuran_backups_total",
				Help: "Total backup runs initiated",
			},
			[]string{"status"},
		),

		BackupsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "asuran_backups_active",
				Help: "Currently active backup runs",
			},
		),

		BackupDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "asuran_backup_duration_seconds",
				Help:    "Backup completion time distribution",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800},
			},
		),

		BytesWrittenTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asuran_bytes_written_total",
				Help: "Total plaintext bytes written",
			},
			[]string{"direction"},
		),

		ChunksWrittenTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "asuran_chunks_written_total",
				Help: "Total chunks written to the backend",
			},
		),

		ChunksDedupedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "asuran_chunks_deduped_total",
				Help: "Chunks that matched an existing entry and were not rewritten",
			},
		),

		BackendOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asuran_backend_operations_total",
				Help: "Backend operation attempts",
			},
			[]string{"op", "result"},
		),

		BackendOperationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "asuran_backend_operation_duration_seconds",
				Help:    "Backend operation latency",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
		),

		LockWaitDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "asuran_lock_wait_duration_seconds",
				Help:    "Time spent waiting to acquire a backend lock",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
			},
		),

		LockStealsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "asuran_lock_steals_total",
				Help: "Stale locks stolen from a dead holder",
			},
		),

		ErasureReconstructionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "asuran_erasure_reconstructions_total",
				Help: "Chunks reconstructed from parity shards",
			},
		),

		ErasureReconstructionFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "asuran_erasure_reconstruction_failures_total",
				Help: "Failed erasure reconstructions",
			},
		),

		ErasureParityShardsWrittenTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "asuran_erasure_parity_shards_written_total",
				Help: "Parity shards written",
			},
		),

		CryptoOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asuran_crypto_operations_total",
				Help: "Cryptographic operations performed",
			},
			[]string{"operation"},
		),

		CryptoOperationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "asuran_crypto_operation_duration_seconds",
				Help:    "Crypto operation latency",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),

		VerifyChunksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asuran_verify_chunks_total",
				Help: "Chunks examined by a verify run",
			},
			[]string{"status"},
		),

		IndexCommitDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "asuran_index_commit_duration_seconds",
				Help:    "Staged index batch commit latency",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),

		SegmentOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asuran_segment_operations_total",
				Help: "Segment file operations",
			},
			[]string{"op"},
		),

		DiskSpaceUsedBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "asuran_disk_space_used_bytes",
				Help: "Disk space used by the local backend",
			},
		),
	}

	return m
}

// RecordBackupStart increments active backup counters.
func (m *Metrics) RecordBackupStart() {
	atomic.AddInt64(&m.activeBackups, 1)
	m.BackupsActive.Set(float64(atomic.LoadInt64(&m.activeBackups)))
}

// RecordBackupComplete records backup completion metrics.
func (m *Metrics) RecordBackupComplete(success bool, durationSeconds float64) {
	atomic.AddInt64(&m.activeBackups, -1)
	m.BackupsActive.Set(float64(atomic.LoadInt64(&m.activeBackups)))

	status := "success"
	if !success {
		status = "failure"
	}

	m.BackupsTotal.WithLabelValues(status).Inc()
	m.BackupDuration.Observe(durationSeconds)
}

// RecordChunkWritten updates metrics for a chunk write.
func (m *Metrics) RecordChunkWritten(bytes int, deduped bool) {
	if deduped {
		m.ChunksDedupedTotal.Inc()
		return
	}
	m.ChunksWrittenTotal.Inc()
	m.BytesWrittenTotal.WithLabelValues("write").Add(float64(bytes))
}

// RecordBackendOperation records a backend operation's outcome.
func (m *Metrics) RecordBackendOperation(op string, success bool, durationSeconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.BackendOperationsTotal.WithLabelValues(op, result).Inc()
	m.BackendOperationDuration.Observe(durationSeconds)
}

// RecordLockWait records lock-acquisition latency.
func (m *Metrics) RecordLockWait(durationSeconds float64) {
	m.LockWaitDuration.Observe(durationSeconds)
}

// RecordLockSteal increments the stale-lock steal counter.
func (m *Metrics) RecordLockSteal() {
	m.LockStealsTotal.Inc()
}

// RecordCryptoOperation records cryptographic operation duration.
func (m *Metrics) RecordCryptoOperation(operation string, durationSeconds float64) {
	m.CryptoOperationsTotal.WithLabelValues(operation).Inc()
	m.CryptoOperationDuration.Observe(durationSeconds)
}

// RecordVerifyChunk records one chunk's verification outcome.
func (m *Metrics) RecordVerifyChunk(status string) {
	m.VerifyChunksTotal.WithLabelValues(status).Inc()
}

// RecordErasureReconstruction updates erasure reconstruction counters.
func (m *Metrics) RecordErasureReconstruction(success bool) {
	if success {
		m.ErasureReconstructionsTotal.Inc()
	} else {
		m.ErasureReconstructionFailuresTotal.Inc()
	}
}

// Handler exposes the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
