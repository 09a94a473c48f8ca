package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// HTTP metrics
	requestDurationHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	requestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_count_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	activeRequestsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_active",
			Help: "Number of active HTTP requests",
		},
	)

	// RPC metrics
	rpcCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_calls_total",
			Help: "Total number of transfer RPCs by method and status code",
		},
		[]string{"method", "code"},
	)

	rpcDurationHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rpc_duration_seconds",
			Help:    "Duration of transfer RPCs in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Transfer metrics
	chunkCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_chunks_total",
			Help: "Total number of chunks received by outcome",
		},
		[]string{"outcome"},
	)

	chunkBytesCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transfer_chunk_bytes_total",
			Help: "Total number of accepted chunk bytes",
		},
	)

	integrityFailureCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_integrity_failures_total",
			Help: "Total number of integrity failures by kind",
		},
		[]string{"kind"},
	)

	transferCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfers_total",
			Help: "Total number of finished transfers by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	activeSessionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transfer_sessions_active",
			Help: "Number of transfer sessions currently open",
		},
	)

	// Training metrics
	trainingCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of training and prediction runs by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	accuracyGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "training_last_accuracy",
			Help: "Test-split accuracy of the most recently trained model",
		},
	)
)

var (
	trainingHistogramOnce sync.Once
	trainingHistogram     metric.Float64Histogram
)

// RecordRPC records one finished RPC
func RecordRPC(method, code string, duration time.Duration) {
	rpcCounter.WithLabelValues(method, code).Inc()
	rpcDurationHistogram.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordChunk records an accepted or rejected chunk
func RecordChunk(accepted bool, size int) {
	if !accepted {
		chunkCounter.WithLabelValues("rejected").Inc()
		return
	}
	chunkCounter.WithLabelValues("accepted").Inc()
	chunkBytesCounter.Add(float64(size))
}

// RecordIntegrityFailure records a digest or MAC mismatch
func RecordIntegrityFailure(kind string) {
	integrityFailureCounter.WithLabelValues(kind).Inc()
}

// RecordTransfer records a finished transfer
func RecordTransfer(purpose, outcome string) {
	transferCounter.WithLabelValues(purpose, outcome).Inc()
}

// UpdateActiveSessions sets the number of open transfer sessions
func UpdateActiveSessions(count int) {
	activeSessionsGauge.Set(float64(count))
}

// RecordTraining records a training or prediction run. Duration is also
// exported through OpenTelemetry.
func RecordTraining(ctx context.Context, kind, outcome string, duration time.Duration) {
	trainingCounter.WithLabelValues(kind, outcome).Inc()

	trainingHistogramOnce.Do(func() {
		h, err := otel.Meter(instrumentationName).Float64Histogram(
			"training.duration",
			metric.WithDescription("Duration of training and prediction runs"),
			metric.WithUnit("s"),
		)
		if err == nil {
			trainingHistogram = h
		}
	})
	if trainingHistogram != nil {
		trainingHistogram.Record(ctx, duration.Seconds(),
			metric.WithAttributes(
				attribute.String("kind", kind),
				attribute.String("outcome", outcome),
			),
		)
	}
}

// RecordAccuracy stores the accuracy of the latest model
func RecordAccuracy(accuracy float64) {
	accuracyGauge.Set(accuracy)
}
