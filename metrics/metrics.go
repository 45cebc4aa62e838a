// Package metrics holds the sitelens Prometheus collectors.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	// CapturesTotal counts screenshot attempts by result (ok, error, rejected).
	CapturesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitelens",
		Name:      "captures_total",
		Help:      "Screenshot attempts, labeled by result.",
	}, []string{"result"})

	// CaptureDurationSeconds is browser launch to file written.
	CaptureDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sitelens",
		Subsystem: "capture",
		Name:      "duration_seconds",
		Help:      "Time to render and store one screenshot.",
		Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 20, 30, 60},
	})

	// CaptureBytes is the size of stored screenshots.
	CaptureBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sitelens",
		Subsystem: "capture",
		Name:      "bytes",
		Help:      "Size of stored screenshots in bytes.",
		Buckets:   prometheus.ExponentialBuckets(64<<10, 2, 8),
	})

	// GenerationsTotal counts AI calls by kind (analysis, code) and result.
	GenerationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitelens",
		Name:      "generations_total",
		Help:      "AI generation calls, labeled by kind and result.",
	}, []string{"kind", "result"})

	// GenerationDurationSeconds is the provider round trip per call.
	GenerationDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sitelens",
		Name:      "generation_duration_seconds",
		Help:      "AI provider round trip time, labeled by kind.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"kind"})

	// ArtifactsSwept counts files removed by retention sweeps.
	ArtifactsSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sitelens",
		Subsystem: "artifact",
		Name:      "swept_total",
		Help:      "Screenshots removed by retention sweeps.",
	})

	// MirrorErrorsTotal counts failed S3 mirror uploads.
	MirrorErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sitelens",
		Subsystem: "artifact",
		Name:      "mirror_errors_total",
		Help:      "Failed uploads to the S3 mirror.",
	})
)

// Register registers sitelens collectors with the default registry. Safe to
// call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			CapturesTotal,
			CaptureDurationSeconds,
			CaptureBytes,
			GenerationsTotal,
			GenerationDurationSeconds,
			ArtifactsSwept,
			MirrorErrorsTotal,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
