package metrics

import (
	"errors"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/menta2k/banana-grader/pkg/types"
)

var (
	once sync.Once

	// AnalysesTotal counts finished pipeline runs by outcome.
	AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "pipeline",
		Name:      "analyses_total",
		Help:      "Total number of image analyses, labeled by result.",
	}, []string{"result"})

	// AnalysisDurationSeconds is decode-to-result time, excluding pacing.
	AnalysisDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grader",
		Subsystem: "pipeline",
		Name:      "analysis_duration_seconds",
		Help:      "Time spent decoding, bounding and classifying one image.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"result"})

	// PixelsAnalyzedTotal counts classified pixels.
	PixelsAnalyzedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "pipeline",
		Name:      "pixels_analyzed_total",
		Help:      "Total number of pixels classified.",
	})

	// DominantLevelTotal counts results by dominant ripeness level.
	DominantLevelTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "pipeline",
		Name:      "dominant_level_total",
		Help:      "Total number of analyses by dominant ripeness level.",
	}, []string{"level"})

	// InFlight is the number of analyses currently running.
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "grader",
		Subsystem: "pipeline",
		Name:      "in_flight",
		Help:      "Current number of analyses being processed.",
	})

	// ActiveSessions is the number of sessions held by the HTTP server.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "grader",
		Subsystem: "server",
		Name:      "active_sessions",
		Help:      "Current number of inspection sessions.",
	})
)

// Register registers grader metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			AnalysesTotal,
			AnalysisDurationSeconds,
			PixelsAnalyzedTotal,
			DominantLevelTotal,
			InFlight,
			ActiveSessions,
		)
	})
}

// Result label values
const (
	ResultOK           = "ok"
	ResultDecodeError  = "decode_error"
	ResultInvalidImage = "invalid_image"
	ResultCancelled    = "cancelled"
	ResultError        = "error"
)

// ResultLabel maps a pipeline error to its metric label
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case types.IsCancelled(err):
		return ResultCancelled
	case errors.Is(err, types.ErrDecode):
		return ResultDecodeError
	case errors.Is(err, types.ErrInvalidImage):
		return ResultInvalidImage
	default:
		return ResultError
	}
}

// LevelLabel formats a level for the level label
func LevelLabel(l types.RipenessLevel) string {
	return strconv.Itoa(int(l))
}
