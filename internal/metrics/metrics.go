// Package metrics exposes Prometheus counters for the detection pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chrissnell/flarewatch/internal/flare"
)

const (
	metricPrefix = "flarewatch_"

	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

var (
	registerOnce sync.Once

	detectionRuns       *prometheus.CounterVec
	detectionLatency    *prometheus.HistogramVec
	flaresDetected      *prometheus.CounterVec
	onsetFallbacks      prometheus.Counter
	candidatesAbandoned prometheus.Counter
	exportsTotal        *prometheus.CounterVec
)

// Init registers the metrics with the default registry. It is safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		detectionRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "detection_runs_total",
				Help: "Total detection runs by result",
			},
			[]string{"result"},
		)
		detectionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "detection_latency_seconds",
				Help:    "Detection latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		flaresDetected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "flares_detected_total",
				Help: "Total flares detected by class letter",
			},
			[]string{"class"},
		)
		onsetFallbacks = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "onset_fallbacks_total",
				Help: "Onset fits retried on the wide window",
			},
		)
		candidatesAbandoned = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "candidates_abandoned_total",
				Help: "Flare candidates dropped because no fit succeeded",
			},
		)
		exportsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exports_total",
				Help: "Total result downloads by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			detectionRuns,
			detectionLatency,
			flaresDetected,
			onsetFallbacks,
			candidatesAbandoned,
			exportsTotal,
		)
	})
}

// ObserveDetection records a finished detection run
func ObserveDetection(result string, duration time.Duration) {
	if detectionRuns == nil {
		return
	}
	detectionRuns.WithLabelValues(result).Inc()
	detectionLatency.WithLabelValues(result).Observe(duration.Seconds())
}

// IncExport counts a report download
func IncExport(format, result string) {
	if exportsTotal == nil {
		return
	}
	exportsTotal.WithLabelValues(format, result).Inc()
}

// Observer forwards detector events to the Prometheus counters
type Observer struct{}

var _ flare.Observer = Observer{}

func (Observer) OnsetFallback(int, error) {
	if onsetFallbacks != nil {
		onsetFallbacks.Inc()
	}
}

func (Observer) CandidateAbandoned(int, error) {
	if candidatesAbandoned != nil {
		candidatesAbandoned.Inc()
	}
}

func (Observer) FlareDetected(r flare.FlareRecord) {
	if flaresDetected != nil {
		flaresDetected.WithLabelValues(classLetter(r.Class)).Inc()
	}
}

// classLetter returns the trailing class letter of a label such as "2.5M"
func classLetter(class string) string {
	if class == "" {
		return "unknown"
	}
	return class[len(class)-1:]
}
