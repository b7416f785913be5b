package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "predictform"

var (
	registry = prometheus.NewRegistry()
	initOnce sync.Once

	predictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_total",
		Help:      "Predictions requested, by panel and outcome.",
	}, []string{"panel", "outcome"})

	predictionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "prediction_duration_seconds",
		Help:      "Time spent parsing and classifying one form.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"panel"})

	voiceCapturesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "voice_captures_total",
		Help:      "Voice captures, by panel and outcome.",
	}, []string{"panel", "outcome"})

	sessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started_total",
		Help:      "Sessions created since process start.",
	})
)

// Init registers the collectors. It is safe to call more than once.
func Init() {
	initOnce.Do(func() {
		registry.MustRegister(
			predictionsTotal,
			predictionLatency,
			voiceCapturesTotal,
			sessionsStarted,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

func ObservePrediction(panel, outcome string, d time.Duration) {
	predictionsTotal.WithLabelValues(panel, outcome).Inc()
	predictionLatency.WithLabelValues(panel).Observe(d.Seconds())
}

func ObserveVoiceCapture(panel, outcome string) {
	voiceCapturesTotal.WithLabelValues(panel, outcome).Inc()
}

func ObserveSessionStarted() {
	sessionsStarted.Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
