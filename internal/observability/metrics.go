package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeDebates      prometheus.Gauge
	connectedObservers prometheus.Gauge

	debatesStartedTotal prometheus.Counter
	debateTurnsTotal    *prometheus.CounterVec
	debateErrorsTotal   prometheus.Counter
	humanMessagesTotal  prometheus.Counter

	tokensStreamedTotal prometheus.Counter
	generationDuration  *prometheus.HistogramVec
	generationTotal     *prometheus.CounterVec

	storePurgedTotal prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeDebates: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_debates",
					Help: "Current number of running debate loops.",
				},
			),
			connectedObservers: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "connected_observers",
					Help: "Current number of connected websocket observers.",
				},
			),
			debatesStartedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "debates_started_total",
					Help: "Total debate runs started.",
				},
			),
			debateTurnsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "debate_turns_total",
					Help: "Total automated turns persisted by provider.",
				},
				[]string{"provider"},
			),
			debateErrorsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "debate_errors_total",
					Help: "Total debate run failures.",
				},
			),
			humanMessagesTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "human_messages_total",
					Help: "Total human messages accepted.",
				},
			),
			tokensStreamedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "tokens_streamed_total",
					Help: "Total generation fragments relayed to observers.",
				},
			),
			generationDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "generation_duration_seconds",
					Help:    "Generation duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			generationTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "generation_total",
					Help: "Total generation calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			storePurgedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "store_purged_debates_total",
					Help: "Total completed debates removed by the retention job.",
				},
			),
		}

		prometheus.MustRegister(
			m.activeDebates,
			m.connectedObservers,
			m.debatesStartedTotal,
			m.debateTurnsTotal,
			m.debateErrorsTotal,
			m.humanMessagesTotal,
			m.tokensStreamedTotal,
			m.generationDuration,
			m.generationTotal,
			m.storePurgedTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveDebates(count int) {
	getMetrics().activeDebates.Set(float64(count))
}

func SetConnectedObservers(count int) {
	getMetrics().connectedObservers.Set(float64(count))
}

func RecordDebateStarted() {
	getMetrics().debatesStartedTotal.Inc()
}

func RecordDebateTurn(provider string) {
	getMetrics().debateTurnsTotal.WithLabelValues(provider).Inc()
}

func RecordDebateError() {
	getMetrics().debateErrorsTotal.Inc()
}

func RecordHumanMessage() {
	getMetrics().humanMessagesTotal.Inc()
}

func RecordTokenStreamed() {
	getMetrics().tokensStreamedTotal.Inc()
}

func RecordGeneration(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.generationTotal.WithLabelValues(provider, status).Inc()
	m.generationDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordPurgedDebates(count int64) {
	getMetrics().storePurgedTotal.Add(float64(count))
}
