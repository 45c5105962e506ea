package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

type RetrievalMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	sourceRequestsTotal *prometheus.CounterVec
	sourceLatency       *prometheus.HistogramVec
	sourceFailuresTotal *prometheus.CounterVec
	strategyTotal       *prometheus.CounterVec
	fusedResults        *prometheus.HistogramVec
	confidence          *prometheus.HistogramVec
}

func NewRetrievalMetrics(service string) *RetrievalMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybrid",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hybrid",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hybrid",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	sourceRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybrid",
			Subsystem: "retrieval",
			Name:      "source_requests_total",
			Help:      "Total backend searches during fan-out by outcome.",
		},
		[]string{"service", "source", "status"},
	)
	sourceLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hybrid",
			Subsystem: "retrieval",
			Name:      "source_latency_seconds",
			Help:      "Per-source search latency in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"service", "source"},
	)
	sourceFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybrid",
			Subsystem: "retrieval",
			Name:      "source_failures_total",
			Help:      "Total backend failures during fan-out by kind.",
		},
		[]string{"service", "source", "kind"},
	)
	strategyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybrid",
			Subsystem: "retrieval",
			Name:      "strategy_requests_total",
			Help:      "Total retrieval requests by fusion strategy.",
		},
		[]string{"service", "strategy"},
	)
	fusedResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hybrid",
			Subsystem: "retrieval",
			Name:      "fused_results",
			Help:      "Distribution of fused results per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)
	confidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hybrid",
			Subsystem: "retrieval",
			Name:      "confidence",
			Help:      "Distribution of retrieval confidence scores.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		sourceRequestsTotal,
		sourceLatency,
		sourceFailuresTotal,
		strategyTotal,
		fusedResults,
		confidence,
	)

	return &RetrievalMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		sourceRequestsTotal: sourceRequestsTotal,
		sourceLatency:       sourceLatency,
		sourceFailuresTotal: sourceFailuresTotal,
		strategyTotal:       strategyTotal,
		fusedResults:        fusedResults,
		confidence:          confidence,
	}
}

func (m *RetrievalMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *RetrievalMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// RecordOutcome observes one completed retrieval: per-source latency
// and status, strategy usage, result count and confidence.
func (m *RetrievalMetrics) RecordOutcome(service string, outcome *domain.Outcome) {
	failed := make(map[domain.Source]string, len(outcome.PartialFailures))
	for _, failure := range outcome.PartialFailures {
		failed[failure.Source] = failure.Kind
	}

	for source, latency := range outcome.SourceLatency {
		m.sourceLatency.WithLabelValues(service, source.String()).Observe(latency.Seconds())
		if kind, ok := failed[source]; ok {
			m.sourceRequestsTotal.WithLabelValues(service, source.String(), "error").Inc()
			m.sourceFailuresTotal.WithLabelValues(service, source.String(), kind).Inc()
			continue
		}
		m.sourceRequestsTotal.WithLabelValues(service, source.String(), "success").Inc()
	}

	m.strategyTotal.WithLabelValues(service, outcome.Strategy).Inc()
	m.fusedResults.WithLabelValues(service).Observe(float64(len(outcome.Results)))
	m.confidence.WithLabelValues(service).Observe(outcome.Confidence)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
