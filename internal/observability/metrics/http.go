package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	pipelineRunsTotal  *prometheus.CounterVec
	pipelineRetrieved  *prometheus.HistogramVec
	pipelineDuration   *prometheus.HistogramVec
	queryDroppedTotal  *prometheus.CounterVec
	selectionsTotal    *prometheus.CounterVec
	rewriteUsedTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gs",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gs",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gs",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pipelineRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gs",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total completed recommendation runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	pipelineRetrieved := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gs",
			Subsystem: "pipeline",
			Name:      "retrieved_items",
			Help:      "Distribution of catalogue items retrieved per run.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"service"},
	)
	pipelineDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gs",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Recommendation pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	queryDroppedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gs",
			Subsystem: "query",
			Name:      "dropped_tokens_total",
			Help:      "Total tags dropped during query composition by reason.",
		},
		[]string{"service", "reason"},
	)
	selectionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gs",
			Subsystem: "selector",
			Name:      "selections_total",
			Help:      "Total next-item selections served.",
		},
		[]string{"service"},
	)
	rewriteUsedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gs",
			Subsystem: "query",
			Name:      "rewrite_used_total",
			Help:      "Total runs where a model rewrite survived sanitization.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		pipelineRunsTotal,
		pipelineRetrieved,
		pipelineDuration,
		queryDroppedTotal,
		selectionsTotal,
		rewriteUsedTotal,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		pipelineRunsTotal: pipelineRunsTotal,
		pipelineRetrieved: pipelineRetrieved,
		pipelineDuration:  pipelineDuration,
		queryDroppedTotal: queryDroppedTotal,
		selectionsTotal:   selectionsTotal,
		rewriteUsedTotal:  rewriteUsedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
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
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/recommendations/"):
		return "/v1/recommendations/{session_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordPipelineRun(service, outcome string, retrieved int, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.pipelineRunsTotal.WithLabelValues(service, outcome).Inc()
	m.pipelineRetrieved.WithLabelValues(service).Observe(float64(retrieved))
	m.pipelineDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordDroppedTokens(service, reason string, count int) {
	if count <= 0 {
		return
	}
	m.queryDroppedTotal.WithLabelValues(service, reason).Add(float64(count))
}

func (m *HTTPServerMetrics) RecordSelection(service string) {
	m.selectionsTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordRewriteUsed(service string) {
	m.rewriteUsedTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
