package metrics

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

const namespace = "support_assistant"

// HTTPServerMetrics covers the API process: request metrics plus the
// pipeline events observed in-process.
type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	answersTotal      *prometheus.CounterVec
	answerDuration    *prometheus.HistogramVec
	rankedChunks      *prometheus.HistogramVec
	noContextTotal    *prometheus.CounterVec
	loadsTotal        *prometheus.CounterVec
	loadedChunks      prometheus.Histogram
	translationsTotal *prometheus.CounterVec
	promptTokensTotal *prometheus.CounterVec
	activeSessions    prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	answersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "answers_total",
			Help:      "Answered queries by ranking strategy and outcome.",
		},
		[]string{"service", "strategy", "outcome"},
	)
	answerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "answer_duration_seconds",
			Help:      "End-to-end answer duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"service", "strategy"},
	)
	rankedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "ranked_chunks",
			Help:      "Chunks passed to the prompt per answer.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service", "strategy"},
	)
	noContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "no_context_total",
			Help:      "Queries answered with the canned reply because nothing was ranked.",
		},
		[]string{"service", "strategy"},
	)
	loadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "document",
			Name:      "loads_total",
			Help:      "Document loads by status.",
		},
		[]string{"service", "status"},
	)
	loadedChunks := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "document",
			Name:        "chunks",
			Help:        "Chunks produced per successful load.",
			Buckets:     []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	translationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "translation",
			Name:      "queries_total",
			Help:      "Query translations by status.",
		},
		[]string{"service", "status"},
	)
	promptTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "prompt_tokens_total",
			Help:      "Prompt tokens sent to the completion service.",
		},
		[]string{"service", "strategy"},
	)
	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "active",
			Help:        "Sessions currently held by the API.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		answersTotal,
		answerDuration,
		rankedChunks,
		noContextTotal,
		loadsTotal,
		loadedChunks,
		translationsTotal,
		promptTokensTotal,
		activeSessions,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		service:           service,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		answersTotal:      answersTotal,
		answerDuration:    answerDuration,
		rankedChunks:      rankedChunks,
		noContextTotal:    noContextTotal,
		loadsTotal:        loadsTotal,
		loadedChunks:      loadedChunks,
		translationsTotal: translationsTotal,
		promptTokensTotal: promptTokensTotal,
		activeSessions:    activeSessions,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
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

// normalizePath folds session ids so label cardinality stays bounded.
func normalizePath(path string) string {
	const prefix = "/v1/sessions/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" {
		return path
	}
	_, tail, found := strings.Cut(rest, "/")
	if !found {
		return prefix + "{session_id}"
	}
	return prefix + "{session_id}/" + tail
}

// Observe implements the pipeline observer port.
func (m *HTTPServerMetrics) Observe(_ context.Context, event domain.PipelineEvent) {
	strategy := string(event.Strategy)
	if strategy == "" {
		strategy = "unknown"
	}
	switch event.Type {
	case domain.EventAnswered:
		m.answersTotal.WithLabelValues(m.service, strategy, "success").Inc()
		m.answerDuration.WithLabelValues(m.service, strategy).Observe(event.Duration.Seconds())
		m.rankedChunks.WithLabelValues(m.service, strategy).Observe(float64(event.Chunks))
		if event.Tokens > 0 {
			m.promptTokensTotal.WithLabelValues(m.service, strategy).Add(float64(event.Tokens))
		}
	case domain.EventAnswerFailed:
		m.answersTotal.WithLabelValues(m.service, strategy, string(event.FailureKind)).Inc()
		m.answerDuration.WithLabelValues(m.service, strategy).Observe(event.Duration.Seconds())
		if event.Tokens > 0 {
			m.promptTokensTotal.WithLabelValues(m.service, strategy).Add(float64(event.Tokens))
		}
	case domain.EventNoContext:
		m.noContextTotal.WithLabelValues(m.service, strategy).Inc()
	case domain.EventDocumentLoaded:
		m.loadsTotal.WithLabelValues(m.service, "success").Inc()
		m.loadedChunks.Observe(float64(event.Chunks))
	case domain.EventDocumentFailed:
		m.loadsTotal.WithLabelValues(m.service, "error").Inc()
	case domain.EventTranslated:
		m.translationsTotal.WithLabelValues(m.service, "success").Inc()
	case domain.EventTranslationFailed:
		m.translationsTotal.WithLabelValues(m.service, "error").Inc()
	}
}

func (m *HTTPServerMetrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
