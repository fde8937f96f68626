package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

// WorkerMetrics is exported by the telemetry worker that consumes pipeline
// events from the bus.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	eventsTotal     *prometheus.CounterVec
	decodeErrors    prometheus.Counter
	answerDuration  *prometheus.HistogramVec
	failuresTotal   *prometheus.CounterVec
	eventLag        *prometheus.HistogramVec
	handlerInFlight prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "events_total",
			Help:      "Pipeline events consumed by type.",
		},
		[]string{"service", "type", "strategy"},
	)
	decodeErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "decode_errors_total",
			Help:        "Messages that could not be decoded as pipeline events.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	answerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "answer_duration_seconds",
			Help:      "Answer duration reported by API events, by status.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"service", "status"},
	)
	failuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "answer_failures_total",
			Help:      "Failed answers by failure kind.",
		},
		[]string{"service", "kind"},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between event emission and consumption.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service"},
	)
	handlerInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "events_in_flight",
			Help:      "Number of events being handled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(eventsTotal, decodeErrors, answerDuration, failuresTotal, eventLag, handlerInFlight)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		eventsTotal:     eventsTotal,
		decodeErrors:    decodeErrors,
		answerDuration:  answerDuration,
		failuresTotal:   failuresTotal,
		eventLag:        eventLag,
		handlerInFlight: handlerInFlight,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WorkerMetrics) StartEvent() {
	m.handlerInFlight.Inc()
}

func (m *WorkerMetrics) FinishEvent(event domain.PipelineEvent, now time.Time) {
	defer m.handlerInFlight.Dec()

	strategy := string(event.Strategy)
	if strategy == "" {
		strategy = "none"
	}
	m.eventsTotal.WithLabelValues(m.service, string(event.Type), strategy).Inc()

	switch event.Type {
	case domain.EventAnswered:
		m.answerDuration.WithLabelValues(m.service, "success").Observe(event.Duration.Seconds())
	case domain.EventAnswerFailed:
		m.answerDuration.WithLabelValues(m.service, "error").Observe(event.Duration.Seconds())
		m.failuresTotal.WithLabelValues(m.service, string(event.FailureKind)).Inc()
	}

	if !event.At.IsZero() {
		if lag := now.Sub(event.At); lag >= 0 {
			m.eventLag.WithLabelValues(m.service).Observe(lag.Seconds())
		}
	}
}

func (m *WorkerMetrics) RecordDecodeError() {
	m.decodeErrors.Inc()
}
