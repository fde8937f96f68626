package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

func TestNormalizePathFoldsSessionIDs(t *testing.T) {
	cases := map[string]string{
		"/healthz":                  "/healthz",
		"/v1/sessions":              "/v1/sessions",
		"/v1/sessions/abc":          "/v1/sessions/{session_id}",
		"/v1/sessions/abc/messages": "/v1/sessions/{session_id}/messages",
		"/v1/sessions/abc/load":     "/v1/sessions/{session_id}/load",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestObserveCountsAnswersByOutcome(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	ctx := context.Background()

	m.Observe(ctx, domain.PipelineEvent{Type: domain.EventAnswered, Strategy: domain.StrategyHybrid, Chunks: 2, Tokens: 120})
	m.Observe(ctx, domain.PipelineEvent{Type: domain.EventAnswerFailed, Strategy: domain.StrategyHybrid, FailureKind: domain.FailureTimeout})
	m.Observe(ctx, domain.PipelineEvent{Type: domain.EventDocumentLoaded, Chunks: 12})

	if got := testutil.ToFloat64(m.answersTotal.WithLabelValues("api", "hybrid", "success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.answersTotal.WithLabelValues("api", "hybrid", "timeout")); got != 1 {
		t.Fatalf("expected 1 timeout, got %v", got)
	}
	if got := testutil.ToFloat64(m.promptTokensTotal.WithLabelValues("api", "hybrid")); got != 120 {
		t.Fatalf("expected 120 prompt tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.loadsTotal.WithLabelValues("api", "success")); got != 1 {
		t.Fatalf("expected 1 load, got %v", got)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/sessions/xyz/messages", nil))

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodPost, "/v1/sessions/{session_id}/messages", "409"))
	if got != 1 {
		t.Fatalf("expected one 409 request, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "support_assistant_http_requests_total") {
		t.Fatalf("metrics output missing request counter")
	}
}

func TestWorkerMetricsFinishEvent(t *testing.T) {
	m := NewWorkerMetrics("worker")
	at := time.Now().Add(-time.Second)

	m.StartEvent()
	m.FinishEvent(domain.PipelineEvent{Type: domain.EventAnswerFailed, Strategy: domain.StrategyDense, FailureKind: domain.FailureUnavailable, At: at}, time.Now())
	m.RecordDecodeError()

	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues("worker", "answer_failed", "dense")); got != 1 {
		t.Fatalf("expected 1 event, got %v", got)
	}
	if got := testutil.ToFloat64(m.failuresTotal.WithLabelValues("worker", "unavailable")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.handlerInFlight); got != 0 {
		t.Fatalf("expected no in-flight events, got %v", got)
	}
	if got := testutil.ToFloat64(m.decodeErrors); got != 1 {
		t.Fatalf("expected 1 decode error, got %v", got)
	}
}
