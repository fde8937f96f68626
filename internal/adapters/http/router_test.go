package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/support-assistant/internal/config"
	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/observability/metrics"
)

type sessionServiceFake struct {
	info      *domain.SessionInfo
	createErr error
	getErr    error
	reloadErr error
	askErr    error
	closeErr  error
	history   []domain.ChatMessage

	askedText string
}

func (f *sessionServiceFake) Create(context.Context) (*domain.SessionInfo, error) {
	return f.info, f.createErr
}

func (f *sessionServiceFake) Get(context.Context, string) (*domain.SessionInfo, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.info, nil
}

func (f *sessionServiceFake) Reload(context.Context, string) (*domain.SessionInfo, error) {
	return f.info, f.reloadErr
}

func (f *sessionServiceFake) Ask(_ context.Context, _ string, text string) (*domain.TurnResult, error) {
	f.askedText = text
	if f.askErr != nil {
		return nil, f.askErr
	}
	out := domain.Succeeded("Refunds are accepted within 30 days.")
	return &domain.TurnResult{
		User:      domain.ChatMessage{Sender: domain.SenderUser, Text: text},
		Assistant: domain.ChatMessage{Sender: domain.SenderAssistant, Text: out.Render()},
		Outcome:   out,
	}, nil
}

func (f *sessionServiceFake) History(context.Context, string) ([]domain.ChatMessage, error) {
	return f.history, f.getErr
}

func (f *sessionServiceFake) Close(context.Context, string) error {
	return f.closeErr
}

func readyInfo() *domain.SessionInfo {
	return &domain.SessionInfo{ID: "s-1", State: domain.StateReady, ChunkCount: 4}
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.APIRateLimitRPS = 0
	cfg.APIMaxInFlight = 0
	return cfg
}

func newTestHandler(t *testing.T, cfg config.Config, svc *sessionServiceFake) http.Handler {
	t.Helper()
	rt, err := NewRouter(cfg, svc, metrics.NewHTTPServerMetrics("api"), nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return rt.Handler()
}

func postJSON(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(t, testConfig(), &sessionServiceFake{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id header")
	}
}

func TestHealthzIncludesBreakerStates(t *testing.T) {
	rt, err := NewRouter(testConfig(), &sessionServiceFake{}, nil, nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	handler := rt.WithHealthDetails(func() map[string]string {
		return map[string]string{"openai.chat": "open"}
	}).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !strings.Contains(res.Body.String(), `"openai.chat":"open"`) {
		t.Fatalf("expected breaker state in body, got %s", res.Body.String())
	}
}

func TestCreateSessionReturns201EvenWhenLoadFailed(t *testing.T) {
	svc := &sessionServiceFake{info: &domain.SessionInfo{ID: "s-1", State: domain.StateFailed, Error: "document fetch failed"}}
	handler := newTestHandler(t, testConfig(), svc)

	res := postJSON(handler, "/v1/sessions", "")
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var info domain.SessionInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if info.State != domain.StateFailed || info.Error == "" {
		t.Fatalf("expected failed state with error, got %+v", info)
	}
}

func TestAskQuestionReturnsTurn(t *testing.T) {
	svc := &sessionServiceFake{info: readyInfo()}
	handler := newTestHandler(t, testConfig(), svc)

	res := postJSON(handler, "/v1/sessions/s-1/messages", `{"text":"What is the refund window?"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if svc.askedText != "What is the refund window?" {
		t.Fatalf("unexpected text forwarded: %q", svc.askedText)
	}
	var turn domain.TurnResult
	if err := json.NewDecoder(res.Body).Decode(&turn); err != nil {
		t.Fatalf("decode turn: %v", err)
	}
	if !turn.Outcome.OK() || turn.Assistant.Sender != domain.SenderAssistant {
		t.Fatalf("unexpected turn: %+v", turn)
	}
}

func TestAskQuestionValidatesBody(t *testing.T) {
	handler := newTestHandler(t, testConfig(), &sessionServiceFake{info: readyInfo()})

	for _, body := range []string{`{"text":""}`, `{}`, `{"text":"hi","extra":1}`, `{"text":42}`} {
		res := postJSON(handler, "/v1/sessions/s-1/messages", body)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, res.Code)
		}
	}
}

func TestAskQuestionMapsDomainInvalidInputTo400WithoutValidator(t *testing.T) {
	cfg := testConfig()
	cfg.APIRequestValidation = false
	svc := &sessionServiceFake{askErr: domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("text is required"))}
	handler := newTestHandler(t, cfg, svc)

	res := postJSON(handler, "/v1/sessions/s-1/messages", `{"text":"   "}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAskQuestionReturns409WhenNotReady(t *testing.T) {
	svc := &sessionServiceFake{askErr: domain.WrapError(domain.ErrNotReady, "ask", errors.New("state failed"))}
	handler := newTestHandler(t, testConfig(), svc)

	res := postJSON(handler, "/v1/sessions/s-1/messages", `{"text":"hello"}`)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] == "" || body["request_id"] == "" {
		t.Fatalf("expected error and request id, got %v", body)
	}
}

func TestGetSessionReturns404ForUnknownID(t *testing.T) {
	svc := &sessionServiceFake{getErr: domain.WrapError(domain.ErrSessionNotFound, "lookup", errors.New("id missing"))}
	handler := newTestHandler(t, testConfig(), svc)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sessions/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestReloadDocumentReturns502WithSessionOnFetchFailure(t *testing.T) {
	svc := &sessionServiceFake{
		info:      &domain.SessionInfo{ID: "s-1", State: domain.StateFailed, Error: "document fetch failed: 503"},
		reloadErr: domain.WrapError(domain.ErrFetch, "load document", errors.New("503")),
	}
	handler := newTestHandler(t, testConfig(), svc)

	res := postJSON(handler, "/v1/sessions/s-1/load", "")
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
	var info domain.SessionInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if info.State != domain.StateFailed {
		t.Fatalf("expected failed session in body, got %+v", info)
	}
}

func TestReloadDocumentReturns409WhileLoading(t *testing.T) {
	svc := &sessionServiceFake{reloadErr: domain.WrapError(domain.ErrLoadInProgress, "reload", errors.New("busy"))}
	handler := newTestHandler(t, testConfig(), svc)

	res := postJSON(handler, "/v1/sessions/s-1/load", "")
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestCloseSessionAndListMessages(t *testing.T) {
	svc := &sessionServiceFake{info: readyInfo()}
	handler := newTestHandler(t, testConfig(), svc)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sessions/s-1/messages", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"messages":[]`) {
		t.Fatalf("expected empty messages array, got %s", res.Body.String())
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/sessions/s-1", nil))
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = "secret"
	handler := newTestHandler(t, cfg, &sessionServiceFake{info: readyInfo()})

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/s-1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("healthz must bypass auth, got %d", res.Code)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	handler := newTestHandler(t, testConfig(), &sessionServiceFake{info: readyInfo()})
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s-1", nil)
	req.Header.Set(requestIDHeader, "req-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected request id echo, got %q", got)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrUnauthorized, "op", errors.New("x")), http.StatusUnauthorized},
		{domain.WrapError(domain.ErrSessionNotFound, "op", errors.New("x")), http.StatusNotFound},
		{domain.WrapError(domain.ErrNotReady, "op", errors.New("x")), http.StatusConflict},
		{domain.WrapError(domain.ErrLoadInProgress, "op", errors.New("x")), http.StatusConflict},
		{domain.WrapError(domain.ErrFetch, "op", errors.New("x")), http.StatusBadGateway},
		{domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	cfg := testConfig()
	cfg.APIRateLimitRPS = 1
	cfg.APIRateLimitBurst = 1
	handler := newTestHandler(t, cfg, &sessionServiceFake{info: readyInfo()})

	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, httptest.NewRequest(http.MethodGet, "/v1/sessions/s-1", nil))
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, httptest.NewRequest(http.MethodGet, "/v1/sessions/s-1", nil))
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s-1", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodGet, "/v1/sessions/s-1", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated backpressure gate, got %d", res2.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(bytes.NewReader(res2.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatalf("decode overload response: %v", err)
	}
	if resp["error"] == "" {
		t.Fatalf("expected overload error message in response")
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("expected first request to finish with 204, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("first request did not finish")
	}
}
