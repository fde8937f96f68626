package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/support-assistant/internal/config"
	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/core/ports"
	"github.com/kirillkom/support-assistant/internal/observability/logging"
	"github.com/kirillkom/support-assistant/internal/observability/metrics"
)

const maxRequestBodyBytes = 64 << 10

type Router struct {
	cfg       config.Config
	sessions  ports.SessionService
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
	validator *requestValidator
	health    func() map[string]string
}

func NewRouter(
	cfg config.Config,
	sessions ports.SessionService,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Router{
		cfg:      cfg,
		sessions: sessions,
		metrics:  httpMetrics,
		logger:   logger,
	}
	if cfg.APIRequestValidation {
		validator, err := newRequestValidator(openAPIDocument)
		if err != nil {
			return nil, err
		}
		rt.validator = validator
	}
	return rt, nil
}

// WithHealthDetails adds fn's result to the /healthz body.
func (rt *Router) WithHealthDetails(fn func() map[string]string) *Router {
	rt.health = fn
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("POST /v1/sessions", rt.createSession)
	mux.HandleFunc("GET /v1/sessions/{id}", rt.getSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", rt.closeSession)
	mux.HandleFunc("POST /v1/sessions/{id}/load", rt.reloadDocument)
	mux.HandleFunc("POST /v1/sessions/{id}/messages", rt.askQuestion)
	mux.HandleFunc("GET /v1/sessions/{id}/messages", rt.listMessages)

	var handler http.Handler = mux
	if rt.validator != nil {
		handler = rt.validator.Middleware(handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = authMiddleware(rt.cfg.APIKey, handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(rt.logger, handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if rt.health != nil {
		body["breakers"] = rt.health()
	}
	writeJSON(w, http.StatusOK, body)
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	info, err := rt.sessions.Create(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	info, err := rt.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (rt *Router) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := rt.sessions.Close(r.Context(), r.PathValue("id")); err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) reloadDocument(w http.ResponseWriter, r *http.Request) {
	info, err := rt.sessions.Reload(r.Context(), r.PathValue("id"))
	if err != nil {
		// A failed fetch still reports the session so the client can show the error.
		if info != nil && domain.IsKind(err, domain.ErrFetch) {
			logging.FromContext(r.Context(), rt.logger).Warn("document_reload_failed", "session_id", info.ID, "error", err)
			writeJSON(w, http.StatusBadGateway, info)
			return
		}
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type askRequest struct {
	Text string `json:"text"`
}

func (rt *Router) askQuestion(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	turn, err := rt.sessions.Ask(r.Context(), r.PathValue("id"), req.Text)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (rt *Router) listMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := rt.sessions.History(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context(), rt.logger).Error("request_failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, r, status, err.Error())
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":      message,
		"request_id": requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
