package bootstrap

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/support-assistant/internal/config"
	"github.com/kirillkom/support-assistant/internal/core/domain"
)

func offlineConfig(docURL, llmURL string) config.Config {
	cfg := config.Defaults()
	cfg.DocumentURL = docURL
	cfg.LLMBaseURL = llmURL
	cfg.LLMAPIKey = "test"
	cfg.TokenizerEncoding = "words"
	cfg.TranslationEnabled = false
	cfg.ChunkSize = 10
	cfg.RankingStrategy = string(domain.StrategyHybrid)
	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.ChunkOverlap = cfg.ChunkSize
	if _, err := New(context.Background(), cfg, nil); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestAppAnswersFromDocument(t *testing.T) {
	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Our refund window is 30 days. Shipping takes 5 business days."))
	}))
	defer docServer.Close()

	var prompt string
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		prompt = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"llama3-8b-8192","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Refunds are accepted within 30 days."}}]}`))
	}))
	defer llmServer.Close()

	app, err := New(context.Background(), offlineConfig(docServer.URL+"/faq.txt", llmServer.URL), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	ctx := context.Background()
	info, err := app.Sessions.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if info.State != domain.StateReady || info.ChunkCount != 2 {
		t.Fatalf("expected ready session with 2 chunks, got %+v", info)
	}

	turn, err := app.Sessions.Ask(ctx, info.ID, "How long is the refund window?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !turn.Outcome.OK() || turn.Assistant.Text != "Refunds are accepted within 30 days." {
		t.Fatalf("unexpected turn: %+v", turn)
	}
	if !strings.Contains(prompt, "Our refund window is 30 days.") {
		t.Fatalf("expected the refund chunk in the prompt, got %s", prompt)
	}

	history, err := app.Sessions.History(ctx, info.ID)
	if err != nil || len(history) != 2 {
		t.Fatalf("expected two history messages, got %d (%v)", len(history), err)
	}

	states := app.BreakerStates()
	if states["openai.chat"] != "closed" {
		t.Fatalf("expected closed breaker, got %v", states)
	}
}

func TestAppLoadsLocalDocument(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "faq.md"), []byte("# FAQ\nOur refund window is 30 days."), 0o600); err != nil {
		t.Fatalf("write document: %v", err)
	}
	cfg := offlineConfig("file:///faq.md", "http://127.0.0.1:1")
	cfg.DocumentDir = dir

	app, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	info, err := app.Sessions.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if info.State != domain.StateReady || info.ChunkCount != 1 {
		t.Fatalf("expected ready session with 1 chunk, got %+v", info)
	}
}

func TestResilienceConfigMapsSettings(t *testing.T) {
	cfg := config.Defaults()
	cfg.RetryMaxAttempts = 5
	cfg.RetryInitialBackoffMS = 50
	cfg.BreakerOpenTimeoutSeconds = 7

	got := ResilienceConfig(cfg)
	if got.RetryMaxAttempts != 5 || got.RetryInitialBackoff != 50*time.Millisecond || got.BreakerOpenTimeout != 7*time.Second {
		t.Fatalf("unexpected resilience config: %+v", got)
	}
	if single := got.SingleAttempt(); single.RetryMaxAttempts != 1 || !single.BreakerEnabled {
		t.Fatalf("unexpected single attempt config: %+v", single)
	}
}
