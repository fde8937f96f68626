package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/support-assistant/internal/config"
	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/core/ports"
	"github.com/kirillkom/support-assistant/internal/core/usecase"
	"github.com/kirillkom/support-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/support-assistant/internal/infrastructure/document"
	"github.com/kirillkom/support-assistant/internal/infrastructure/embedding"
	"github.com/kirillkom/support-assistant/internal/infrastructure/langdetect"
	"github.com/kirillkom/support-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/support-assistant/internal/infrastructure/llm/openaicompat"
	natsbus "github.com/kirillkom/support-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/support-assistant/internal/infrastructure/ranking"
	"github.com/kirillkom/support-assistant/internal/infrastructure/repository/memory"
	"github.com/kirillkom/support-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/support-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/support-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/support-assistant/internal/infrastructure/tokenizer"
	"github.com/kirillkom/support-assistant/internal/infrastructure/translation/google"
	"github.com/kirillkom/support-assistant/internal/observability/logging"
	"github.com/kirillkom/support-assistant/internal/observability/metrics"
)

// breakerOperations are the executor operations reported on /healthz.
var breakerOperations = []string{
	"openai.chat",
	"ollama.chat",
	"ollama.embed",
	"document.fetch",
	"google.translate",
}

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Sessions *usecase.SessionService
	Metrics  *metrics.HTTPServerMetrics
	Events   *natsbus.EventBus

	executor *resilience.Executor
	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics.NewHTTPServerMetrics("api"),
		executor: resilience.NewExecutor(ResilienceConfig(cfg)),
	}

	observers := ports.MultiObserver{logging.NewEventLogger(logger), app.Metrics}
	if cfg.EventsEnabled {
		bus, err := NewEventBus(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("init event bus: %w", err)
		}
		app.Events = bus
		app.closeFns = append(app.closeFns, bus.Close)
		observers = append(observers, bus)
	}

	history, err := app.historyStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	factory, err := app.pipelineFactory(observers)
	if err != nil {
		app.Close()
		return nil, err
	}

	source, err := app.documentSource()
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Sessions = usecase.NewSessionService(source, history, factory, cfg.DocumentURL)
	return app, nil
}

func (a *App) documentSource() (ports.DocumentSource, error) {
	var base ports.DocumentSource
	if localfs.IsFileURL(a.Config.DocumentURL) {
		local, err := localfs.New(a.Config.DocumentDir)
		if err != nil {
			return nil, fmt.Errorf("init document dir: %w", err)
		}
		base = local
	} else {
		base = document.NewHTTPSource(time.Duration(a.Config.DocumentFetchTimeoutSeconds)*time.Second, a.executor)
	}
	return document.NewCachedSource(base, a.Config.DocumentCacheSize, time.Duration(a.Config.DocumentCacheTTLSeconds)*time.Second), nil
}

// ResilienceConfig maps the retry and breaker settings onto the executor policy.
func ResilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.RetryMaxAttempts,
		RetryInitialBackoff:     time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:         time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,
		RetryMultiplier:         2.0,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(cfg.BreakerOpenTimeoutSeconds) * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// NewEventBus connects the NATS publisher. Publishing never retries so a
// slow bus cannot hold up a turn.
func NewEventBus(cfg config.Config, logger *slog.Logger) (*natsbus.EventBus, error) {
	return natsbus.New(cfg.NATSURL, cfg.NATSSubject, natsbus.Options{
		ResilienceExecutor: resilience.NewExecutor(ResilienceConfig(cfg).SingleAttempt()),
		Logger:             logger,
	})
}

func (a *App) historyStore(ctx context.Context) (ports.HistoryStore, error) {
	if a.Config.HistoryBackend != "postgres" {
		return memory.NewHistoryStore(), nil
	}
	db, err := postgres.OpenDB(ctx, a.Config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closeFns = append(a.closeFns, func() { _ = db.Close() })
	repo := postgres.NewHistoryRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func (a *App) pipelineFactory(observer ports.PipelineObserver) (usecase.PipelineFactory, error) {
	cfg := a.Config

	chunker, err := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	strategy, _ := domain.ParseRankingStrategy(cfg.RankingStrategy)
	var ollamaClient *ollama.Client
	if cfg.EmbedderBackend == "ollama" || cfg.LLMBackend == "ollama" {
		ollamaClient = ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, a.executor)
	}

	var embedder ports.Embedder
	if strategy == domain.StrategyDense {
		var base ports.Embedder = embedding.NewHashingEmbedder(cfg.EmbeddingDim)
		if cfg.EmbedderBackend == "ollama" {
			base = ollama.NewEmbedder(ollamaClient)
		}
		cached, err := embedding.NewCachedEmbedder(base, cfg.EmbeddingCacheSize)
		if err != nil {
			return nil, err
		}
		embedder = cached
	}
	ranker, err := ranking.NewRanker(strategy, embedder)
	if err != nil {
		return nil, err
	}

	var translator *usecase.Translator
	if cfg.TranslationEnabled {
		translator = usecase.NewTranslator(
			langdetect.New(),
			google.New(cfg.TranslationURL, time.Duration(cfg.TranslationTimeoutSeconds)*time.Second, a.executor),
			usecase.TranslatorConfig{Languages: cfg.Languages(), Target: cfg.TranslationTarget},
			observer,
		)
	}

	composer := usecase.NewPromptComposer(usecase.PromptTemplate{
		Role:             cfg.AssistantRole,
		SystemPrompt:     cfg.SystemPrompt,
		MinSentences:     cfg.PromptMinSentences,
		MaxSentences:     cfg.PromptMaxSentences,
		FallbackContact:  cfg.FallbackContact,
		MaxContextTokens: cfg.MaxContextTokens,
	}, tokenizer.NewCounter(cfg.TokenizerEncoding, a.Logger))

	timeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second
	var completer ports.ChatCompleter
	if cfg.LLMBackend == "ollama" {
		completer = ollama.NewChatCompleter(ollamaClient)
	} else {
		completer = openaicompat.New(openaicompat.Options{
			BaseURL:        cfg.LLMBaseURL,
			APIKey:         cfg.LLMAPIKey,
			Model:          cfg.LLMModel,
			RequestTimeout: timeout,
			Executor:       a.executor,
		})
	}
	generator := usecase.NewAnswerGenerator(completer, composer, timeout)

	pipelineCfg := domain.PipelineConfig{
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		TopK:           cfg.RAGTopK,
		Strategy:       strategy,
		RequireContext: cfg.RequireContext,
		NoContextReply: cfg.NoContextReply,
	}
	deps := usecase.PipelineDeps{
		Chunker:    chunker,
		Translator: translator,
		Ranker:     ranker,
		Composer:   composer,
		Generator:  generator,
		Observer:   observer,
	}
	return func(sessionID string) *usecase.Pipeline {
		return usecase.NewPipeline(sessionID, deps, pipelineCfg)
	}, nil
}

// BreakerStates reports the circuit state of every outbound dependency.
func (a *App) BreakerStates() map[string]string {
	out := make(map[string]string, len(breakerOperations))
	for _, op := range breakerOperations {
		out[op] = a.executor.BreakerState(op)
	}
	return out
}

// RunPurger closes idle sessions until ctx is done.
func (a *App) RunPurger(ctx context.Context, interval time.Duration) {
	ttl := time.Duration(a.Config.SessionIdleTTLMinutes) * time.Minute
	if ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if closed := a.Sessions.PurgeIdle(ctx, ttl); closed > 0 {
				a.Logger.Info("idle_sessions_purged", "count", closed)
			}
			a.Metrics.SetActiveSessions(a.Sessions.Count())
		}
	}
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
