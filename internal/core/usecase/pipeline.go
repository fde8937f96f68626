package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/core/ports"
)

const defaultTopK = 3

type PipelineDeps struct {
	Chunker    ports.Chunker
	Translator *Translator
	Ranker     ports.Ranker
	Composer   *PromptComposer
	Generator  *AnswerGenerator
	Observer   ports.PipelineObserver
}

// Pipeline owns one session's chunk set and answers queries against it.
// State moves empty -> loading -> ready|failed; failed and ready may load again.
type Pipeline struct {
	sessionID string
	cfg       domain.PipelineConfig
	deps      PipelineDeps
	now       func() time.Time

	mu        sync.RWMutex
	state     domain.PipelineState
	chunks    []string
	loadErr   error
	loadStart time.Time
}

func NewPipeline(sessionID string, deps PipelineDeps, cfg domain.PipelineConfig) *Pipeline {
	if deps.Observer == nil {
		deps.Observer = ports.NoopObserver
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if deps.Ranker != nil {
		cfg.Strategy = deps.Ranker.Strategy()
	}
	return &Pipeline{
		sessionID: sessionID,
		cfg:       cfg,
		deps:      deps,
		now:       time.Now,
		state:     domain.StateEmpty,
	}
}

func (p *Pipeline) State() domain.PipelineState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Pipeline) ChunkCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.chunks)
}

// LoadError is the reason of the last failed load, nil otherwise.
func (p *Pipeline) LoadError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loadErr
}

// BeginLoad moves the pipeline into loading. Only one load may run at a time.
func (p *Pipeline) BeginLoad() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == domain.StateLoading {
		return domain.WrapError(domain.ErrLoadInProgress, "begin load", fmt.Errorf("session %s", p.sessionID))
	}
	p.state = domain.StateLoading
	p.loadErr = nil
	p.loadStart = p.now()
	return nil
}

// FailLoad records a load failure, e.g. an unreachable document.
func (p *Pipeline) FailLoad(ctx context.Context, err error) {
	p.mu.Lock()
	p.state = domain.StateFailed
	p.chunks = nil
	p.loadErr = err
	started := p.loadStart
	p.mu.Unlock()

	p.deps.Observer.Observe(ctx, domain.PipelineEvent{
		Type:      domain.EventDocumentFailed,
		SessionID: p.sessionID,
		Detail:    err.Error(),
		Duration:  p.now().Sub(started),
		At:        p.now().UTC(),
	})
}

// CompleteLoad chunks text and replaces the chunk set. It must follow BeginLoad.
func (p *Pipeline) CompleteLoad(ctx context.Context, text string) error {
	chunks := p.deps.Chunker.Split(text)
	if len(chunks) == 0 {
		err := domain.WrapError(domain.ErrInvalidInput, "load document", fmt.Errorf("document has no text"))
		p.FailLoad(ctx, err)
		return err
	}

	p.mu.Lock()
	p.state = domain.StateReady
	p.chunks = chunks
	p.loadErr = nil
	started := p.loadStart
	p.mu.Unlock()

	p.deps.Observer.Observe(ctx, domain.PipelineEvent{
		Type:      domain.EventDocumentLoaded,
		SessionID: p.sessionID,
		Strategy:  p.cfg.Strategy,
		Chunks:    len(chunks),
		Duration:  p.now().Sub(started),
		At:        p.now().UTC(),
	})
	return nil
}

// Load is BeginLoad followed by CompleteLoad for callers that already hold the text.
func (p *Pipeline) Load(ctx context.Context, text string) error {
	if err := p.BeginLoad(); err != nil {
		return err
	}
	return p.CompleteLoad(ctx, text)
}

// Answer runs translate, rank, compose and generate for one query. It never
// panics or returns an error; failures are reported in the Outcome.
func (p *Pipeline) Answer(ctx context.Context, query string) (out domain.Outcome) {
	ctx = WithSessionID(ctx, p.sessionID)
	started := p.now()
	promptTokens := 0
	defer func() {
		if r := recover(); r != nil {
			out = domain.Failed(domain.FailureInternal, fmt.Sprintf("unexpected error: %v", r))
		}
		p.report(ctx, out, started, promptTokens)
	}()

	p.mu.RLock()
	state := p.state
	chunks := p.chunks
	p.mu.RUnlock()
	if state != domain.StateReady {
		return domain.Failed(domain.FailureNotReady, fmt.Sprintf("document is %s", state))
	}

	normalized, translated := p.deps.Translator.Normalize(ctx, query)

	ranked, err := p.deps.Ranker.Rank(ctx, normalized, chunks, p.cfg.TopK)
	if err != nil {
		out = domain.Failed(domain.FailureRanking, err.Error())
		out.Query, out.Translated = normalized, translated
		return out
	}

	if len(ranked) == 0 && p.cfg.RequireContext {
		p.deps.Observer.Observe(ctx, domain.PipelineEvent{
			Type:      domain.EventNoContext,
			SessionID: p.sessionID,
			Strategy:  p.cfg.Strategy,
			At:        p.now().UTC(),
		})
		out = domain.Succeeded(p.noContextReply())
		out.Query, out.Translated = normalized, translated
		return out
	}

	selected := p.deps.Composer.Fit(domain.ChunkTexts(ranked))
	prompt := p.deps.Composer.Compose(normalized, selected)
	promptTokens = p.deps.Composer.Tokens(prompt)
	out = p.deps.Generator.Generate(ctx, prompt)
	out.Sources = ranked[:len(selected)]
	out.Query = normalized
	out.Translated = translated
	out.Grounded = out.OK() && len(selected) > 0
	return out
}

func (p *Pipeline) noContextReply() string {
	if reply := strings.TrimSpace(p.cfg.NoContextReply); reply != "" {
		return reply
	}
	return "I couldn't find information about that in our documentation. Please contact support for help."
}

func (p *Pipeline) report(ctx context.Context, out domain.Outcome, started time.Time, promptTokens int) {
	event := domain.PipelineEvent{
		Type:      domain.EventAnswered,
		SessionID: p.sessionID,
		Strategy:  p.cfg.Strategy,
		Chunks:    len(out.Sources),
		Tokens:    promptTokens,
		Duration:  p.now().Sub(started),
		At:        p.now().UTC(),
	}
	if !out.OK() {
		event.Type = domain.EventAnswerFailed
		event.FailureKind = out.Failure.Kind
		event.Detail = out.Failure.Detail
	}
	p.deps.Observer.Observe(ctx, event)
}
