package usecase

import (
	"context"
	"sync"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

type completerFake struct {
	mu       sync.Mutex
	reply    string
	err      error
	calls    int
	messages []domain.PromptMessage
	block    bool
}

func (f *completerFake) Complete(ctx context.Context, messages []domain.PromptMessage) (string, error) {
	f.mu.Lock()
	f.calls++
	f.messages = messages
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *completerFake) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1].Content
}

type detectorFake struct {
	lang string
	err  error
}

func (f detectorFake) Detect(string) (string, error) {
	return f.lang, f.err
}

type translationFake struct {
	out    string
	err    error
	calls  int
	target string
}

func (f *translationFake) Translate(_ context.Context, _ string, target string) (string, error) {
	f.calls++
	f.target = target
	return f.out, f.err
}

type recordingObserver struct {
	mu     sync.Mutex
	events []domain.PipelineEvent
}

func (o *recordingObserver) Observe(_ context.Context, event domain.PipelineEvent) {
	o.mu.Lock()
	o.events = append(o.events, event)
	o.mu.Unlock()
}

func (o *recordingObserver) types() []domain.EventType {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.EventType, 0, len(o.events))
	for _, event := range o.events {
		out = append(out, event.Type)
	}
	return out
}

func (o *recordingObserver) has(eventType domain.EventType) bool {
	for _, t := range o.types() {
		if t == eventType {
			return true
		}
	}
	return false
}

type sourceFake struct {
	mu          sync.Mutex
	texts       []string
	errs        []error
	calls       int
	invalidated []string
}

func (f *sourceFake) Invalidate(url string) {
	f.mu.Lock()
	f.invalidated = append(f.invalidated, url)
	f.mu.Unlock()
}

func (f *sourceFake) invalidatedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalidated...)
}

func (f *sourceFake) Fetch(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	var (
		text string
		err  error
	)
	if i < len(f.texts) {
		text = f.texts[i]
	} else if len(f.texts) > 0 {
		text = f.texts[len(f.texts)-1]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return text, err
}

type rankerFake struct {
	ranked []domain.RankedChunk
	err    error
	panic  bool
	seen   []string
}

func (f *rankerFake) Strategy() domain.RankingStrategy { return domain.StrategySparse }

func (f *rankerFake) Rank(_ context.Context, _ string, chunks []string, _ int) ([]domain.RankedChunk, error) {
	f.seen = chunks
	if f.panic {
		panic("scoring backend exploded")
	}
	return f.ranked, f.err
}

type wordCounterFake struct{}

func (wordCounterFake) Count(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
