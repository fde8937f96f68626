package usecase

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/core/ports"
)

type TranslatorConfig struct {
	// Languages lists ISO 639-1 codes whose queries are translated.
	Languages []string
	Target    string
}

// Translator brings queries into the working language before retrieval.
// It is best-effort: every failure yields the original text.
type Translator struct {
	detector  ports.LanguageDetector
	service   ports.TranslationService
	languages map[string]struct{}
	target    string
	observer  ports.PipelineObserver
	now       func() time.Time
}

func NewTranslator(
	detector ports.LanguageDetector,
	service ports.TranslationService,
	cfg TranslatorConfig,
	observer ports.PipelineObserver,
) *Translator {
	if observer == nil {
		observer = ports.NoopObserver
	}
	target := strings.TrimSpace(cfg.Target)
	if target == "" {
		target = "en"
	}
	languages := make(map[string]struct{}, len(cfg.Languages))
	for _, lang := range cfg.Languages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang != "" {
			languages[lang] = struct{}{}
		}
	}
	return &Translator{
		detector:  detector,
		service:   service,
		languages: languages,
		target:    target,
		observer:  observer,
		now:       time.Now,
	}
}

// Normalize returns the query to rank with and whether it was translated.
func (t *Translator) Normalize(ctx context.Context, text string) (string, bool) {
	text = norm.NFC.String(text)
	if t == nil || t.detector == nil || t.service == nil || len(t.languages) == 0 {
		return text, false
	}

	started := t.now()
	lang, err := t.detector.Detect(text)
	if err != nil {
		t.warn(ctx, started, domain.WrapError(domain.ErrTranslation, "detect language", err))
		return text, false
	}
	if _, ok := t.languages[lang]; !ok {
		return text, false
	}

	translated, err := t.service.Translate(ctx, text, t.target)
	if err != nil {
		t.warn(ctx, started, err)
		return text, false
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		return text, false
	}

	t.observer.Observe(ctx, domain.PipelineEvent{
		Type:      domain.EventTranslated,
		SessionID: SessionIDFromContext(ctx),
		Detail:    lang + "->" + t.target,
		Duration:  t.now().Sub(started),
		At:        t.now().UTC(),
	})
	return translated, true
}

func (t *Translator) warn(ctx context.Context, started time.Time, err error) {
	t.observer.Observe(ctx, domain.PipelineEvent{
		Type:      domain.EventTranslationFailed,
		SessionID: SessionIDFromContext(ctx),
		Detail:    err.Error(),
		Duration:  t.now().Sub(started),
		At:        t.now().UTC(),
	})
}
