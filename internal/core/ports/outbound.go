package ports

import (
	"context"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

// DocumentSource fetches the shared document as plain text.
type DocumentSource interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// DocumentCache is implemented by sources that cache fetched documents.
type DocumentCache interface {
	Invalidate(url string)
}

// Chunker splits document text into word windows.
type Chunker interface {
	Split(text string) []string
}

// LanguageDetector returns the ISO 639-1 code of the dominant language.
type LanguageDetector interface {
	Detect(text string) (string, error)
}

// TranslationService translates text into the target ISO 639-1 language.
type TranslationService interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Embedder builds fixed-length vectors; identical input must yield identical output.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Ranker scores chunks against a query and returns at most k of them, most relevant first.
type Ranker interface {
	Strategy() domain.RankingStrategy
	Rank(ctx context.Context, query string, chunks []string, k int) ([]domain.RankedChunk, error)
}

// ChatCompleter sends a chat-style request to the completion service.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []domain.PromptMessage) (string, error)
}

// TokenCounter measures prompt text in model tokens.
type TokenCounter interface {
	Count(text string) int
}

// HistoryStore keeps a session's append-only chat log for the session lifetime.
// Append stores all given messages or none of them.
type HistoryStore interface {
	Append(ctx context.Context, sessionID string, messages ...domain.ChatMessage) error
	List(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	Drop(ctx context.Context, sessionID string) error
}
