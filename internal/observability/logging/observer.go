package logging

import (
	"context"
	"log/slog"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

// EventLogger writes pipeline events as structured log records.
type EventLogger struct {
	logger *slog.Logger
}

func NewEventLogger(logger *slog.Logger) *EventLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLogger{logger: logger}
}

func (l *EventLogger) Observe(ctx context.Context, event domain.PipelineEvent) {
	logger := FromContext(ctx, l.logger)
	attrs := []any{
		"event", string(event.Type),
	}
	if event.SessionID != "" {
		attrs = append(attrs, "session_id", event.SessionID)
	}
	if event.Strategy != "" {
		attrs = append(attrs, "strategy", string(event.Strategy))
	}
	if event.FailureKind != "" {
		attrs = append(attrs, "failure_kind", string(event.FailureKind))
	}
	if event.Chunks > 0 {
		attrs = append(attrs, "chunks", event.Chunks)
	}
	if event.Tokens > 0 {
		attrs = append(attrs, "prompt_tokens", event.Tokens)
	}
	if event.Duration > 0 {
		attrs = append(attrs, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Detail != "" {
		attrs = append(attrs, "detail", event.Detail)
	}

	switch event.Type {
	case domain.EventAnswerFailed, domain.EventDocumentFailed:
		logger.ErrorContext(ctx, "pipeline_event", attrs...)
	case domain.EventTranslationFailed, domain.EventNoContext:
		logger.WarnContext(ctx, "pipeline_event", attrs...)
	default:
		logger.InfoContext(ctx, "pipeline_event", attrs...)
	}
}
