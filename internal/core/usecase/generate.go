package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/core/ports"
)

const DefaultGenerationTimeout = 30 * time.Second

// AnswerGenerator calls the completion service and never returns an error:
// every failure is folded into the Outcome.
type AnswerGenerator struct {
	completer ports.ChatCompleter
	composer  *PromptComposer
	timeout   time.Duration
}

func NewAnswerGenerator(completer ports.ChatCompleter, composer *PromptComposer, timeout time.Duration) *AnswerGenerator {
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	return &AnswerGenerator{
		completer: completer,
		composer:  composer,
		timeout:   timeout,
	}
}

func (g *AnswerGenerator) Generate(ctx context.Context, prompt string) domain.Outcome {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.completer.Complete(callCtx, g.composer.Messages(prompt))
	if err != nil {
		return domain.Failed(classifyGenerationError(callCtx, err), err.Error())
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Failed(domain.FailureMalformedResponse, "completion service returned empty content")
	}
	return domain.Succeeded(text)
}

func classifyGenerationError(callCtx context.Context, err error) domain.FailureKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return domain.FailureTimeout
	case domain.IsKind(err, domain.ErrMalformedResponse):
		return domain.FailureMalformedResponse
	case domain.IsKind(err, domain.ErrTemporary):
		return domain.FailureUnavailable
	default:
		return domain.FailureGeneration
	}
}
