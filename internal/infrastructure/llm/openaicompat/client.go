package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/infrastructure/resilience"
)

const DefaultBaseURL = "https://api.groq.com/openai/v1"

type Options struct {
	BaseURL        string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
	Executor       *resilience.Executor
}

// ChatCompleter calls any OpenAI-compatible chat completions endpoint.
type ChatCompleter struct {
	client   openai.Client
	model    string
	executor *resilience.Executor
}

func New(opts Options) *ChatCompleter {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	)
	return &ChatCompleter{
		client:   client,
		model:    opts.Model,
		executor: opts.Executor,
	}
}

func (c *ChatCompleter) Complete(ctx context.Context, messages []domain.PromptMessage) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toMessageParams(messages),
	}

	content, err := resilience.Call(ctx, c.executor, "openai.chat", func(callCtx context.Context) (string, error) {
		resp, err := c.client.Chat.Completions.New(callCtx, params)
		if err != nil {
			return "", asStatusError(err)
		}
		if len(resp.Choices) == 0 {
			return "", domain.WrapError(domain.ErrMalformedResponse, "chat completion", fmt.Errorf("response has no choices"))
		}
		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			return "", domain.WrapError(domain.ErrMalformedResponse, "chat completion", fmt.Errorf("empty message content"))
		}
		return content, nil
	}, resilience.ClassifyHTTPError)
	if err != nil {
		err = resilience.WrapTemporaryIfNeeded("chat completion", err, resilience.ClassifyHTTPError)
		if domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrMalformedResponse) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrGeneration, "chat completion", err)
	}
	return content, nil
}

func toMessageParams(messages []domain.PromptMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(message.Content))
		default:
			out = append(out, openai.UserMessage(message.Content))
		}
	}
	return out
}

// asStatusError converts SDK API errors so the shared HTTP classifier sees the status.
func asStatusError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &resilience.HTTPStatusError{
			Service:    "completion",
			Operation:  "chat",
			StatusCode: apiErr.StatusCode,
			Status:     fmt.Sprintf("%d", apiErr.StatusCode),
			Body:       apiErr.Message,
		}
	}
	return err
}
