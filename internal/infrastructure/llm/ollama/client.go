package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	chatModel  string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, chatModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "ollama embed", fmt.Errorf("got %d embeddings for %d inputs", len(response.Embeddings), len(texts)))
	}
	return response.Embeddings, nil
}

// ChatCompleter talks to the native /api/chat endpoint.
type ChatCompleter struct {
	client *Client
}

func NewChatCompleter(client *Client) *ChatCompleter {
	return &ChatCompleter{client: client}
}

func (c *ChatCompleter) Complete(ctx context.Context, messages []domain.PromptMessage) (string, error) {
	request := map[string]any{
		"model":    c.client.chatModel,
		"messages": messages,
		"stream":   false,
	}

	var response struct {
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := c.client.postJSON(ctx, "/api/chat", request, &response, "chat"); err != nil {
		return "", err
	}
	if response.Message == nil {
		return "", domain.WrapError(domain.ErrMalformedResponse, "ollama chat", fmt.Errorf("response has no message"))
	}
	content := strings.TrimSpace(response.Message.Content)
	if content == "" {
		return "", domain.WrapError(domain.ErrMalformedResponse, "ollama chat", fmt.Errorf("empty message content"))
	}
	return content, nil
}
