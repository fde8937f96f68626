package google

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/infrastructure/resilience"
)

const DefaultBaseURL = "https://translate.googleapis.com"

// Client uses the public gtx endpoint, which answers with nested JSON arrays:
// [[["translated","source",...],...],...].
type Client struct {
	http     *resty.Client
	executor *resilience.Executor
}

func New(baseURL string, timeout time.Duration, executor *resilience.Executor) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	return &Client{http: httpClient, executor: executor}
}

func (c *Client) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	translated, err := resilience.Call(ctx, c.executor, "google.translate", func(callCtx context.Context) (string, error) {
		return c.translateOnce(callCtx, text, targetLang)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return "", domain.WrapError(domain.ErrTranslation, "google translate", err)
	}
	return translated, nil
}

func (c *Client) translateOnce(ctx context.Context, text, targetLang string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client": "gtx",
			"sl":     "auto",
			"tl":     targetLang,
			"dt":     "t",
			"q":      text,
		}).
		Get("/translate_a/single")
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return "", &resilience.HTTPStatusError{
			Service:    "google",
			Operation:  "translate",
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Body:       truncate(resp.String(), 512),
		}
	}
	return parseTranslation(resp.Body())
}

func parseTranslation(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", domain.WrapError(domain.ErrMalformedResponse, "parse translation", fmt.Errorf("response is not json"))
	}
	segments := gjson.GetBytes(body, "0.#.0")
	if !segments.IsArray() {
		return "", domain.WrapError(domain.ErrMalformedResponse, "parse translation", fmt.Errorf("unexpected response shape"))
	}

	var b strings.Builder
	for _, segment := range segments.Array() {
		if segment.Type == gjson.String {
			b.WriteString(segment.String())
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", domain.WrapError(domain.ErrMalformedResponse, "parse translation", fmt.Errorf("empty translation"))
	}
	return out, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
