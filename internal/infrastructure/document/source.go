package document

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/infrastructure/extractor"
	"github.com/kirillkom/support-assistant/internal/infrastructure/resilience"
)

const maxDocumentBytes = 20 << 20

// HTTPSource downloads a document over HTTP(S) and extracts its text.
type HTTPSource struct {
	http       *resty.Client
	extractors *extractor.Registry
	executor   *resilience.Executor
}

func NewHTTPSource(timeout time.Duration, executor *resilience.Executor) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		http: resty.New().
			SetTimeout(timeout).
			SetRetryCount(0).
			SetResponseBodyLimit(maxDocumentBytes).
			SetHeader("User-Agent", "support-assistant/1.0"),
		extractors: extractor.NewRegistry(),
		executor:   executor,
	}
}

// WithBodyLimit overrides the maximum accepted document size in bytes.
func (s *HTTPSource) WithBodyLimit(limit int) *HTTPSource {
	s.http.SetResponseBodyLimit(limit)
	return s
}

func (s *HTTPSource) Fetch(ctx context.Context, rawURL string) (string, error) {
	target, err := ExportURL(rawURL)
	if err != nil {
		return "", domain.WrapError(domain.ErrFetch, "fetch document", err)
	}

	resp, err := resilience.Call(ctx, s.executor, "document.fetch", func(callCtx context.Context) (*resty.Response, error) {
		return s.get(callCtx, target)
	}, classifyFetchError)
	if err != nil {
		return "", domain.WrapError(domain.ErrFetch, "fetch document", err)
	}
	return s.extractors.Extract(resp.Header().Get("Content-Type"), resp.Body())
}

// classifyFetchError treats oversized documents as a permanent client-side
// rejection rather than an upstream failure.
func classifyFetchError(err error) resilience.ErrorClassification {
	if errors.Is(err, resty.ErrResponseBodyTooLarge) {
		return resilience.ErrorClassification{}
	}
	return resilience.ClassifyHTTPError(err)
}

func (s *HTTPSource) get(ctx context.Context, target string) (*resty.Response, error) {
	resp, err := s.http.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, fmt.Errorf("document request: %w", err)
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		body := resp.String()
		if len(body) > 512 {
			body = body[:512]
		}
		return nil, &resilience.HTTPStatusError{
			Service:    "document",
			Operation:  "fetch",
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Body:       body,
		}
	}
	return resp, nil
}

// ExportURL rewrites Google Docs editor links to their plain-text export
// endpoint; other http(s) URLs pass through unchanged.
func ExportURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse document url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported document url scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("document url has no host")
	}
	if parsed.Host != "docs.google.com" {
		return parsed.String(), nil
	}

	const marker = "/document/d/"
	idx := strings.Index(parsed.Path, marker)
	if idx < 0 {
		return parsed.String(), nil
	}
	docID, _, _ := strings.Cut(parsed.Path[idx+len(marker):], "/")
	if docID == "" {
		return "", fmt.Errorf("google docs url has no document id")
	}
	return fmt.Sprintf("https://docs.google.com/document/d/%s/export?format=txt", docID), nil
}
