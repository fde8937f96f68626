package localfs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/infrastructure/extractor"
)

const maxDocumentBytes = 20 << 20

var mediaByExt = map[string]string{
	".txt":  extractor.MediaPlain,
	".md":   extractor.MediaMarkdown,
	".csv":  extractor.MediaCSV,
	".html": extractor.MediaHTML,
	".htm":  extractor.MediaHTML,
	".pdf":  extractor.MediaPDF,
	".xlsx": extractor.MediaXLSX,
}

// Source serves file:// document URLs from a base directory, for offline
// runs against a local copy of the shared document.
type Source struct {
	basePath   string
	extractors *extractor.Registry
}

func New(basePath string) (*Source, error) {
	if basePath == "" {
		basePath = "./data/documents"
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve document dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	return &Source{basePath: abs, extractors: extractor.NewRegistry()}, nil
}

// IsFileURL reports whether rawURL should be served by a Source.
func IsFileURL(rawURL string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(rawURL)), "file://")
}

func (s *Source) Fetch(_ context.Context, rawURL string) (string, error) {
	path, err := s.resolve(rawURL)
	if err != nil {
		return "", domain.WrapError(domain.ErrFetch, "open local document", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrFetch, "open local document", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxDocumentBytes+1))
	if err != nil {
		return "", domain.WrapError(domain.ErrFetch, "read local document", err)
	}
	if len(raw) > maxDocumentBytes {
		return "", domain.WrapError(domain.ErrFetch, "read local document", fmt.Errorf("document exceeds %d bytes", maxDocumentBytes))
	}
	return s.extractors.Extract(mediaByExt[strings.ToLower(filepath.Ext(path))], raw)
}

// resolve maps file:///name or file://name onto the base directory and
// refuses paths that leave it.
func (s *Source) resolve(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse document url: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	rel := filepath.FromSlash(strings.TrimPrefix(u.Host+u.Path, "/"))
	if rel == "" {
		return "", fmt.Errorf("document url has no path")
	}
	path := filepath.Join(s.basePath, rel)
	within, err := filepath.Rel(s.basePath, path)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes document dir", rel)
	}
	return path, nil
}
