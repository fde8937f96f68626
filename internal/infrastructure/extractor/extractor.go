package extractor

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

const (
	MediaPlain    = "text/plain"
	MediaMarkdown = "text/markdown"
	MediaCSV      = "text/csv"
	MediaHTML     = "text/html"
	MediaPDF      = "application/pdf"
	MediaXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Func turns a raw document body into plain text.
type Func func(raw []byte) (string, error)

// Registry picks an extractor by media type.
type Registry struct {
	byType map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{byType: map[string]Func{
		MediaPlain:    ExtractPlainText,
		MediaMarkdown: ExtractPlainText,
		MediaCSV:      ExtractPlainText,
		MediaHTML:     ExtractHTML,
		MediaPDF:      ExtractPDF,
		MediaXLSX:     ExtractXLSX,
	}}
}

// Extract resolves contentType (sniffing the body when it is empty) and runs
// the matching extractor. Unsupported types are reported as fetch errors.
func (r *Registry) Extract(contentType string, raw []byte) (string, error) {
	mediaType := normalizeMediaType(contentType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = normalizeMediaType(http.DetectContentType(raw))
	}

	extract, ok := r.byType[mediaType]
	if !ok {
		return "", domain.WrapError(domain.ErrFetch, "extract document", fmt.Errorf("unsupported content type %q", mediaType))
	}
	text, err := extract(raw)
	if err != nil {
		return "", domain.WrapError(domain.ErrFetch, "extract "+mediaType, err)
	}
	return text, nil
}

func normalizeMediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(contentType)
	}
	return strings.ToLower(mediaType)
}
