package document

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/infrastructure/resilience"
)

func TestExportURLRewritesGoogleDocs(t *testing.T) {
	got, err := ExportURL("https://docs.google.com/document/d/196veS3lJcHJ7iJDSN47nnWO9XKHVoxBrSwtSCD8lvUM/edit?usp=sharing")
	if err != nil {
		t.Fatalf("ExportURL() error = %v", err)
	}
	want := "https://docs.google.com/document/d/196veS3lJcHJ7iJDSN47nnWO9XKHVoxBrSwtSCD8lvUM/export?format=txt"
	if got != want {
		t.Fatalf("ExportURL() = %q, want %q", got, want)
	}
}

func TestExportURLPassesOtherURLs(t *testing.T) {
	got, err := ExportURL("https://example.com/faq.txt")
	if err != nil || got != "https://example.com/faq.txt" {
		t.Fatalf("ExportURL() = %q, %v", got, err)
	}
	for _, bad := range []string{"ftp://example.com/x", "not a url", "https:///path"} {
		if _, err := ExportURL(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestFetchExtractsPlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Our refund window is 30 days.\n"))
	}))
	defer server.Close()

	got, err := NewHTTPSource(time.Second, nil).Fetch(context.Background(), server.URL+"/doc.txt")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != "Our refund window is 30 days." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestFetchNon2xxIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewHTTPSource(time.Second, nil).Fetch(context.Background(), server.URL)
	if !domain.IsKind(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestFetchBinaryIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer server.Close()

	_, err := NewHTTPSource(time.Second, nil).Fetch(context.Background(), server.URL)
	if !domain.IsKind(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestFetchOversizedDocumentIsFetchError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("refund ", 1024)))
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3, RetryInitialBackoff: time.Millisecond})
	_, err := NewHTTPSource(time.Second, executor).WithBodyLimit(1024).Fetch(context.Background(), server.URL)
	if !domain.IsKind(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if !errors.Is(err, resty.ErrResponseBodyTooLarge) {
		t.Fatalf("expected body limit error, got %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("oversized document must not be retried, got %d requests", n)
	}
}

type stubSource struct {
	calls int
	text  string
	err   error
}

func (s *stubSource) Fetch(context.Context, string) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestCachedSourceReusesSuccessOnly(t *testing.T) {
	upstream := &stubSource{err: errors.New("down")}
	cached := NewCachedSource(upstream, 4, time.Minute)

	if _, err := cached.Fetch(context.Background(), "u"); err == nil {
		t.Fatalf("expected upstream error")
	}
	upstream.err = nil
	upstream.text = "doc"
	for i := 0; i < 3; i++ {
		got, err := cached.Fetch(context.Background(), "u")
		if err != nil || got != "doc" {
			t.Fatalf("Fetch() = %q, %v", got, err)
		}
	}
	if upstream.calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", upstream.calls)
	}

	cached.Invalidate("u")
	_, _ = cached.Fetch(context.Background(), "u")
	if upstream.calls != 3 {
		t.Fatalf("expected refetch after invalidate, got %d calls", upstream.calls)
	}
}
