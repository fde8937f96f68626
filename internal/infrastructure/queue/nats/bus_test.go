package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/infrastructure/resilience"
)

func TestClassifyNATSError(t *testing.T) {
	if class := classifyNATSError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)); !class.Retryable {
		t.Fatalf("expected closed connection to be retryable")
	}
	if class := classifyNATSError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("expected cancellation to be neither retried nor recorded: %+v", class)
	}
	if class := classifyNATSError(nats.ErrBadSubject); class.Retryable {
		t.Fatalf("expected bad subject to be permanent")
	}
}

func TestWrapTemporaryMarksRetryableNATSErrors(t *testing.T) {
	err := resilience.WrapTemporaryIfNeeded("nats publish", nats.ErrNoServers, classifyNATSError)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	err = resilience.WrapTemporaryIfNeeded("nats publish", nats.ErrBadSubject, classifyNATSError)
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("did not expect ErrTemporary for permanent error")
	}
}

func TestDispatchDecodesEvent(t *testing.T) {
	sent := domain.PipelineEvent{
		Type:        domain.EventAnswerFailed,
		SessionID:   "s-1",
		Strategy:    domain.StrategyHybrid,
		FailureKind: domain.FailureUnavailable,
		Duration:    250 * time.Millisecond,
		At:          time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(sent)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got domain.PipelineEvent
	err = dispatch(context.Background(), payload, func(_ context.Context, event domain.PipelineEvent) error {
		got = event
		return nil
	})
	if err != nil {
		t.Fatalf("dispatch() error = %v", err)
	}
	if got.Type != sent.Type || got.FailureKind != sent.FailureKind || got.Duration != sent.Duration || !got.At.Equal(sent.At) {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestDispatchRejectsMalformedPayload(t *testing.T) {
	called := false
	handler := func(context.Context, domain.PipelineEvent) error {
		called = true
		return nil
	}
	for _, payload := range []string{"not json", `{"session_id":"s-1"}`} {
		err := dispatch(context.Background(), []byte(payload), handler)
		if !domain.IsKind(err, domain.ErrMalformedResponse) {
			t.Fatalf("payload %q: expected ErrMalformedResponse, got %v", payload, err)
		}
	}
	if called {
		t.Fatalf("handler must not run for malformed payloads")
	}
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	err := dispatch(context.Background(), []byte(`{"type":"no_context"}`), func(context.Context, domain.PipelineEvent) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
}
