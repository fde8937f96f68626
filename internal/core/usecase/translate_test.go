package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

func TestTranslatorTranslatesConfiguredLanguages(t *testing.T) {
	service := &translationFake{out: "What is the refund policy?"}
	observer := &recordingObserver{}
	translator := NewTranslator(detectorFake{lang: "hi"}, service, TranslatorConfig{Languages: []string{"hi", "ur"}}, observer)

	got, translated := translator.Normalize(WithSessionID(context.Background(), "s-1"), "रिफंड नीति क्या है?")
	if got != "What is the refund policy?" || !translated {
		t.Fatalf("Normalize() = %q, %v", got, translated)
	}
	if service.target != "en" {
		t.Fatalf("expected default target en, got %q", service.target)
	}
	if !observer.has(domain.EventTranslated) || observer.events[0].SessionID != "s-1" {
		t.Fatalf("expected translated event with session id, got %+v", observer.events)
	}
}

func TestTranslatorSkipsOtherLanguages(t *testing.T) {
	service := &translationFake{out: "nope"}
	translator := NewTranslator(detectorFake{lang: "en"}, service, TranslatorConfig{Languages: []string{"hi"}}, nil)

	got, translated := translator.Normalize(context.Background(), "refund?")
	if got != "refund?" || translated || service.calls != 0 {
		t.Fatalf("unexpected translation: %q %v calls=%d", got, translated, service.calls)
	}
}

func TestTranslatorReturnsOriginalOnFailure(t *testing.T) {
	cases := []struct {
		name     string
		detector detectorFake
		service  *translationFake
	}{
		{"detect", detectorFake{err: errors.New("too short")}, &translationFake{out: "x"}},
		{"translate", detectorFake{lang: "ur"}, &translationFake{err: errors.New("quota")}},
	}
	for _, tc := range cases {
		observer := &recordingObserver{}
		translator := NewTranslator(tc.detector, tc.service, TranslatorConfig{Languages: []string{"hi", "ur"}}, observer)
		got, translated := translator.Normalize(context.Background(), "واپسی")
		if got != "واپسی" || translated {
			t.Fatalf("%s: expected original text, got %q %v", tc.name, got, translated)
		}
		if !observer.has(domain.EventTranslationFailed) {
			t.Fatalf("%s: expected translation_failed event, got %v", tc.name, observer.types())
		}
	}
}

func TestTranslatorAppliesNFC(t *testing.T) {
	translator := NewTranslator(nil, nil, TranslatorConfig{}, nil)
	decomposed := "cafe\u0301"
	got, _ := translator.Normalize(context.Background(), decomposed)
	if got != "caf\u00e9" {
		t.Fatalf("expected NFC form, got %q", got)
	}
}
