package domain

import "time"

type EventType string

const (
	EventDocumentLoaded    EventType = "document_loaded"
	EventDocumentFailed    EventType = "document_failed"
	EventTranslated        EventType = "query_translated"
	EventTranslationFailed EventType = "translation_failed"
	EventAnswered          EventType = "answer_generated"
	EventAnswerFailed      EventType = "answer_failed"
	EventNoContext         EventType = "no_context"
)

// PipelineEvent is the structured telemetry record handed to observers.
type PipelineEvent struct {
	Type        EventType       `json:"type"`
	SessionID   string          `json:"session_id,omitempty"`
	Strategy    RankingStrategy `json:"strategy,omitempty"`
	FailureKind FailureKind     `json:"failure_kind,omitempty"`
	Detail      string          `json:"detail,omitempty"`
	Chunks      int             `json:"chunks"`
	Tokens      int             `json:"prompt_tokens,omitempty"`
	Duration    time.Duration   `json:"duration_ns"`
	At          time.Time       `json:"at"`
}
