package domain

import "fmt"

type FailureKind string

const (
	FailureNotReady          FailureKind = "not_ready"
	FailureRanking           FailureKind = "ranking"
	FailureGeneration        FailureKind = "generation"
	FailureTimeout           FailureKind = "timeout"
	FailureUnavailable       FailureKind = "unavailable"
	FailureMalformedResponse FailureKind = "malformed_response"
	FailureInternal          FailureKind = "internal"
)

type Failure struct {
	Kind   FailureKind `json:"kind"`
	Detail string      `json:"detail"`
}

// Outcome is the tagged result of one answered query: either Text is the
// generated answer, or Failure describes why no answer was produced.
type Outcome struct {
	Text       string        `json:"text,omitempty"`
	Failure    *Failure      `json:"failure,omitempty"`
	Sources    []RankedChunk `json:"sources,omitempty"`
	Query      string        `json:"query,omitempty"`
	Translated bool          `json:"translated"`
	Grounded   bool          `json:"grounded"`
}

func (o Outcome) OK() bool {
	return o.Failure == nil
}

func Succeeded(text string) Outcome {
	return Outcome{Text: text}
}

func Failed(kind FailureKind, detail string) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Detail: detail}}
}

// Render is what the session shell shows in place of the assistant reply.
func (o Outcome) Render() string {
	if o.Failure == nil {
		return o.Text
	}
	return fmt.Sprintf("Error generating response: %s", o.Failure.Detail)
}
