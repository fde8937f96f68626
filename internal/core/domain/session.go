package domain

import "time"

type PipelineState string

const (
	StateEmpty   PipelineState = "empty"
	StateLoading PipelineState = "loading"
	StateReady   PipelineState = "ready"
	StateFailed  PipelineState = "failed"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

type ChatMessage struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionInfo struct {
	ID         string        `json:"id"`
	State      PipelineState `json:"state"`
	ChunkCount int           `json:"chunk_count"`
	Error      string        `json:"error,omitempty"`
	SourceURL  string        `json:"source_url,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type TurnResult struct {
	User      ChatMessage `json:"user"`
	Assistant ChatMessage `json:"assistant"`
	Outcome   Outcome     `json:"outcome"`
}
