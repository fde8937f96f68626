package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

// HistoryStore keeps chat logs in process memory.
type HistoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]domain.ChatMessage
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{sessions: make(map[string][]domain.ChatMessage)}
}

func (s *HistoryStore) Append(_ context.Context, sessionID string, messages ...domain.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, message := range messages {
		if message.CreatedAt.IsZero() {
			message.CreatedAt = now
		}
		s.sessions[sessionID] = append(s.sessions[sessionID], message)
	}
	return nil
}

func (s *HistoryStore) List(_ context.Context, sessionID string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := s.sessions[sessionID]
	out := make([]domain.ChatMessage, len(messages))
	copy(out, messages)
	return out, nil
}

func (s *HistoryStore) Drop(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}
