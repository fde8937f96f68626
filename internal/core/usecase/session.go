package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/core/ports"
)

// PipelineFactory builds a fresh pipeline for a new session.
type PipelineFactory func(sessionID string) *Pipeline

type session struct {
	id        string
	pipeline  *Pipeline
	createdAt time.Time

	// turnMu serializes loads and turns within one session and guards closed.
	turnMu sync.Mutex
	closed bool

	mu        sync.Mutex
	updatedAt time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.updatedAt = now
	s.mu.Unlock()
}

func (s *session) lastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

type SessionService struct {
	source      ports.DocumentSource
	history     ports.HistoryStore
	newPipeline PipelineFactory
	documentURL string
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewSessionService(
	source ports.DocumentSource,
	history ports.HistoryStore,
	newPipeline PipelineFactory,
	documentURL string,
) *SessionService {
	return &SessionService{
		source:      source,
		history:     history,
		newPipeline: newPipeline,
		documentURL: strings.TrimSpace(documentURL),
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
}

// Create opens a session and loads the document right away. A failed load
// still returns the session so the caller can retry it.
func (s *SessionService) Create(ctx context.Context) (*domain.SessionInfo, error) {
	now := s.now().UTC()
	sess := &session{
		id:        uuid.NewString(),
		createdAt: now,
		updatedAt: now,
	}
	sess.pipeline = s.newPipeline(sess.id)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	sess.turnMu.Lock()
	_ = s.load(ctx, sess)
	sess.turnMu.Unlock()
	return s.info(sess), nil
}

func (s *SessionService) Get(_ context.Context, sessionID string) (*domain.SessionInfo, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return s.info(sess), nil
}

// Reload re-fetches the document. The returned info reflects the outcome
// even when err is non-nil.
func (s *SessionService) Reload(ctx context.Context, sessionID string) (*domain.SessionInfo, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.turnMu.TryLock() {
		return s.info(sess), domain.WrapError(domain.ErrLoadInProgress, "reload session", fmt.Errorf("session %s is busy", sessionID))
	}
	defer sess.turnMu.Unlock()
	if sess.closed {
		return nil, closedSessionError("reload session", sessionID)
	}

	if cache, ok := s.source.(ports.DocumentCache); ok {
		cache.Invalidate(s.documentURL)
	}
	err = s.load(ctx, sess)
	return s.info(sess), err
}

func (s *SessionService) Ask(ctx context.Context, sessionID, text string) (*domain.TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("message text is empty"))
	}
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.turnMu.Lock()
	defer sess.turnMu.Unlock()
	if sess.closed {
		return nil, closedSessionError("ask", sessionID)
	}

	if state := sess.pipeline.State(); state != domain.StateReady {
		return nil, domain.WrapError(domain.ErrNotReady, "ask", fmt.Errorf("session %s is %s", sessionID, state))
	}

	userMsg := domain.ChatMessage{Sender: domain.SenderUser, Text: text, CreatedAt: s.now().UTC()}
	outcome := sess.pipeline.Answer(ctx, text)
	assistantMsg := domain.ChatMessage{Sender: domain.SenderAssistant, Text: outcome.Render(), CreatedAt: s.now().UTC()}

	if err := s.history.Append(ctx, sessionID, userMsg, assistantMsg); err != nil {
		return nil, fmt.Errorf("append turn: %w", err)
	}
	sess.touch(s.now().UTC())

	return &domain.TurnResult{
		User:      userMsg,
		Assistant: assistantMsg,
		Outcome:   outcome,
	}, nil
}

func (s *SessionService) History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	if _, err := s.lookup(sessionID); err != nil {
		return nil, err
	}
	messages, err := s.history.List(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return messages, nil
}

// Close removes the session and drops its history once any in-flight turn
// has finished.
func (s *SessionService) Close(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "close session", fmt.Errorf("id %s", sessionID))
	}

	sess.turnMu.Lock()
	defer sess.turnMu.Unlock()
	sess.closed = true
	if err := s.history.Drop(ctx, sessionID); err != nil {
		return fmt.Errorf("drop history: %w", err)
	}
	return nil
}

// PurgeIdle closes sessions with no activity for longer than ttl and
// returns how many were closed.
func (s *SessionService) PurgeIdle(ctx context.Context, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := s.now().UTC().Add(-ttl)

	s.mu.RLock()
	idle := make([]string, 0)
	for id, sess := range s.sessions {
		if sess.lastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	s.mu.RUnlock()

	closed := 0
	for _, id := range idle {
		if err := s.Close(ctx, id); err == nil {
			closed++
		}
	}
	return closed
}

// Count returns the number of open sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionService) load(ctx context.Context, sess *session) error {
	defer sess.touch(s.now().UTC())
	if err := sess.pipeline.BeginLoad(); err != nil {
		return err
	}
	text, err := s.source.Fetch(ctx, s.documentURL)
	if err != nil {
		if !domain.IsKind(err, domain.ErrFetch) {
			err = domain.WrapError(domain.ErrFetch, "load document", err)
		}
		sess.pipeline.FailLoad(ctx, err)
		return err
	}
	return sess.pipeline.CompleteLoad(ctx, text)
}

func closedSessionError(op, sessionID string) error {
	return domain.WrapError(domain.ErrSessionNotFound, op, fmt.Errorf("session %s was closed", sessionID))
}

func (s *SessionService) lookup(sessionID string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "lookup session", fmt.Errorf("id %s", sessionID))
	}
	return sess, nil
}

func (s *SessionService) info(sess *session) *domain.SessionInfo {
	info := &domain.SessionInfo{
		ID:         sess.id,
		State:      sess.pipeline.State(),
		ChunkCount: sess.pipeline.ChunkCount(),
		SourceURL:  s.documentURL,
		CreatedAt:  sess.createdAt,
		UpdatedAt:  sess.lastActive(),
	}
	if err := sess.pipeline.LoadError(); err != nil {
		info.Error = err.Error()
	}
	return info
}
