package ports

import (
	"context"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

// SessionService is the inbound contract used by the HTTP and MCP shells.
type SessionService interface {
	Create(ctx context.Context) (*domain.SessionInfo, error)
	Get(ctx context.Context, sessionID string) (*domain.SessionInfo, error)
	Reload(ctx context.Context, sessionID string) (*domain.SessionInfo, error)
	Ask(ctx context.Context, sessionID, text string) (*domain.TurnResult, error)
	History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	Close(ctx context.Context, sessionID string) error
}
