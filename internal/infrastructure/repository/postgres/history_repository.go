package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

// HistoryRepository stores chat turns keyed by session id. Rows live only
// as long as the session; Drop removes them on close.
type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS chat_messages (
	session_id TEXT NOT NULL,
	seq BIGSERIAL NOT NULL,
	sender TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, seq)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create chat_messages: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Append inserts the messages in one transaction.
func (r *HistoryRepository) Append(ctx context.Context, sessionID string, messages ...domain.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, message := range messages {
		if message.CreatedAt.IsZero() {
			message.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO chat_messages (session_id, sender, text, created_at)
VALUES ($1, $2, $3, $4)
`, sessionID, string(message.Sender), message.Text, message.CreatedAt)
		if err != nil {
			return fmt.Errorf("append chat message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (r *HistoryRepository) List(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT sender, text, created_at
FROM chat_messages
WHERE session_id = $1
ORDER BY seq ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0, 16)
	for rows.Next() {
		var (
			message domain.ChatMessage
			sender  string
		)
		if err := rows.Scan(&sender, &message.Text, &message.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		message.Sender = domain.Sender(sender)
		out = append(out, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return out, nil
}

func (r *HistoryRepository) Drop(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("drop chat messages: %w", err)
	}
	return nil
}
