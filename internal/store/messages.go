package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Stored message roles. "ai" is the legacy name for the assistant.
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// Message is one stored chat message.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	AIModel   string    `json:"ai_model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendMessage stores a message at the end of a session.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, content, aiModel string) (Message, error) {
	at := s.stamp()
	m := Message{
		ID:        newID(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		AIModel:   aiModel,
		CreatedAt: fromStamp(at),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, session_id, role, content, ai_model, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		m.ID, m.SessionID, m.Role, m.Content, m.AIModel, at)
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	return m, nil
}

// ListMessages returns a session's messages oldest first.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, ai_model, created_at
		 FROM messages WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var (
			m  Message
			at int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.AIModel, &at); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		m.CreatedAt = fromStamp(at)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// FirstUserMessage returns the content of the earliest user message of a
// session, or "" when there is none.
func (s *Store) FirstUserMessage(ctx context.Context, sessionID string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM messages WHERE session_id = ? AND role = ?
		 ORDER BY created_at ASC, id ASC LIMIT 1`, sessionID, RoleUser).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("first user message: %w", err)
	}
	return content, nil
}
