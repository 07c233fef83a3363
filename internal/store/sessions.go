package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ukiyo/internal/envelope"
	"ukiyo/internal/logging"
)

// DefaultSessionTitle names a session whose first prompt has no usable text.
const DefaultSessionTitle = "New chat"

// SessionTitleChars caps generated session titles.
const SessionTitleChars = 50

// Session is one conversation.
type Session struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Title     string          `json:"title"`
	Mode      string          `json:"mode"`
	Status    envelope.Status `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TitleFromPrompt is the first non-blank line of prompt cut to SessionTitleChars.
func TitleFromPrompt(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r := []rune(line)
		if len(r) > SessionTitleChars {
			return string(r[:SessionTitleChars])
		}
		return line
	}
	return DefaultSessionTitle
}

// CreateSession starts a session in the loading state.
func (s *Store) CreateSession(ctx context.Context, userID, title, mode string) (Session, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultSessionTitle
	}
	at := s.stamp()
	sess := Session{
		ID:        newID(),
		UserID:    userID,
		Title:     title,
		Mode:      mode,
		Status:    envelope.StatusLoading,
		CreatedAt: fromStamp(at),
		UpdatedAt: fromStamp(at),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, title, mode, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Title, sess.Mode, string(sess.Status), at, at)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	logging.StoreDebug("Created session %s for user %s: %q", sess.ID, userID, title)
	return sess, nil
}

// GetSession loads a session owned by userID.
func (s *Store) GetSession(ctx context.Context, userID, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, mode, status, created_at, updated_at
		 FROM sessions WHERE id = ? AND user_id = ?`, id, userID)
	sess, err := scanSession(row)
	if err != nil {
		return Session{}, notFound("get session", err)
	}
	return sess, nil
}

// SetSessionStatus updates status and mode and bumps updated_at.
func (s *Store) SetSessionStatus(ctx context.Context, id string, status envelope.Status, mode string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET status = ?, mode = ?, updated_at = ? WHERE id = ?",
		string(status), mode, s.stamp(), id)
	if err != nil {
		return fmt.Errorf("set session status: %w", err)
	}
	return affected("set session status", res)
}

// ListSessions returns the user's sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, mode, status, created_at, updated_at
		 FROM sessions WHERE user_id = ? ORDER BY updated_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var (
		sess             Session
		status           string
		created, updated int64
	)
	if err := sc.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.Mode, &status, &created, &updated); err != nil {
		return Session{}, err
	}
	sess.Status = envelope.Status(status)
	sess.CreatedAt = fromStamp(created)
	sess.UpdatedAt = fromStamp(updated)
	return sess, nil
}
