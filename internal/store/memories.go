package store

import (
	"context"
	"fmt"
	"time"

	"ukiyo/internal/logging"
	"ukiyo/internal/memory"
)

// Memory is a stored long-term memory.
type Memory struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Record converts m into the formatter's input type.
func (m Memory) Record() memory.Record {
	updated := m.UpdatedAt
	return memory.Record{ID: m.ID, Title: m.Title, Content: m.Content, Priority: m.Priority, UpdatedAt: &updated}
}

// Records converts a list of memories, keeping order.
func Records(ms []Memory) []memory.Record {
	out := make([]memory.Record, len(ms))
	for i, m := range ms {
		out[i] = m.Record()
	}
	return out
}

// MemoryInput is the editable part of a memory.
type MemoryInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Priority int    `json:"priority"`
}

// ListMemories returns the user's memories by priority, then most recent update.
func (s *Store) ListMemories(ctx context.Context, userID string) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, content, priority, created_at, updated_at
		 FROM memories WHERE user_id = ?
		 ORDER BY priority DESC, updated_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	out := []Memory{}
	for rows.Next() {
		var (
			m                Memory
			created, updated int64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Title, &m.Content, &m.Priority, &created, &updated); err != nil {
			return nil, fmt.Errorf("list memories: %w", err)
		}
		m.CreatedAt = fromStamp(created)
		m.UpdatedAt = fromStamp(updated)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Memory priorities are bounded to MinPriority..MaxPriority.
const (
	MinPriority = 0
	MaxPriority = 10
)

func (in MemoryInput) validate(op string) error {
	if in.Priority < MinPriority || in.Priority > MaxPriority {
		return fmt.Errorf("%s: priority %d outside %d..%d: %w", op, in.Priority, MinPriority, MaxPriority, ErrInvalid)
	}
	return nil
}

// CreateMemory adds a memory unless the user is at the memory limit.
func (s *Store) CreateMemory(ctx context.Context, userID string, in MemoryInput) (Memory, error) {
	if err := in.validate("create memory"); err != nil {
		return Memory{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE user_id = ?", userID).Scan(&count); err != nil {
		return Memory{}, fmt.Errorf("create memory: %w", err)
	}
	if count >= s.memoryLimit {
		logging.StoreDebug("User %s is at the memory limit (%d)", userID, s.memoryLimit)
		return Memory{}, fmt.Errorf("create memory: %w (%d)", ErrMemoryLimit, s.memoryLimit)
	}

	at := s.stamp()
	m := Memory{
		ID:        newID(),
		UserID:    userID,
		Title:     in.Title,
		Content:   in.Content,
		Priority:  in.Priority,
		CreatedAt: fromStamp(at),
		UpdatedAt: fromStamp(at),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, user_id, title, content, priority, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Title, m.Content, m.Priority, at, at)
	if err != nil {
		return Memory{}, fmt.Errorf("create memory: %w", err)
	}
	return m, nil
}

// UpdateMemory replaces the editable fields of a memory owned by userID.
func (s *Store) UpdateMemory(ctx context.Context, userID, id string, in MemoryInput) (Memory, error) {
	if err := in.validate("update memory"); err != nil {
		return Memory{}, err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE memories SET title = ?, content = ?, priority = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		in.Title, in.Content, in.Priority, s.stamp(), id, userID)
	if err != nil {
		return Memory{}, fmt.Errorf("update memory: %w", err)
	}
	if err := affected("update memory", res); err != nil {
		return Memory{}, err
	}

	var (
		m                Memory
		created, updated int64
	)
	err = s.db.QueryRowContext(ctx,
		"SELECT id, user_id, title, content, priority, created_at, updated_at FROM memories WHERE id = ?", id).
		Scan(&m.ID, &m.UserID, &m.Title, &m.Content, &m.Priority, &created, &updated)
	if err != nil {
		return Memory{}, notFound("update memory", err)
	}
	m.CreatedAt = fromStamp(created)
	m.UpdatedAt = fromStamp(updated)
	return m, nil
}

// DeleteMemory removes a memory owned by userID.
func (s *Store) DeleteMemory(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return affected("delete memory", res)
}
