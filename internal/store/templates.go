package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Template is a saved prompt the user can reuse.
type Template struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// TemplateInput is the editable part of a template.
type TemplateInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// ListTemplates returns the user's templates, oldest first.
func (s *Store) ListTemplates(ctx context.Context, userID string) ([]Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, content, category, created_at
		 FROM templates WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	out := []Template{}
	for rows.Next() {
		var (
			t  Template
			at int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Content, &t.Category, &at); err != nil {
			return nil, fmt.Errorf("list templates: %w", err)
		}
		t.CreatedAt = fromStamp(at)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTemplate stores a template. Title and content are required.
func (s *Store) CreateTemplate(ctx context.Context, userID string, in TemplateInput) (Template, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return Template{}, fmt.Errorf("create template: title and content are required: %w", ErrInvalid)
	}
	at := s.stamp()
	t := Template{
		ID:        newID(),
		UserID:    userID,
		Title:     in.Title,
		Content:   in.Content,
		Category:  in.Category,
		CreatedAt: fromStamp(at),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO templates (id, user_id, title, content, category, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		t.ID, t.UserID, t.Title, t.Content, t.Category, at)
	if err != nil {
		return Template{}, fmt.Errorf("create template: %w", err)
	}
	return t, nil
}

// DeleteTemplate removes a template owned by userID.
func (s *Store) DeleteTemplate(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return affected("delete template", res)
}
