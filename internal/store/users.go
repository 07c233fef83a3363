package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// User is an account that owns sessions, memories and templates.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUser adds a user without a password. Such users get tokens from the
// CLI only. Usernames are unique.
func (s *Store) CreateUser(ctx context.Context, username string) (User, error) {
	return s.createUser(ctx, username, "")
}

// RegisterUser adds a user that can log in with the password behind passwordHash.
func (s *Store) RegisterUser(ctx context.Context, username, passwordHash string) (User, error) {
	if passwordHash == "" {
		return User{}, fmt.Errorf("register user: empty password hash: %w", ErrInvalid)
	}
	return s.createUser(ctx, username, passwordHash)
}

func (s *Store) createUser(ctx context.Context, username, passwordHash string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("create user: empty username: %w", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&exists); err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	if exists > 0 {
		return User{}, fmt.Errorf("create user %q: %w", username, ErrDuplicate)
	}

	u := User{ID: newID(), Username: username}
	at := s.stamp()
	u.CreatedAt = fromStamp(at)
	if _, err := s.db.ExecContext(ctx, "INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)",
		u.ID, u.Username, passwordHash, at); err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUser loads a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	return s.scanUser(ctx, "get user", "SELECT id, username, created_at FROM users WHERE id = ?", id)
}

// GetUserByName loads a user by username.
func (s *Store) GetUserByName(ctx context.Context, username string) (User, error) {
	return s.scanUser(ctx, "get user by name", "SELECT id, username, created_at FROM users WHERE username = ?", strings.TrimSpace(username))
}

// Credentials loads a user by username together with its password hash,
// which is empty for users created without a password.
func (s *Store) Credentials(ctx context.Context, username string) (User, string, error) {
	var (
		u    User
		hash string
		at   int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?", strings.TrimSpace(username)).
		Scan(&u.ID, &u.Username, &hash, &at)
	if err != nil {
		return User{}, "", notFound("credentials", err)
	}
	u.CreatedAt = fromStamp(at)
	return u, hash, nil
}

func (s *Store) scanUser(ctx context.Context, op, query string, arg string) (User, error) {
	var (
		u  User
		at int64
	)
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &at); err != nil {
		return User{}, notFound(op, err)
	}
	u.CreatedAt = fromStamp(at)
	return u, nil
}
