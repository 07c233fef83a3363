// Package store persists users, chat sessions, messages, memories and prompt
// templates in SQLite (modernc.org/sqlite, no cgo).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"ukiyo/internal/logging"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")
	// ErrMemoryLimit is returned when a user already has the maximum number of memories.
	ErrMemoryLimit = errors.New("memory limit reached")
	// ErrDuplicate is returned when a unique value such as a username is taken.
	ErrDuplicate = errors.New("already exists")
	// ErrInvalid is returned for missing required fields.
	ErrInvalid = errors.New("invalid input")
)

// DefaultMemoryLimit caps stored memories per user.
const DefaultMemoryLimit = 100

// Store is the SQLite-backed persistence layer.
type Store struct {
	db          *sql.DB
	mu          sync.Mutex // serializes read-check-write sequences
	path        string
	memoryLimit int
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMemoryLimit sets the per-user memory cap. Values <= 0 keep the default.
func WithMemoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.memoryLimit = n
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store.Open")
	defer timer.Stop()

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database is per connection, and SQLite
	// allows a single writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("%s failed: %v", pragma, err)
		}
	}

	s := &Store{db: db, path: path, memoryLimit: DefaultMemoryLimit, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Store ready at %s (memory limit %d)", path, s.memoryLimit)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for maintenance tasks.
func (s *Store) DB() *sql.DB {
	return s.db
}

func newID() string {
	return ulid.Make().String()
}

func (s *Store) stamp() int64 {
	return s.now().UTC().UnixNano()
}

func fromStamp(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// notFound maps sql.ErrNoRows onto ErrNotFound and wraps everything else.
func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// affected returns ErrNotFound when a write touched no rows.
func affected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
