package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukiyo/internal/envelope"
)

// tick is a clock that advances one millisecond per call.
func tick() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(":memory:", append([]Option{WithClock(tick())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newUser(t *testing.T, s *Store, name string) User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name)
	require.NoError(t, err)
	return u
}

func TestOpen_FileAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ukiyo.db")
	s, err := Open(path)
	require.NoError(t, err)
	u := newUser(t, s, "alice")
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetUserByName(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	var version int
	require.NoError(t, s.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u := newUser(t, s, " alice ")
	assert.Equal(t, "alice", u.Username)
	assert.Len(t, u.ID, 26)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = s.CreateUser(ctx, "alice")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.CreateUser(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUsers_RegisterAndCredentials(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.RegisterUser(ctx, "hokusai", "$2a$10$hash")
	require.NoError(t, err)

	got, hash, err := s.Credentials(ctx, " hokusai ")
	require.NoError(t, err)
	assert.Equal(t, u, got)
	assert.Equal(t, "$2a$10$hash", hash)

	_, err = s.RegisterUser(ctx, "hokusai", "$2a$10$other")
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = s.RegisterUser(ctx, "hiroshige", "")
	assert.ErrorIs(t, err, ErrInvalid)

	plain := newUser(t, s, "utamaro")
	_, hash, err = s.Credentials(ctx, plain.Username)
	require.NoError(t, err)
	assert.Empty(t, hash)

	_, _, err = s.Credentials(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_MigratesUsersWithoutPasswordHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	old, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = old.Exec(`CREATE TABLE users (id TEXT PRIMARY KEY, username TEXT NOT NULL UNIQUE, created_at INTEGER NOT NULL);
		INSERT INTO users (id, username, created_at) VALUES ('u1', 'legacy', 1);
		PRAGMA user_version = 3;`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	u, hash, err := s.Credentials(context.Background(), "legacy")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Empty(t, hash)

	var version int
	require.NoError(t, s.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := newUser(t, s, "alice")
	bob := newUser(t, s, "bob")

	first, err := s.CreateSession(ctx, alice.ID, "Tea", "balance")
	require.NoError(t, err)
	assert.Equal(t, envelope.StatusLoading, first.Status)
	second, err := s.CreateSession(ctx, alice.ID, "", "fastchat")
	require.NoError(t, err)
	assert.Equal(t, DefaultSessionTitle, second.Title)

	require.NoError(t, s.SetSessionStatus(ctx, first.ID, envelope.StatusComplete, "balance"))

	got, err := s.GetSession(ctx, alice.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, envelope.StatusComplete, got.Status)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	_, err = s.GetSession(ctx, bob.ID, first.ID)
	assert.ErrorIs(t, err, ErrNotFound, "sessions are scoped to their owner")

	list, err := s.ListSessions(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID, "most recently updated first")

	err = s.SetSessionStatus(ctx, "missing", envelope.StatusError, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTitleFromPrompt(t *testing.T) {
	assert.Equal(t, "Hello there", TitleFromPrompt("\n  Hello there  \nsecond line"))
	assert.Equal(t, DefaultSessionTitle, TitleFromPrompt(" \n\t"))
	long := "あいうえおかきくけこさしすせそたちつてとなにぬねのはひふへほまみむめもやゆよらりるれろわをんアイウエオカキ"
	assert.Equal(t, []rune(long)[:SessionTitleChars], []rune(TitleFromPrompt(long)))
}

func TestMessages_OrderedHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := newUser(t, s, "alice")
	sess, err := s.CreateSession(ctx, u.ID, "t", "fastchat")
	require.NoError(t, err)

	first, err := s.FirstUserMessage(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, first)

	for _, m := range []struct{ role, content string }{
		{RoleUser, "one"}, {RoleAI, "two"}, {RoleUser, "three"}, {RoleAI, "four"},
	} {
		_, err := s.AppendMessage(ctx, sess.ID, m.role, m.content, "")
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	var contents []string
	for _, m := range msgs {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"one", "two", "three", "four"}, contents)

	first, err = s.FirstUserMessage(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", first)
}

func TestMessages_ForeignKey(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AppendMessage(context.Background(), "no-such-session", RoleUser, "x", "")
	assert.Error(t, err)
}

func TestMemories_LimitAndOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithMemoryLimit(3))
	u := newUser(t, s, "alice")

	low, err := s.CreateMemory(ctx, u.ID, MemoryInput{Title: "low", Priority: 1})
	require.NoError(t, err)
	_, err = s.CreateMemory(ctx, u.ID, MemoryInput{Title: "high", Priority: 5})
	require.NoError(t, err)
	_, err = s.CreateMemory(ctx, u.ID, MemoryInput{Title: "low-newer", Priority: 1})
	require.NoError(t, err)

	_, err = s.CreateMemory(ctx, u.ID, MemoryInput{Title: "one too many"})
	assert.True(t, errors.Is(err, ErrMemoryLimit))

	list, err := s.ListMemories(ctx, u.ID)
	require.NoError(t, err)
	var titles []string
	for _, m := range list {
		titles = append(titles, m.Title)
	}
	assert.Equal(t, []string{"high", "low-newer", "low"}, titles)

	// Touching the old low-priority memory moves it ahead of its peer.
	_, err = s.UpdateMemory(ctx, u.ID, low.ID, MemoryInput{Title: "low", Content: "edited", Priority: 1})
	require.NoError(t, err)
	list, err = s.ListMemories(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "low", list[1].Title)
	assert.Equal(t, "edited", list[1].Content)

	require.NoError(t, s.DeleteMemory(ctx, u.ID, low.ID))
	_, err = s.CreateMemory(ctx, u.ID, MemoryInput{Title: "fits again"})
	assert.NoError(t, err)

	records := Records(list)
	require.Len(t, records, 3)
	assert.Equal(t, "high", records[0].Title)
	require.NotNil(t, records[0].UpdatedAt)
}

func TestMemories_PriorityBounds(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := newUser(t, s, "alice")

	for _, p := range []int{MinPriority - 1, MaxPriority + 1, 99} {
		_, err := s.CreateMemory(ctx, u.ID, MemoryInput{Title: "x", Priority: p})
		assert.ErrorIs(t, err, ErrInvalid, "priority %d", p)
	}

	m, err := s.CreateMemory(ctx, u.ID, MemoryInput{Title: "top", Priority: MaxPriority})
	require.NoError(t, err)
	_, err = s.UpdateMemory(ctx, u.ID, m.ID, MemoryInput{Title: "top", Priority: -3})
	assert.ErrorIs(t, err, ErrInvalid)

	list, err := s.ListMemories(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, MaxPriority, list[0].Priority)
}

func TestMemories_Ownership(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := newUser(t, s, "alice")
	bob := newUser(t, s, "bob")
	m, err := s.CreateMemory(ctx, alice.ID, MemoryInput{Title: "secret"})
	require.NoError(t, err)

	_, err = s.UpdateMemory(ctx, bob.ID, m.ID, MemoryInput{Title: "hijack"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteMemory(ctx, bob.ID, m.ID), ErrNotFound)

	list, err := s.ListMemories(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTemplates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := newUser(t, s, "alice")

	_, err := s.CreateTemplate(ctx, u.ID, TemplateInput{Title: "", Content: "x"})
	assert.ErrorIs(t, err, ErrInvalid)

	a, err := s.CreateTemplate(ctx, u.ID, TemplateInput{Title: "Mail", Content: "Write a mail about", Category: "work"})
	require.NoError(t, err)
	_, err = s.CreateTemplate(ctx, u.ID, TemplateInput{Title: "Poem", Content: "Write a poem"})
	require.NoError(t, err)

	list, err := s.ListTemplates(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Mail", list[0].Title)
	assert.Equal(t, "work", list[0].Category)

	require.NoError(t, s.DeleteTemplate(ctx, u.ID, a.ID))
	assert.ErrorIs(t, s.DeleteTemplate(ctx, u.ID, a.ID), ErrNotFound)
}
