package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukiyo/internal/config"
	"ukiyo/internal/server"
	"ukiyo/internal/store"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "COHERE_API_KEY", "PERPLEXITY_API_KEY",
		"GOOGLE_API_KEY", "GEMINI_API_KEY", "DEEPL_API_KEY", "UKIYO_JWT_SECRET", "UKIYO_DB_PATH", "UKIYO_LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Store.DatabasePath = filepath.Join(dir, "ukiyo.db")
	cfg.Server.JWTSecret = "cli-secret"
	cfg.Usage.File = ""
	cfg.Logging.Level = "error"
	path := filepath.Join(dir, "ukiyo.yaml")
	require.NoError(t, cfg.Save(path))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestUserCommands(t *testing.T) {
	path := writeConfig(t)

	out, err := execute(t, "--config", path, "user", "create", "alice")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = execute(t, "--config", path, "user", "token", "alice")
	require.NoError(t, err)
	sub, err := server.ParseToken("cli-secret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, id, sub)

	_, err = execute(t, "--config", path, "user", "token", "bob")
	assert.Error(t, err)

	_, err = execute(t, "--config", path, "user", "create", "alice")
	assert.Error(t, err, "usernames are unique")

	_, err = execute(t, "--config", path, "user", "create", "--password", "great-wave", "hokusai")
	require.NoError(t, err)
	st, err := store.Open(filepath.Join(filepath.Dir(path), "ukiyo.db"))
	require.NoError(t, err)
	defer st.Close()
	_, hash, err := st.Credentials(context.Background(), "hokusai")
	require.NoError(t, err)
	assert.True(t, server.CheckPassword(hash, "great-wave"))
}

func TestMemoryCommands(t *testing.T) {
	path := writeConfig(t)
	_, err := execute(t, "--config", path, "user", "create", "alice")
	require.NoError(t, err)

	_, err = execute(t, "--config", path, "memory", "add", "--user", "alice", "--title", "Tone", "--priority", "3", "Keep", "answers", "brief")
	require.NoError(t, err)
	_, err = execute(t, "--config", path, "memory", "add", "--user", "alice", "Likes woodblock prints")
	require.NoError(t, err)

	out, err := execute(t, "--config", path, "memory", "list", "--user", "alice")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Tone")
	assert.Contains(t, lines[1], "Keep answers brief")
	assert.Contains(t, lines[2], "Likes woodblock prints")

	_, err = execute(t, "--config", path, "memory", "list")
	assert.Error(t, err, "--user is required")

	_, err = execute(t, "--config", path, "memory", "add", "--user", "alice", "--priority", "11", "too important")
	assert.Error(t, err, "priority is bounded to 0..10")
}

func TestAsk(t *testing.T) {
	path := writeConfig(t)

	_, err := execute(t, "--config", path, "ask", "--mode", "nonsense", "hello")
	assert.ErrorContains(t, err, "unknown mode")

	// no API keys configured, so the flow degrades to an error envelope
	out, err := execute(t, "--config", path, "ask", "--mode", "fastchat", "hello")
	assert.Error(t, err)
	assert.Contains(t, out, "error")
	assert.Contains(t, out, "mode=fastchat")
}
