package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type messagesRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role string `json:"role"`
	} `json:"messages"`
}

func newClaudeServer(t *testing.T, body string, seen *messagesRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, seen))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func claudeBody(content, stopReason string) string {
	return `{"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-opus-4-20250514",
		"content": ` + content + `, "stop_reason": "` + stopReason + `",
		"usage": {"input_tokens": 20, "output_tokens": 7}}`
}

func TestAnthropicBackend_Send(t *testing.T) {
	var seen messagesRequest
	srv := newClaudeServer(t, claudeBody(`[{"type": "text", "text": "part one "}, {"type": "text", "text": "part two"}]`, "end_turn"), &seen)
	b := NewAnthropicBackend(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL + "/"})

	conv := Conversation{System: "be terse", Turns: []Turn{{Role: RoleUser, Content: "hi"}}}
	reply, err := b.Send(context.Background(), "claude-opus-4-20250514", conv, Settings{})
	require.NoError(t, err)

	assert.Equal(t, "part one part two", reply.Text)
	assert.Equal(t, 20, reply.InputTokens)
	assert.Equal(t, 7, reply.OutputTokens)
	assert.Equal(t, 8192, seen.MaxTokens)
	require.Len(t, seen.System, 1)
	assert.Equal(t, "be terse", seen.System[0].Text)
	require.Len(t, seen.Messages, 1)
	assert.Equal(t, "user", seen.Messages[0].Role)
}

func TestAnthropicBackend_EmptyText(t *testing.T) {
	t.Run("end_turn yields placeholder", func(t *testing.T) {
		srv := newClaudeServer(t, claudeBody(`[]`, "end_turn"), nil)
		b := NewAnthropicBackend(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL + "/"})

		reply, err := b.Send(context.Background(), "m", Conversation{Turns: []Turn{{Role: RoleUser, Content: "x"}}}, Settings{})
		require.NoError(t, err)
		assert.Equal(t, NoTextResponse, reply.Text)
	})

	t.Run("max_tokens is an error", func(t *testing.T) {
		srv := newClaudeServer(t, claudeBody(`[]`, "max_tokens"), nil)
		b := NewAnthropicBackend(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL + "/"})

		_, err := b.Send(context.Background(), "m", Conversation{Turns: []Turn{{Role: RoleUser, Content: "x"}}}, Settings{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_tokens")
	})
}

func TestAnthropicBackend_NotConfigured(t *testing.T) {
	b := NewAnthropicBackend(DefaultAnthropicConfig(" "))
	_, err := b.Send(context.Background(), "m", Conversation{}, Settings{})
	assert.ErrorIs(t, err, ErrNotInitialized)
}
