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

type chatCompletionRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens int `json:"max_tokens"`
}

func newOpenAIServer(t *testing.T, status int, body string, seen *chatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIBackend_Send(t *testing.T) {
	var seen chatCompletionRequest
	srv := newOpenAIServer(t, http.StatusOK, `{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "  pong  "}}],
		"usage": {"prompt_tokens": 11, "completion_tokens": 5, "total_tokens": 16}
	}`, &seen)

	b := NewOpenAIBackend(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/"})
	conv := Conversation{System: "sys", Turns: []Turn{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
		{Role: RoleUser, Content: "ping"},
	}}

	reply, err := b.Send(context.Background(), "gpt-4o", conv, Settings{MaxTokens: 100, Temperature: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "pong", reply.Text)
	assert.Equal(t, 11, reply.InputTokens)
	assert.Equal(t, 5, reply.OutputTokens)

	assert.Equal(t, "gpt-4o", seen.Model)
	assert.Equal(t, 100, seen.MaxTokens)
	require.Len(t, seen.Messages, 4)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Equal(t, "sys", seen.Messages[0].Content)
	assert.Equal(t, "assistant", seen.Messages[2].Role)
	assert.Equal(t, "ping", seen.Messages[3].Content)
}

func TestOpenAIBackend_EmptyChoices(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusOK, `{"id": "x", "object": "chat.completion", "choices": []}`, nil)
	b := NewOpenAIBackend(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/"})

	_, err := b.Send(context.Background(), "gpt-4o", Conversation{Turns: []Turn{{Role: RoleUser, Content: "x"}}}, Settings{})
	assert.Error(t, err)
}

func TestOpenAIBackend_APIErrorThroughClient(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusBadRequest, `{"error": {"message": "bad model", "type": "invalid_request_error"}}`, nil)
	b := NewOpenAIBackend(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/"})
	c := NewClient(b, "", Settings{Model: "gpt-4o"}, nil)

	res := c.Chat(context.Background(), Request{Prompt: "x"})

	assert.Contains(t, res.Error, "OpenAI API error")
	assert.Empty(t, res.Response)
}

func TestOpenAIBackend_NotConfigured(t *testing.T) {
	b := NewOpenAIBackend(DefaultOpenAIConfig(""))
	_, err := b.Send(context.Background(), "gpt-4o", Conversation{}, Settings{})
	assert.ErrorIs(t, err, ErrNotInitialized)
}
