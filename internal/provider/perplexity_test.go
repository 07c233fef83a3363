package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukiyo/internal/memory"
	"ukiyo/internal/usage"
)

func TestExtractLinks(t *testing.T) {
	text := "see https://a.example/x and http://b.example/y?q=1\nnothing else"
	assert.Equal(t, []string{"https://a.example/x", "http://b.example/y?q=1"}, ExtractLinks(text))
	assert.Empty(t, ExtractLinks("no links here"))
}

func TestComposeQuery(t *testing.T) {
	t.Run("all parts", func(t *testing.T) {
		req := Request{
			Prompt:   "what is new",
			Goal:     "write a report",
			Memories: []memory.Record{{Title: "pref", Content: "likes cats", Priority: 1}},
		}
		got := ComposeQuery("PERSONA", req)

		assert.Regexp(t, `^PERSONA\n\n---\n\n`, got)
		assert.Contains(t, got, memory.Header)
		assert.Contains(t, got, "likes cats")
		assert.Contains(t, got, "[Background goal: write a report]\n\nwhat is new")
	})

	t.Run("query only", func(t *testing.T) {
		assert.Equal(t, "what is new", ComposeQuery("", Request{Prompt: "what is new"}))
	})
}

func TestPerplexitySearcher_Search(t *testing.T) {
	var sent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var body chatCompletionRequest
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		require.Len(t, body.Messages, 1)
		sent = body.Messages[0].Content
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "p1", "object": "chat.completion", "model": "sonar-reasoning-pro",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "found https://news.example/1"}}],
			"usage": {"prompt_tokens": 4, "completion_tokens": 6, "total_tokens": 10}}`)
	}))
	defer srv.Close()

	tracker := usage.NewMemoryTracker()
	s := NewPerplexitySearcher(OpenAIConfig{APIKey: "pk", BaseURL: srv.URL + "/"}, "PERSONA",
		Settings{Model: "sonar-reasoning-pro", Timeout: 5 * time.Second}, tracker)

	res := s.Search(context.Background(), Request{Prompt: "latest news"})

	require.True(t, res.OK(), res.Error)
	assert.Equal(t, "Perplexity (sonar-reasoning-pro)", res.Source)
	assert.Equal(t, []string{"https://news.example/1"}, res.Links)
	assert.Equal(t, "PERSONA\n\n---\n\nlatest news", sent)
	assert.Equal(t, int64(10), tracker.Stats().ByOperation["search"].Total)
}

func TestPerplexitySearcher_Guards(t *testing.T) {
	s := NewPerplexitySearcher(DefaultPerplexityConfig(""), "", DefaultSettings(Perplexity), nil)

	res := s.Search(context.Background(), Request{Prompt: "  "})
	assert.Equal(t, "Search query is empty.", res.Error)

	res = s.Search(context.Background(), Request{Prompt: "q"})
	assert.Equal(t, "Perplexity client not initialized.", res.Error)
}
