package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukiyo/internal/usage"
)

type fakeBackend struct {
	mu     sync.Mutex
	name   Name
	quirks Quirks
	reply  Reply
	err    error
	delay  time.Duration
	calls  []Conversation
	models []string
}

func (f *fakeBackend) Name() Name     { return f.name }
func (f *fakeBackend) Quirks() Quirks { return f.quirks }

func (f *fakeBackend) Send(ctx context.Context, model string, conv Conversation, s Settings) (Reply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, conv)
	f.models = append(f.models, model)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		}
	}
	return f.reply, f.err
}

func TestChat_Success(t *testing.T) {
	b := &fakeBackend{name: OpenAI, reply: Reply{Text: "hello", InputTokens: 3, OutputTokens: 4}}
	tracker := usage.NewMemoryTracker()
	c := NewClient(b, "PERSONA", Settings{Model: "gpt-4o", Timeout: time.Second}, tracker)

	res := c.Chat(context.Background(), Request{Prompt: "hi", Instruction: "be nice"})

	assert.True(t, res.OK())
	assert.Equal(t, "OpenAI (gpt-4o)", res.Source)
	assert.Equal(t, "hello", res.Response)
	require.Len(t, b.calls, 1)
	assert.Equal(t, "PERSONA\n\nbe nice", b.calls[0].System)

	stats := tracker.Stats()
	assert.Equal(t, int64(7), stats.ByProvider["openai"].Total)
}

func TestChat_PerCallModel(t *testing.T) {
	b := &fakeBackend{name: Claude, reply: Reply{Text: "ok"}}
	c := NewClient(b, "", Settings{Model: "default-model"}, nil)

	res := c.Chat(context.Background(), Request{Prompt: "hi", Model: "claude-special"})

	assert.Equal(t, "Claude (claude-special)", res.Source)
	assert.Equal(t, []string{"claude-special"}, b.models)
}

func TestChat_EmptyPromptMakesNoCall(t *testing.T) {
	b := &fakeBackend{name: Cohere, reply: Reply{Text: "never"}}
	c := NewClient(b, "persona", Settings{Model: "command"}, nil)

	res := c.Chat(context.Background(), Request{Prompt: "   ", Instruction: "x"})

	assert.False(t, res.OK())
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, b.calls)
}

func TestChat_ErrorConversion(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not initialized", ErrNotInitialized, "Gemini client not initialized."},
		{"generic", errors.New("boom"), "Gemini API error: boom"},
		{"cancelled", context.Canceled, "Gemini request cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{name: Gemini, err: tt.err}
			res := NewClient(b, "", Settings{Model: "gemini-2.5-pro"}, nil).Chat(context.Background(), Request{Prompt: "p"})
			assert.Equal(t, tt.want, res.Error)
			assert.Equal(t, "Gemini (gemini-2.5-pro)", res.Source)
			assert.Empty(t, res.Response)
		})
	}
}

func TestChat_Timeout(t *testing.T) {
	b := &fakeBackend{name: OpenAI, delay: time.Second, reply: Reply{Text: "late"}}
	c := NewClient(b, "", Settings{Model: "m", Timeout: 20 * time.Millisecond}, nil)

	res := c.Chat(context.Background(), Request{Prompt: "p"})

	assert.Contains(t, res.Error, "timed out")
}

func TestChat_UsesContextTracker(t *testing.T) {
	b := &fakeBackend{name: OpenAI, reply: Reply{Text: "x", InputTokens: 1, OutputTokens: 1}}
	tracker := usage.NewMemoryTracker()
	ctx := usage.WithScope(usage.NewContext(context.Background(), tracker), usage.Scope{Mode: "fastchat"})

	NewClient(b, "", Settings{Model: "m"}, nil).Chat(ctx, Request{Prompt: "p"})

	assert.Equal(t, int64(2), tracker.Stats().ByMode["fastchat"].Total)
}

func TestChat_PackageLevelUsesDefaults(t *testing.T) {
	b := &fakeBackend{name: Claude, reply: Reply{Text: "x"}}
	res := Chat(context.Background(), b, "", Request{Prompt: "p"})
	assert.Equal(t, "Claude (claude-opus-4-20250514)", res.Source)
}

func TestDefaultSettings(t *testing.T) {
	tests := []struct {
		name    Name
		model   string
		temp    float64
		tokens  int
		timeout time.Duration
	}{
		{OpenAI, "gpt-4o", 0.7, 4096, 120 * time.Second},
		{Claude, "claude-opus-4-20250514", 0.6, 8192, 600 * time.Second},
		{Cohere, "command-a-03-2025", 0.7, 16000, 300 * time.Second},
		{Gemini, "gemini-2.5-pro", 0.6, 8192, 600 * time.Second},
		{Perplexity, "sonar-reasoning-pro", 0, 0, 300 * time.Second},
		{DeepL, "", 0, 0, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			s := DefaultSettings(tt.name)
			assert.Equal(t, tt.model, s.Model)
			assert.Equal(t, tt.temp, s.Temperature)
			assert.Equal(t, tt.tokens, s.MaxTokens)
			assert.Equal(t, tt.timeout, s.Timeout)
		})
	}
}
