package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
	"ukiyo/internal/logging"
)

// NoTextResponse stands in for an empty but cleanly finished Claude reply.
const NoTextResponse = "(no text response from the model)"

// AnthropicConfig holds configuration for the Claude messages client.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	HTTPClient *http.Client
}

// DefaultAnthropicConfig returns sensible defaults.
func DefaultAnthropicConfig(apiKey string) AnthropicConfig {
	return AnthropicConfig{
		APIKey:     apiKey,
		BaseURL:    "https://api.anthropic.com/",
		MaxRetries: 2,
	}
}

// AnthropicBackend implements Backend for Claude.
type AnthropicBackend struct {
	client     anthropic.Client
	configured bool
}

// NewAnthropicBackend creates a new Claude backend.
func NewAnthropicBackend(cfg AnthropicConfig) *AnthropicBackend {
	opts := []aoption.RequestOption{
		aoption.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		aoption.WithMaxRetries(cfg.MaxRetries),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, aoption.WithBaseURL(base))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, aoption.WithHTTPClient(cfg.HTTPClient))
	}
	return &AnthropicBackend{
		client:     anthropic.NewClient(opts...),
		configured: strings.TrimSpace(cfg.APIKey) != "",
	}
}

func (b *AnthropicBackend) Name() Name { return Claude }

// Claude rejects conversations that open with an assistant turn.
func (b *AnthropicBackend) Quirks() Quirks { return Quirks{NoLeadingAssistant: true} }

// Send runs one messages call.
func (b *AnthropicBackend) Send(ctx context.Context, model string, conv Conversation, s Settings) (Reply, error) {
	if !b.configured {
		return Reply{}, ErrNotInitialized
	}

	maxTokens := int64(s.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  anthropicMessages(conv.Turns),
	}
	if s.Temperature > 0 {
		params.Temperature = anthropic.Float(s.Temperature)
	}
	if sys := strings.TrimSpace(conv.System); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	logging.APIDebug("[Claude] messages: model=%s turns=%d max_tokens=%d", model, len(params.Messages), maxTokens)
	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return Reply{}, err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	text := strings.TrimSpace(sb.String())

	reply := Reply{
		Text:         text,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	if text == "" {
		if msg.StopReason != anthropic.StopReasonEndTurn {
			return Reply{}, fmt.Errorf("empty response (stop_reason=%s)", msg.StopReason)
		}
		reply.Text = NoTextResponse
	}
	return reply, nil
}

func anthropicMessages(turns []Turn) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(t.Content)
		if t.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}
