package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
	oshared "github.com/openai/openai-go/shared"
	"ukiyo/internal/logging"
)

// OpenAIConfig configures an OpenAI-compatible chat completions client.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	HTTPClient *http.Client
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:     apiKey,
		BaseURL:    "https://api.openai.com/v1/",
		MaxRetries: 2,
	}
}

func (c OpenAIConfig) options() []ooption.RequestOption {
	opts := []ooption.RequestOption{
		ooption.WithAPIKey(strings.TrimSpace(c.APIKey)),
		ooption.WithMaxRetries(c.MaxRetries),
	}
	if base := strings.TrimSpace(c.BaseURL); base != "" {
		opts = append(opts, ooption.WithBaseURL(base))
	}
	if c.HTTPClient != nil {
		opts = append(opts, ooption.WithHTTPClient(c.HTTPClient))
	}
	return opts
}

// OpenAIBackend implements Backend for OpenAI chat completions.
type OpenAIBackend struct {
	client     openai.Client
	configured bool
}

// NewOpenAIBackend creates a new OpenAI backend. Without an API key every
// call fails with ErrNotInitialized.
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	return &OpenAIBackend{
		client:     openai.NewClient(cfg.options()...),
		configured: strings.TrimSpace(cfg.APIKey) != "",
	}
}

func (b *OpenAIBackend) Name() Name     { return OpenAI }
func (b *OpenAIBackend) Quirks() Quirks { return Quirks{} }

// Send runs one chat completion.
func (b *OpenAIBackend) Send(ctx context.Context, model string, conv Conversation, s Settings) (Reply, error) {
	if !b.configured {
		return Reply{}, ErrNotInitialized
	}

	params := openai.ChatCompletionNewParams{
		Model:    oshared.ChatModel(model),
		Messages: openAIMessages(conv),
	}
	if s.Temperature > 0 {
		params.Temperature = openai.Float(s.Temperature)
	}
	if s.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(s.MaxTokens))
	}

	logging.APIDebug("[OpenAI] chat.completions: model=%s messages=%d", model, len(params.Messages))
	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Reply{}, err
	}
	if len(resp.Choices) == 0 {
		return Reply{}, errors.New("no completion returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Reply{}, errors.New("empty response from model")
	}
	return Reply{
		Text:         text,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func openAIMessages(conv Conversation) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(conv.Turns)+1)
	if conv.System != "" {
		out = append(out, openai.SystemMessage(conv.System))
	}
	for _, t := range conv.Turns {
		switch t.Role {
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(t.Content))
		case RoleSystem:
			out = append(out, openai.SystemMessage(t.Content))
		default:
			out = append(out, openai.UserMessage(t.Content))
		}
	}
	return out
}
