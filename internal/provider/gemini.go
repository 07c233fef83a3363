package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
	"ukiyo/internal/logging"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiBackend implements Backend for Gemini via the genai SDK.
type GeminiBackend struct {
	client *genai.Client
}

// NewGeminiBackend creates a new Gemini backend. Without an API key no SDK
// client is built and every call fails with ErrNotInitialized.
func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &GeminiBackend{}, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	if cfg.HTTPClient != nil {
		cc.HTTPClient = cfg.HTTPClient
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiBackend{client: client}, nil
}

func (b *GeminiBackend) Name() Name { return Gemini }

// Gemini has no system role here; instructions ride in the turn sequence.
func (b *GeminiBackend) Quirks() Quirks {
	return Quirks{
		NoSystemRole:       true,
		NoLeadingAssistant: true,
		RoleNames:          map[Role]string{RoleUser: "user", RoleAssistant: "model"},
	}
}

// Send runs one GenerateContent call.
func (b *GeminiBackend) Send(ctx context.Context, model string, conv Conversation, s Settings) (Reply, error) {
	if b.client == nil {
		return Reply{}, ErrNotInitialized
	}

	gc := &genai.GenerateContentConfig{}
	if s.Temperature > 0 {
		gc.Temperature = genai.Ptr(float32(s.Temperature))
	}
	if s.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(s.MaxTokens)
	}

	contents := geminiContents(conv, b.Quirks())
	logging.APIDebug("[Gemini] generateContent: model=%s contents=%d", model, len(contents))

	resp, err := b.client.Models.GenerateContent(ctx, model, contents, gc)
	if err != nil {
		return Reply{}, err
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return Reply{}, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Reply{}, errors.New("empty response from model")
	}

	reply := Reply{Text: text}
	if resp.UsageMetadata != nil {
		reply.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		reply.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return reply, nil
}

// geminiContents maps turns onto genai contents. A leftover system text
// (only possible when quirks were bypassed) becomes a leading user turn.
func geminiContents(conv Conversation, q Quirks) []*genai.Content {
	out := make([]*genai.Content, 0, len(conv.Turns)+1)
	if conv.System != "" {
		out = append(out, genai.NewContentFromText(conv.System, genai.Role(q.RoleName(RoleUser))))
	}
	for _, t := range conv.Turns {
		out = append(out, genai.NewContentFromText(t.Content, genai.Role(q.RoleName(t.Role))))
	}
	return out
}
