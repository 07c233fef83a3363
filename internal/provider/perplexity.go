package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	oshared "github.com/openai/openai-go/shared"
	"ukiyo/internal/envelope"
	"ukiyo/internal/logging"
	"ukiyo/internal/memory"
	"ukiyo/internal/usage"
)

var linkPattern = regexp.MustCompile(`https?://[^\s]+`)

// ExtractLinks returns every http(s) URL in text, in order of appearance.
func ExtractLinks(text string) []string {
	return linkPattern.FindAllString(text, -1)
}

// PerplexitySearcher implements Searcher against Perplexity's OpenAI-compatible API.
type PerplexitySearcher struct {
	client     openai.Client
	configured bool
	persona    string
	settings   Settings
	tracker    *usage.Tracker
}

// DefaultPerplexityConfig returns the client config for api.perplexity.ai.
func DefaultPerplexityConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:     apiKey,
		BaseURL:    "https://api.perplexity.ai/",
		MaxRetries: 2,
	}
}

// NewPerplexitySearcher creates a new search adapter.
func NewPerplexitySearcher(cfg OpenAIConfig, persona string, s Settings, tracker *usage.Tracker) *PerplexitySearcher {
	return &PerplexitySearcher{
		client:     openai.NewClient(cfg.options()...),
		configured: strings.TrimSpace(cfg.APIKey) != "",
		persona:    persona,
		settings:   s,
		tracker:    tracker,
	}
}

// ComposeQuery prefixes the query with persona, memory block and background goal.
// Absent parts are omitted.
func ComposeQuery(persona string, req Request) string {
	var sb strings.Builder
	if p := strings.TrimSpace(persona); p != "" {
		sb.WriteString(p)
		sb.WriteString("\n\n---\n\n")
	}
	if mem := memory.Format(req.Memories, req.MemoryMaxLength); mem != "" {
		sb.WriteString(mem)
		sb.WriteString("\n\n---\n\n")
	}
	if goal := strings.TrimSpace(req.Goal); goal != "" {
		fmt.Fprintf(&sb, "[Background goal: %s]\n\n", goal)
	}
	sb.WriteString(req.Prompt)
	return sb.String()
}

type searchOutcome struct {
	reply Reply
	err   error
}

// Search runs one search query. A blank query fails without a network call.
func (p *PerplexitySearcher) Search(ctx context.Context, req Request) envelope.Result {
	model := req.Model
	if model == "" {
		model = p.settings.Model
	}
	source := Label(Perplexity, model)
	log := logging.Get(logging.CategoryProvider)

	if strings.TrimSpace(req.Prompt) == "" {
		return envelope.Result{Source: source, Error: "Search query is empty."}
	}
	if !p.configured {
		return envelope.Result{Source: source, Error: describeError(Perplexity, ErrNotInitialized, 0)}
	}

	query := ComposeQuery(p.persona, req)
	log.Debug("[Perplexity] search: model=%s query=%q", model, logging.Truncate(query, 100))

	if p.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.settings.Timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan searchOutcome, 1)
	go func() {
		reply, err := p.query(ctx, model, query)
		done <- searchOutcome{reply: reply, err: err}
	}()

	var out searchOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = searchOutcome{err: ctx.Err()}
	}

	if out.err != nil {
		log.Error("[Perplexity] search failed after %v: %v", time.Since(start), out.err)
		return envelope.Result{Source: source, Error: describeError(Perplexity, out.err, p.settings.Timeout)}
	}

	tracker := p.tracker
	if tracker == nil {
		tracker = usage.FromContext(ctx)
	}
	if tracker != nil {
		tracker.Track(ctx, model, string(Perplexity), out.reply.InputTokens, out.reply.OutputTokens, "search")
	}

	links := ExtractLinks(out.reply.Text)
	log.Info("[Perplexity] completed in %v: response_len=%d links=%d", time.Since(start), len([]rune(out.reply.Text)), len(links))
	return envelope.Result{Source: source, Response: out.reply.Text, Links: links}
}

func (p *PerplexitySearcher) query(ctx context.Context, model, query string) (Reply, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    oshared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(query)},
	})
	if err != nil {
		return Reply{}, err
	}
	if len(resp.Choices) == 0 {
		return Reply{}, errors.New("no completion returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Reply{}, errors.New("empty response from search")
	}
	return Reply{
		Text:         text,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}
