package flow

import (
	"context"
	"fmt"
	"strings"

	"ukiyo/internal/envelope"
	"ukiyo/internal/provider"
)

const deepSearchSource = "Perplexity Deep Search"

// FastChat is a single OpenAI call with the conversation context.
func (e *Engine) FastChat(ctx context.Context, in Input, env *envelope.Envelope) {
	r := e.chat(ctx, provider.OpenAI, e.request(in, in.Prompt, fastChatInstruction))
	if !usable(r) {
		env.Fail(fmt.Sprintf("Fast chat failed: %s", reason(r)), r)
		return
	}
	env.Record(r)
	env.SetFinal(r)
}

// DeepSearch is a single Perplexity search whose answer is also the search summary.
func (e *Engine) DeepSearch(ctx context.Context, in Input, env *envelope.Envelope) {
	r := e.search(ctx, in, in.Prompt)
	if !usable(r) {
		env.SearchSummaryText = reason(r)
		env.Fail(reason(r), envelope.Result{Source: deepSearchSource, Error: reason(r)})
		return
	}
	env.Record(r)
	env.SearchSummaryText = r.Response
	env.SetFinal(envelope.Result{
		Source:   fmt.Sprintf("%s (%s)", deepSearchSource, modelOf(r.Source)),
		Response: r.Response,
		Links:    r.Links,
	})
}

// UltraSearch is a single Gemini call whose answer is also the search summary.
func (e *Engine) UltraSearch(ctx context.Context, in Input, env *envelope.Envelope) {
	r := e.chat(ctx, provider.Gemini, e.request(in, in.Prompt, ""))
	if !usable(r) {
		env.SearchSummaryText = reason(r)
		env.Fail(fmt.Sprintf("UltraSearch (Gemini) failed: %s", reason(r)), r)
		return
	}
	env.Record(r)
	env.SearchSummaryText = r.Response
	env.SetFinal(r)
}

// modelOf extracts "m" from a "<Provider> (m)" source label.
func modelOf(source string) string {
	open := strings.LastIndex(source, "(")
	if open < 0 || !strings.HasSuffix(source, ")") {
		return source
	}
	return source[open+1 : len(source)-1]
}
