package flow

import (
	"context"
	"fmt"

	"ukiyo/internal/envelope"
	"ukiyo/internal/logging"
	"ukiyo/internal/provider"
)

// MinSearchChars is the length a search answer must reach before a
// supplementary search is skipped.
const MinSearchChars = 1000

// Quality runs the balance mode: one dated Perplexity search, at most one
// supplementary search when the answer is short, then a Claude composition.
func (e *Engine) Quality(ctx context.Context, in Input, env *envelope.Envelope) {
	if e.p.Search == nil {
		r := notInitialized(provider.Perplexity)
		env.Fail(r.Error, r)
		return
	}
	if e.p.Claude == nil {
		r := notInitialized(provider.Claude)
		env.Fail(r.Error, r)
		return
	}

	query := qualitySearchPrompt(in.stamp(), in.Prompt, in.History)
	first := e.search(ctx, in, query)
	if !usable(first) {
		env.Fail(fmt.Sprintf("Quality mode: search failed: %s", reason(first)), first)
		return
	}
	env.Record(first)

	text := DedupLines(first.Response)
	if charCount(text) < MinSearchChars {
		logging.FlowDebug("[balance] search answer short (%d chars), one supplementary search", charCount(text))
		extra := e.search(ctx, in, freshAngle(query))
		env.Record(extra)
		if extra.Response != "" {
			text = DedupLines(text + "\n" + extra.Response)
		}
	}
	env.SetStep(envelope.SlotComprehensive, envelope.Result{Source: first.Source, Response: text, Links: first.Links})

	final := e.chat(ctx, provider.Claude, e.request(in, qualityComposePrompt(text), qualityComposeInstruction))
	if !usable(final) {
		env.Fail(fmt.Sprintf("Quality mode: composition failed: %s", reason(final)), final)
		return
	}
	env.Record(final)
	env.SetFinal(final)
}
