package flow

import (
	"context"
	"fmt"
	"strings"

	"ukiyo/internal/envelope"
	"ukiyo/internal/logging"
	"ukiyo/internal/provider"
)

const (
	writingFinalSource = "Writing Mode (W5 - Final Content)"
	writingErrorSource = "Writing Mode Error Step"
)

// writingStage is one W-stage of the writing flow.
type writingStage struct {
	id       string
	name     string
	provider provider.Name
	build    func(w *writingState) (prompt, instruction string)
	keep     func(w *writingState, text string)
}

// writingState carries the text each stage hands to the next.
type writingState struct {
	request, goal string
	requirements  string
	outline       string
	draft         string
	review        string
	revised       string
}

var writingStages = []writingStage{
	{
		id: "W0", name: "requirements", provider: provider.Gemini,
		build: func(w *writingState) (string, string) {
			return writingRequirementsPrompt(w.request), writingRequirementsInstruction(w.goal)
		},
		keep: func(w *writingState, text string) { w.requirements = writingRequirements(w.request, w.goal, text) },
	},
	{
		id: "W1", name: "outline", provider: provider.Claude,
		build: func(w *writingState) (string, string) {
			return writingOutlinePrompt(w.requirements), writingOutlineInstruction(w.goal, w.request)
		},
		keep: func(w *writingState, text string) { w.outline = text },
	},
	{
		id: "W2", name: "first draft", provider: provider.OpenAI,
		build: func(w *writingState) (string, string) {
			return writingDraftPrompt(w.requirements, w.outline), writingDraftInstruction(w.goal, w.request)
		},
		keep: func(w *writingState, text string) { w.draft = text },
	},
	{
		id: "W3", name: "review", provider: provider.Claude,
		build: func(w *writingState) (string, string) {
			return writingReviewPrompt(w.requirements, w.outline, w.draft), writingReviewInstruction(w.goal, w.request)
		},
		keep: func(w *writingState, text string) { w.review = text },
	},
	{
		id: "W4", name: "rewrite", provider: provider.Cohere,
		build: func(w *writingState) (string, string) {
			return writingRewritePrompt(w.draft, w.review), writingRewriteInstruction(w.goal, w.request)
		},
		keep: func(w *writingState, text string) { w.revised = text },
	},
	{
		id: "W5", name: "final polish", provider: provider.Gemini,
		build: func(w *writingState) (string, string) {
			return writingFinalPrompt(w.revised), writingFinalInstruction(w.goal, w.request)
		},
	},
}

// Writing runs the six-stage editorial pipeline: requirements, outline, first
// draft, review, rewrite, final polish. The first failing stage stops it.
func (e *Engine) Writing(ctx context.Context, in Input, env *envelope.Envelope) {
	mark := len(env.Details)
	defer func() { env.WritingModeDetails = detailsSince(env, mark) }()

	history := append(append([]provider.Turn(nil), in.History...), provider.Turn{Role: provider.RoleUser, Content: in.Prompt})
	state := &writingState{request: in.Prompt, goal: in.Goal}

	var last envelope.Result
	for _, st := range writingStages {
		prompt, instruction := st.build(state)
		req := e.request(in, prompt, instruction)
		req.History = history

		r := e.chat(ctx, st.provider, req)
		env.Record(r)
		if !usable(r) {
			cause := fmt.Sprintf("step %s (%s) failed: %s", st.id, st.name, reason(r))
			logging.FlowError("[writing] %s", cause)
			env.OverallError = "Writing mode error: " + cause
			if env.Final == nil {
				env.SetFinal(envelope.Result{Source: writingErrorSource, Error: cause, Response: apology(cause)})
			}
			return
		}
		logging.FlowDebug("[writing] %s ok: %s", st.id, logging.Truncate(strings.TrimSpace(r.Response), 300))
		if st.keep != nil {
			st.keep(state, r.Response)
		}
		last = r
	}

	env.SetFinal(envelope.Result{Source: writingFinalSource, Response: last.Response})
}
