package flow

import (
	"context"
	"fmt"
	"strings"

	"ukiyo/internal/envelope"
	"ukiyo/internal/logging"
	"ukiyo/internal/provider"
)

// Super-writing genres.
const (
	GenreLongform       = "longform_composition"
	GenreShortText      = "short_text"
	GenreThesisReport   = "thesis_report"
	GenreSummaryClassif = "summary_classification"
)

// TextInputThreshold is the prompt length above which summary_classification
// treats the prompt as the text itself and skips research.
const TextInputThreshold = 500

const orchestratorSource = "Super Writing Orchestrator"

// SuperWriting dispatches to the genre sub-flow named by in.Genre. An unknown
// genre is reported on the envelope without any provider call.
func (e *Engine) SuperWriting(ctx context.Context, in Input, env *envelope.Envelope) {
	genre := strings.ToLower(strings.TrimSpace(in.Genre))
	logging.Flow("[superwriting] genre=%q", genre)

	switch genre {
	case GenreLongform:
		e.Drafting(ctx, in, env)
	case GenreShortText:
		e.shortText(ctx, in, env)
	case GenreThesisReport:
		e.thesisReport(ctx, in, env)
	case GenreSummaryClassif:
		e.summaryClassification(ctx, in, env)
	default:
		msg := fmt.Sprintf("Unknown genre: %s for Super Writing Mode.", in.Genre)
		logging.FlowError("[superwriting] %s", msg)
		env.Fail(msg, envelope.Failure(orchestratorSource, "%s", msg))
	}
}

// stagePipeline runs sub-flow stages in order and stops at the first stage
// without usable text. Every attempt lands in the envelope trail and in
// ultra_writing_mode_details.
type stagePipeline struct {
	env   *envelope.Envelope
	label string
	mark  int
}

func (e *Engine) newPipeline(env *envelope.Envelope, label string) *stagePipeline {
	return &stagePipeline{env: env, label: label, mark: len(env.Details)}
}

// step records r and reports whether the pipeline may continue. failMsg is
// the overall error used when r is unusable; a "%s" in it receives the reason.
func (p *stagePipeline) step(r envelope.Result, failMsg string) bool {
	if usable(r) {
		p.env.Record(r)
		logging.FlowDebug("[%s] stage ok: source=%s len=%d", p.label, r.Source, charCount(r.Response))
		return true
	}
	msg := failMsg
	if strings.Contains(msg, "%s") {
		msg = fmt.Sprintf(failMsg, reason(r))
	}
	logging.FlowError("[%s] %s", p.label, msg)
	p.env.Fail(msg, r)
	p.finish()
	return false
}

// final records the last stage, makes it the answer and closes the pipeline.
func (p *stagePipeline) final(r envelope.Result, failMsg string) {
	if !p.step(r, failMsg) {
		return
	}
	p.env.SetFinal(r)
	p.finish()
}

func (p *stagePipeline) finish() {
	p.env.UltraWritingModeDetails = detailsSince(p.env, p.mark)
}

func (e *Engine) shortText(ctx context.Context, in Input, env *envelope.Envelope) {
	p := e.newPipeline(env, "superwriting/short_text")

	research := e.search(ctx, in, shortTextSearchPrompt(in.Prompt))
	if !p.step(research, "SuperWriting (Short Text) - Perplexity failed.") {
		return
	}

	draft := e.chat(ctx, provider.Claude, e.request(in, shortTextWritePrompt(in.Prompt, research.Response), shortTextInstruction))
	p.final(draft, "SuperWriting (Short Text) - Claude failed: %s")
}

func (e *Engine) thesisReport(ctx context.Context, in Input, env *envelope.Envelope) {
	p := e.newPipeline(env, "superwriting/thesis_report")

	research := e.search(ctx, in, thesisResearchPrompt(in.Prompt))
	if !p.step(research, "SuperWriting (Thesis/Report) - Step 1 Perplexity failed.") {
		return
	}

	// stages 2 to 4 are objective: no persona
	outlineReq := e.request(in, thesisOutlinePrompt(in.Prompt, research.Response), thesisOutlineInstruction)
	outlineReq.Task = provider.TaskSearchFormatting
	outline := e.chat(ctx, provider.Gemini, outlineReq)
	if !p.step(outline, "SuperWriting (Thesis/Report) - Step 2 Gemini failed.") {
		return
	}

	questionsReq := e.request(in, thesisQuestionsPrompt(in.Prompt, research.Response, outline.Response), thesisQuestionsInstruction)
	questionsReq.Task = provider.TaskSearchFormatting
	questions := e.chat(ctx, provider.OpenAI, questionsReq)
	if !p.step(questions, "SuperWriting (Thesis/Report) - Step 3 OpenAI failed.") {
		return
	}

	// The goal travels inside the instruction here, not as a reminder line.
	req := e.request(in, thesisDraftPrompt(in.Prompt, research.Response, outline.Response, questions.Response), thesisDraftInstruction(in.Goal))
	req.Goal = ""
	req.Task = provider.TaskSearchFormatting
	p.final(e.chat(ctx, provider.Claude, req), "SuperWriting (Thesis/Report) - Step 4 Claude failed: %s")
}

func (e *Engine) summaryClassification(ctx context.Context, in Input, env *envelope.Envelope) {
	p := e.newPipeline(env, "superwriting/summary_classification")

	source := in.Prompt
	if charCount(in.Prompt) <= TextInputThreshold {
		research := e.search(ctx, in, summarySearchPrompt(in.Prompt))
		if !p.step(research, "SuperWriting (Summary/Classify) - Perplexity failed.") {
			return
		}
		source = research.Response
	} else {
		logging.FlowDebug("[superwriting/summary_classification] input is %d chars, research skipped", charCount(in.Prompt))
	}

	structured := e.chat(ctx, provider.Gemini, e.request(in, summaryStructurePrompt(source), summaryStructureInstruction))
	if !p.step(structured, "SuperWriting (Summary/Classify) - Step 2 Gemini failed.") {
		return
	}

	p.final(e.chat(ctx, provider.Cohere, e.request(in, summaryClassifyPrompt(structured.Response), summaryClassifyInstruction)),
		"SuperWriting (Summary/Classify) - Step 3 Cohere failed: %s")
}
