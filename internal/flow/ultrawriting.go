package flow

import (
	"context"
	"fmt"
	"strings"

	"ukiyo/internal/envelope"
	"ukiyo/internal/logging"
	"ukiyo/internal/provider"
)

// MaxExpansionLoops caps the ultra writing length top-up loop.
const MaxExpansionLoops = 5

const (
	ultraFinalSource = "Ultra LongWriting Final"
	ultraErrorSource = "Ultra LongWriting Error"
)

// UltraWriting asks OpenAI for a chapter outline, writes every outline line as
// a chapter, then expands the text until it reaches DesiredChars or the loop
// cap. The conversation grows with each chapter so later calls see earlier ones.
func (e *Engine) UltraWriting(ctx context.Context, in Input, env *envelope.Envelope) {
	mark := len(env.Details)
	defer func() { env.UltraWritingModeDetails = detailsSince(env, mark) }()

	history := append(append([]provider.Turn(nil), in.History...), provider.Turn{Role: provider.RoleUser, Content: in.Prompt})
	call := func(prompt, instruction string) envelope.Result {
		req := e.request(in, prompt, instruction)
		req.History = history
		r := e.chat(ctx, provider.OpenAI, req)
		env.Record(r)
		return r
	}
	fail := func(cause string) {
		logging.FlowError("[ultrawriting] %s", cause)
		env.OverallError = "Ultra writing error: " + cause
		if env.Final == nil {
			env.SetFinal(envelope.Result{Source: ultraErrorSource, Error: cause, Response: apology(cause)})
		}
	}

	outline := call(outlinePrompt(in.Prompt), outlineInstruction)
	if !usable(outline) {
		fail("outline generation failed: " + reason(outline))
		return
	}

	chapters := outlineChapters(outline.Response)
	logging.Flow("[ultrawriting] %d chapters", len(chapters))

	var text strings.Builder
	for i, title := range chapters {
		r := call(chapterPrompt(title, text.String()), chapterInstruction)
		body := strings.TrimSpace(r.Response)
		if body == "" {
			logging.FlowWarn("[ultrawriting] chapter %d/%d %q produced nothing: %s", i+1, len(chapters), title, reason(r))
			continue
		}
		fmt.Fprintf(&text, "\n## %s\n\n%s\n", title, body)

		history = append(history, provider.Turn{Role: provider.RoleAssistant, Content: body})
		if i+1 < len(chapters) {
			history = append(history, provider.Turn{Role: provider.RoleUser, Content: nextChapterTurn(chapters[i+1])})
		} else {
			history = append(history, provider.Turn{Role: provider.RoleUser, Content: allChaptersDoneTurn})
		}
	}

	for loop := 0; text.Len() > 0 && in.DesiredChars > 0 && charCount(text.String()) < in.DesiredChars && loop < MaxExpansionLoops; loop++ {
		logging.FlowDebug("[ultrawriting] expansion %d: %d chars short", loop+1, in.DesiredChars-charCount(text.String()))
		r := call(expansionPrompt(text.String()), expansionInstruction)
		body := strings.TrimSpace(r.Response)
		if body == "" {
			break
		}
		fmt.Fprintf(&text, "\n\n%s\n", body)
		history = append(history, provider.Turn{Role: provider.RoleAssistant, Content: body})
		if charCount(text.String()) < in.DesiredChars {
			history = append(history, provider.Turn{Role: provider.RoleUser, Content: expandMoreTurn})
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		fail("no chapter produced any text")
		return
	}
	env.SetFinal(envelope.Result{Source: ultraFinalSource, Response: text.String()})
}

// outlineChapters returns the non-blank, trimmed lines of an outline.
func outlineChapters(outline string) []string {
	var chapters []string
	for _, line := range strings.Split(outline, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			chapters = append(chapters, t)
		}
	}
	return chapters
}
