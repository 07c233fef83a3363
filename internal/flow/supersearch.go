package flow

import (
	"context"
	"fmt"

	"ukiyo/internal/envelope"
	"ukiyo/internal/logging"
	"ukiyo/internal/provider"
)

const (
	// SuperSearchRounds is the number of sequential search rounds.
	SuperSearchRounds = 5
	// MaxRoundRetries caps supplementary searches per round.
	MaxRoundRetries = 2

	roundSummaryChars = 500
	superSearchSource = "SuperSearch"
)

// SuperSearch runs five search rounds, each told what earlier rounds found,
// and merges them with Claude. The per-round fragments are not exposed.
func (e *Engine) SuperSearch(ctx context.Context, in Input, env *envelope.Envelope) {
	if e.p.Search == nil || e.p.Claude == nil {
		const msg = "Required AI clients are not initialized."
		env.Fail(msg, envelope.Failure(superSearchSource, "%s", msg))
		return
	}

	stamp := in.stamp()
	results := make([]string, 0, SuperSearchRounds)
	summaries := make([]string, 0, SuperSearchRounds)
	var lastFailure *envelope.Result
	found := false

	for round := 0; round < SuperSearchRounds; round++ {
		var query string
		if round == 0 {
			query = superSearchFirstPrompt(stamp, in.Prompt)
		} else {
			query = superSearchRoundPrompt(stamp, in.Prompt, summaries)
		}

		res := e.search(ctx, in, query)
		env.Record(res)
		env.SearchFragments = append(env.SearchFragments, res)

		text := DedupLines(res.Response)
		for tries := 0; charCount(text) < MinSearchChars && res.Error == "" && tries < MaxRoundRetries; tries++ {
			extra := e.search(ctx, in, freshAngle(query))
			env.Record(extra)
			if extra.Response != "" {
				text = DedupLines(text + "\n" + extra.Response)
			}
		}
		if res.Error != "" {
			logging.FlowWarn("[supersearch] round %d failed: %s", round+1, res.Error)
			failed := res
			lastFailure = &failed
		}
		if text != "" {
			found = true
		}

		results = append(results, text)
		summaries = append(summaries, head(text, roundSummaryChars))
	}

	if !found {
		env.SearchFragments = []envelope.Result{}
		r := envelope.Failure(superSearchSource, "no search round returned any text")
		if lastFailure != nil {
			r = *lastFailure
		}
		env.OverallError = fmt.Sprintf("SuperSearch: every search round failed: %s", reason(r))
		env.SetFinal(r)
		return
	}

	merged := e.chat(ctx, provider.Claude, e.request(in, superSearchMergePrompt(results), superSearchMergeInstruction))
	env.SearchFragments = []envelope.Result{}
	if !usable(merged) {
		env.Fail(fmt.Sprintf("SuperSearch: merge failed: %s", reason(merged)), merged)
		return
	}
	env.Record(merged)
	merged.Response = EnhanceSpacing(merged.Response)
	env.SetFinal(merged)
}
