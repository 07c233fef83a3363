package flow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukiyo/internal/envelope"
	"ukiyo/internal/provider"
)

func TestSuperWriting_UnknownGenreMakesNoCalls(t *testing.T) {
	f := newFakes()

	env := run(t, New(f.providers()), ModeSuperWriting, Input{Prompt: "hi", Genre: "poetry"})

	assert.Zero(t, f.total())
	assert.Equal(t, "Unknown genre: poetry for Super Writing Mode.", env.OverallError)
	require.NotNil(t, env.Final)
	assert.Equal(t, orchestratorSource, env.Final.Source)
}

func TestSuperWriting_UnknownGenreKeepsPercentVerbatim(t *testing.T) {
	f := newFakes()

	env := run(t, New(f.providers()), ModeSuperWriting, Input{Prompt: "hi", Genre: "100%d_off"})

	want := "Unknown genre: 100%d_off for Super Writing Mode."
	assert.Equal(t, want, env.OverallError)
	require.NotNil(t, env.Final)
	assert.Equal(t, want, env.Final.Error)
}

func TestSuperWriting_ShortText(t *testing.T) {
	f := newFakes()
	f.search.queue = []envelope.Result{f.search.ok("facts about cats")}
	f.claude.queue = []envelope.Result{f.claude.ok("A short piece.")}

	env := run(t, New(f.providers()), ModeSuperWriting, Input{Prompt: "cats", Genre: " Short_Text "})

	assert.Contains(t, f.claude.req(0).Prompt, "facts about cats")
	assert.Equal(t, "A short piece.", env.FinalText())
	assert.Len(t, env.UltraWritingModeDetails, 2)
	assert.Empty(t, env.OverallError)
}

func TestSuperWriting_ThesisReport(t *testing.T) {
	f := newFakes()
	f.search.queue = []envelope.Result{f.search.ok("research")}
	f.gemini.queue = []envelope.Result{f.gemini.ok("outline")}
	f.openai.queue = []envelope.Result{f.openai.ok("questions")}
	f.claude.queue = []envelope.Result{f.claude.ok("report")}

	env := run(t, New(f.providers()), ModeSuperWriting, Input{Prompt: "energy", Goal: "write a thesis", Genre: GenreThesisReport})

	assert.Equal(t, "report", env.FinalText())
	assert.Len(t, env.UltraWritingModeDetails, 4)

	final := f.claude.req(0)
	assert.Empty(t, final.Goal)
	assert.Contains(t, final.Instruction, "write a thesis")
	assert.Contains(t, final.Prompt, "questions")
	assert.Equal(t, "write a thesis", f.gemini.req(0).Goal)

	assert.Equal(t, provider.TaskSearchFormatting, f.gemini.req(0).Task)
	assert.Equal(t, provider.TaskSearchFormatting, f.openai.req(0).Task)
	assert.Equal(t, provider.TaskSearchFormatting, final.Task)
}

func TestSuperWriting_ThesisStopsAtFailedStage(t *testing.T) {
	f := newFakes()
	f.search.queue = []envelope.Result{f.search.ok("research")}
	f.gemini.queue = []envelope.Result{f.gemini.ok("outline")}
	f.openai.queue = []envelope.Result{f.openai.fail("OpenAI API error: quota")}

	env := run(t, New(f.providers()), ModeSuperWriting, Input{Prompt: "energy", Genre: GenreThesisReport})

	assert.Zero(t, f.claude.calls())
	assert.Equal(t, "SuperWriting (Thesis/Report) - Step 3 OpenAI failed.", env.OverallError)
	assert.Len(t, env.UltraWritingModeDetails, 3)
	require.NotNil(t, env.Final)
	assert.Equal(t, "OpenAI API error: quota", env.Final.Error)
}

func TestSuperWriting_SummarySkipsResearchForLongInput(t *testing.T) {
	f := newFakes()
	f.gemini.queue = []envelope.Result{f.gemini.ok("structured")}
	f.cohere.queue = []envelope.Result{f.cohere.ok("classified")}
	text := strings.Repeat("本", TextInputThreshold+1)

	env := run(t, New(f.providers()), ModeSuperWriting, Input{Prompt: text, Genre: GenreSummaryClassif})

	assert.Zero(t, f.search.calls())
	assert.Contains(t, f.gemini.req(0).Prompt, text)
	assert.Equal(t, "classified", env.FinalText())
	assert.Len(t, env.UltraWritingModeDetails, 2)
}

func TestSuperWriting_SummaryResearchesShortInput(t *testing.T) {
	f := newFakes()
	f.search.queue = []envelope.Result{f.search.ok("background")}
	f.gemini.queue = []envelope.Result{f.gemini.ok("structured")}
	f.cohere.queue = []envelope.Result{f.cohere.fail("Cohere API error: 500")}

	env := run(t, New(f.providers()), ModeSuperWriting, Input{Prompt: "tea", Genre: GenreSummaryClassif})

	assert.Equal(t, 1, f.search.calls())
	assert.Contains(t, f.gemini.req(0).Prompt, "background")
	assert.Equal(t, "SuperWriting (Summary/Classify) - Step 3 Cohere failed: Cohere API error: 500", env.OverallError)
	assert.Len(t, env.UltraWritingModeDetails, 3)
}
