package flow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukiyo/internal/envelope"
)

func fixedNow() time.Time {
	return time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
}

func TestQuality_LongSearchSkipsSupplement(t *testing.T) {
	f := newFakes()
	long := strings.Repeat("a", MinSearchChars+10)
	f.search.queue = []envelope.Result{f.search.ok(long)}
	f.claude.queue = []envelope.Result{f.claude.ok("composed")}

	env := run(t, New(f.providers()), ModeBalance, Input{Prompt: "tea", Now: fixedNow})

	assert.Equal(t, 1, f.search.calls())
	assert.Contains(t, f.search.req(0).Prompt, "2025-05-01 09:30:00")
	assert.Contains(t, f.search.req(0).Prompt, "tea")
	require.NotNil(t, env.Step4Comprehensive)
	assert.Equal(t, long, env.Step4Comprehensive.Response)
	assert.Equal(t, "composed", env.FinalText())
	assert.Empty(t, env.OverallError)
	assert.Len(t, env.Details, 2)
}

func TestQuality_ShortSearchGetsOneSupplement(t *testing.T) {
	f := newFakes()
	f.search.queue = []envelope.Result{f.search.ok("line one"), f.search.ok("line two\nline one")}
	f.claude.queue = []envelope.Result{f.claude.ok("composed")}

	env := run(t, New(f.providers()), ModeBalance, Input{Prompt: "tea"})

	// Still short after the supplement, but there is never a third search.
	assert.Equal(t, 2, f.search.calls())
	require.NotNil(t, env.Step4Comprehensive)
	assert.Equal(t, "line one\nline two", env.Step4Comprehensive.Response)
	assert.Contains(t, f.claude.req(0).Prompt, "line one\nline two")
	assert.Equal(t, "composed", env.FinalText())
}

func TestQuality_FirstSearchFailure(t *testing.T) {
	f := newFakes()
	f.search.queue = []envelope.Result{f.search.fail("Perplexity API error: boom")}

	env := run(t, New(f.providers()), ModeBalance, Input{Prompt: "tea"})

	assert.Zero(t, f.claude.calls())
	assert.Len(t, env.Details, 1)
	assert.Equal(t, "Quality mode: search failed: Perplexity API error: boom", env.OverallError)
	require.NotNil(t, env.Final)
	assert.Equal(t, "Perplexity API error: boom", env.Final.Error)
}

func TestQuality_CompositionFailure(t *testing.T) {
	f := newFakes()
	f.search.queue = []envelope.Result{f.search.ok(strings.Repeat("b", MinSearchChars))}
	f.claude.queue = []envelope.Result{f.claude.fail("Claude request timed out")}

	env := run(t, New(f.providers()), ModeBalance, Input{Prompt: "tea"})

	assert.Equal(t, "Quality mode: composition failed: Claude request timed out", env.OverallError)
	assert.NotNil(t, env.Step4Comprehensive)
	_, _, status := env.Outcome()
	assert.Equal(t, envelope.StatusError, status)
}

func TestQuality_MissingClaudeMakesNoCalls(t *testing.T) {
	f := newFakes()
	p := f.providers()
	p.Claude = nil

	env := run(t, New(p), ModeBalance, Input{Prompt: "tea"})

	assert.Zero(t, f.search.calls())
	assert.Equal(t, "Claude client not initialized.", env.OverallError)
}
