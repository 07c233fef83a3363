package envelope

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_OK(t *testing.T) {
	assert.True(t, Result{Response: "hi"}.OK())
	assert.False(t, Result{Response: "  \n"}.OK())
	assert.False(t, Result{Response: "text", Error: "boom"}.OK())
	assert.False(t, Failure("OpenAI", "failed: %d", 500).OK())
	assert.Equal(t, "failed: 500", Failure("OpenAI", "failed: %d", 500).Error)
}

func TestEnvelope_SetFinalRespectsOverallError(t *testing.T) {
	env := New("p", "balance", "s1")

	env.Fail("stage 2 failed", Result{Source: "Claude", Error: "timeout"})
	require.NotNil(t, env.Final)
	assert.Equal(t, "Claude", env.Final.Source)

	ok := env.SetFinal(Result{Source: "Later", Response: "looks fine"})
	assert.False(t, ok)
	assert.Equal(t, "Claude", env.Final.Source)
}

func TestEnvelope_FailKeepsExistingFinal(t *testing.T) {
	env := New("p", "writing", "")
	env.SetFinal(Result{Source: "Gemini", Response: "draft"})

	env.Fail("late failure", Result{Source: "Cohere", Error: "429"})

	assert.Equal(t, "Gemini", env.Final.Source)
	assert.Equal(t, "late failure", env.OverallError)
	assert.Len(t, env.Details, 1)
}

func TestEnvelope_Outcome(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*Envelope)
		wantText   string
		wantSource string
		wantStatus Status
	}{
		{
			name:       "final answer",
			setup:      func(e *Envelope) { e.SetFinal(Result{Source: "Claude (m)", Response: "answer"}) },
			wantText:   "answer",
			wantSource: "Claude (m)",
			wantStatus: StatusComplete,
		},
		{
			name: "final answer wins over error",
			setup: func(e *Envelope) {
				e.SetFinal(Result{Source: "Fallback", Response: "sorry", Error: "x"})
				e.OverallError = "x"
			},
			wantText:   "sorry",
			wantSource: "Fallback",
			wantStatus: StatusComplete,
		},
		{
			name:       "error only",
			setup:      func(e *Envelope) { e.Fail("boom", Result{Source: "OpenAI", Error: "boom"}) },
			wantText:   "An error occurred during processing: boom",
			wantSource: "OpenAI",
			wantStatus: StatusError,
		},
		{
			name:       "blank final without error",
			setup:      func(e *Envelope) { e.SetFinal(Result{Source: "X", Response: " "}) },
			wantStatus: StatusCompleteNoResponse,
		},
		{
			name:       "nothing",
			setup:      func(e *Envelope) {},
			wantStatus: StatusCompleteNoResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := New("p", "m", "")
			tt.setup(env)
			text, source, status := env.Outcome()
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantSource, source)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestEnvelope_Slots(t *testing.T) {
	env := New("p", "balance", "")
	env.SetStep(SlotComprehensive, Result{Source: "Perplexity", Response: "r"})

	require.NotNil(t, env.Step(SlotComprehensive))
	assert.Equal(t, "Perplexity", env.Step4Comprehensive.Source)
	assert.Nil(t, env.Step(SlotReview))
	assert.Panics(t, func() { env.SetStep(Slot(99), Result{}) })
}

func TestEnvelope_JSONHidesDetails(t *testing.T) {
	env := New("hello", "fastchat", "42")
	env.Record(Result{Source: "internal", Response: "trail"})
	env.SetFinal(Result{Source: "OpenAI (gpt-4o)", Response: "hi"})

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.NotContains(t, got, "details")
	assert.Equal(t, "hello", got["prompt"])
	assert.Equal(t, "fastchat", got["mode_executed"])
	assert.Equal(t, "42", got["processed_session_id"])
	assert.Equal(t, []any{}, got["search_fragments"])

	final, ok := got["step7_final_answer"].(map[string]any)
	require.True(t, ok)
	want := map[string]any{"source": "OpenAI (gpt-4o)", "response": "hi"}
	if diff := cmp.Diff(want, final); diff != "" {
		t.Errorf("final answer JSON mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvelope_AppendFinalNote(t *testing.T) {
	env := New("p", "m", "")
	env.AppendFinalNote("ignored")
	assert.Nil(t, env.Final)

	env.SetFinal(Result{Response: "body"})
	env.AppendFinalNote("\n\nnote")
	assert.Equal(t, "body\n\nnote", env.FinalText())
}
