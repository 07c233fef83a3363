package provider

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukiyo/internal/memory"
)

func TestSystemText_Order(t *testing.T) {
	req := Request{
		Instruction: "INSTRUCTION",
		Goal:        "GOAL",
		Memories:    []memory.Record{{Title: "pet", Content: "cat"}},
	}

	sys := SystemText(req, "PERSONA")

	iPersona := strings.Index(sys, "PERSONA")
	iMemory := strings.Index(sys, memory.Header)
	iInstr := strings.Index(sys, "INSTRUCTION")
	iGoal := strings.Index(sys, goalReminderPrefix+"GOAL")

	require.True(t, iPersona >= 0 && iMemory >= 0 && iInstr >= 0 && iGoal >= 0, sys)
	assert.Less(t, iPersona, iMemory)
	assert.Less(t, iMemory, iInstr)
	assert.Less(t, iInstr, iGoal)
	assert.Contains(t, sys, "PERSONA\n\n"+memory.Header)
}

func TestSystemText_SearchFormattingDropsPersona(t *testing.T) {
	req := Request{Instruction: "format it", Goal: "origin", Task: TaskSearchFormatting}

	sys := SystemText(req, "PERSONA")

	assert.NotContains(t, sys, "PERSONA")
	assert.Contains(t, sys, goalReferencePrefix+"origin")
	assert.NotContains(t, sys, goalReminderPrefix)
}

func TestSystemText_EmptyPartsSkipped(t *testing.T) {
	assert.Equal(t, "", SystemText(Request{}, "  "))
	assert.Equal(t, "only", SystemText(Request{Instruction: "only"}, ""))
}

func TestAssemble_HistoryNormalization(t *testing.T) {
	req := Request{
		Prompt: "next",
		History: []Turn{
			{Role: "user", Content: "hi"},
			{Role: "ai", Content: "hello"},
			{Role: "system", Content: "ignored"},
			{Role: "user", Content: "   "},
			{Role: "weird", Content: "dropped"},
		},
	}

	conv, err := Assemble(req, Quirks{}, "")
	require.NoError(t, err)

	want := []Turn{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "next"},
	}
	if diff := cmp.Diff(want, conv.Turns); diff != "" {
		t.Errorf("turns mismatch (-want +got):\n%s", diff)
	}
}

func TestAssemble_NoDuplicateTrailingUserTurn(t *testing.T) {
	req := Request{
		Prompt:  "same",
		History: []Turn{{Role: RoleUser, Content: "same"}},
	}
	conv, err := Assemble(req, Quirks{}, "")
	require.NoError(t, err)
	assert.Len(t, conv.Turns, 1)
}

func TestAssemble_EmptyPrompt(t *testing.T) {
	_, err := Assemble(Request{Prompt: "  "}, Quirks{}, "persona")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = Assemble(Request{History: []Turn{{Role: RoleAssistant, Content: "only me"}}}, Quirks{}, "")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	conv, err := Assemble(Request{History: []Turn{{Role: RoleUser, Content: "earlier"}}}, Quirks{}, "")
	require.NoError(t, err)
	assert.Equal(t, "earlier", conv.Turns[0].Content)
}

func TestAssemble_NoLeadingAssistantFiller(t *testing.T) {
	req := Request{
		Prompt:  "q",
		History: []Turn{{Role: RoleAssistant, Content: "welcome"}},
	}

	conv, err := Assemble(req, Quirks{NoLeadingAssistant: true}, "")
	require.NoError(t, err)

	want := []Turn{
		{Role: RoleUser, Content: FillerTurn},
		{Role: RoleAssistant, Content: "welcome"},
		{Role: RoleUser, Content: "q"},
	}
	if diff := cmp.Diff(want, conv.Turns); diff != "" {
		t.Errorf("turns mismatch (-want +got):\n%s", diff)
	}

	plain, err := Assemble(req, Quirks{}, "")
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, plain.Turns[0].Role)
}

func TestAssemble_NoSystemRole(t *testing.T) {
	req := Request{Prompt: "q", Instruction: "be brief"}

	conv, err := Assemble(req, Quirks{NoSystemRole: true}, "PERSONA")
	require.NoError(t, err)

	assert.Empty(t, conv.System)
	want := []Turn{
		{Role: RoleUser, Content: "PERSONA\n\nbe brief"},
		{Role: RoleAssistant, Content: InstructionAck},
		{Role: RoleUser, Content: "q"},
	}
	if diff := cmp.Diff(want, conv.Turns); diff != "" {
		t.Errorf("turns mismatch (-want +got):\n%s", diff)
	}
}

func TestAssemble_NoSystemRoleWithoutSystemText(t *testing.T) {
	conv, err := Assemble(Request{Prompt: "q"}, Quirks{NoSystemRole: true}, "")
	require.NoError(t, err)
	assert.Equal(t, []Turn{{Role: RoleUser, Content: "q"}}, conv.Turns)
}

func TestAssemble_DoesNotMutateHistory(t *testing.T) {
	history := []Turn{{Role: "ai", Content: "x"}}
	_, err := Assemble(Request{Prompt: "p", History: history}, Quirks{NoLeadingAssistant: true}, "")
	require.NoError(t, err)
	assert.Equal(t, Role("ai"), history[0].Role)
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, RoleAssistant, NormalizeRole("AI"))
	assert.Equal(t, RoleAssistant, NormalizeRole("CHATBOT"))
	assert.Equal(t, RoleAssistant, NormalizeRole("model"))
	assert.Equal(t, RoleUser, NormalizeRole(" USER "))
	assert.Equal(t, RoleSystem, NormalizeRole("system"))
	assert.Equal(t, Role(""), NormalizeRole("tool"))
}

func TestQuirks_RoleName(t *testing.T) {
	q := (&CohereBackend{}).Quirks()
	assert.Equal(t, "USER", q.RoleName(RoleUser))
	assert.Equal(t, "CHATBOT", q.RoleName(RoleAssistant))
	assert.Equal(t, "assistant", Quirks{}.RoleName(RoleAssistant))
}
