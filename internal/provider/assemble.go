package provider

import (
	"strings"

	"ukiyo/internal/memory"
)

const (
	// FillerTurn opens conversations for providers that reject a leading assistant turn.
	FillerTurn = "(starting conversation context)"
	// InstructionAck follows the instruction turn for providers without a system role.
	InstructionAck = "Understood. I will follow the instructions and consider the memory information."

	goalReminderPrefix  = "[IMPORTANT] Main purpose of this conversation: "
	goalReferencePrefix = "[Reference] Initial question context: "
)

// SystemText joins persona, memory block, instruction and goal line, in that
// order, separated by blank lines. Empty parts are skipped.
func SystemText(req Request, persona string) string {
	var parts []string

	if req.Task != TaskSearchFormatting {
		if p := strings.TrimSpace(persona); p != "" {
			parts = append(parts, p)
		}
	}
	if mem := memory.Format(req.Memories, req.MemoryMaxLength); mem != "" {
		parts = append(parts, mem)
	}
	if instr := strings.TrimSpace(req.Instruction); instr != "" {
		parts = append(parts, instr)
	}
	if goal := strings.TrimSpace(req.Goal); goal != "" {
		if req.Task == TaskSearchFormatting {
			parts = append(parts, goalReferencePrefix+goal)
		} else {
			parts = append(parts, goalReminderPrefix+goal)
		}
	}

	return strings.Join(parts, "\n\n")
}

// Assemble builds the provider-ready conversation for req under the given quirks.
func Assemble(req Request, q Quirks, persona string) (Conversation, error) {
	conv := Conversation{System: SystemText(req, persona)}

	turns := make([]Turn, 0, len(req.History)+3)
	for _, t := range req.History {
		role := NormalizeRole(string(t.Role))
		if role != RoleUser && role != RoleAssistant {
			continue
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		turns = append(turns, Turn{Role: role, Content: t.Content})
	}

	if strings.TrimSpace(req.Prompt) != "" {
		n := len(turns)
		if n == 0 || turns[n-1].Role != RoleUser || turns[n-1].Content != req.Prompt {
			turns = append(turns, Turn{Role: RoleUser, Content: req.Prompt})
		}
	}

	if !hasUserTurn(turns) {
		return Conversation{}, ErrEmptyPrompt
	}

	if q.NoLeadingAssistant && turns[0].Role == RoleAssistant {
		turns = append([]Turn{{Role: RoleUser, Content: FillerTurn}}, turns...)
	}

	if q.NoSystemRole && conv.System != "" {
		turns = append([]Turn{
			{Role: RoleUser, Content: conv.System},
			{Role: RoleAssistant, Content: InstructionAck},
		}, turns...)
		conv.System = ""
	}

	conv.Turns = turns
	return conv, nil
}

func hasUserTurn(turns []Turn) bool {
	for _, t := range turns {
		if t.Role == RoleUser {
			return true
		}
	}
	return false
}
