// Package provider adapts the external AI services (OpenAI, Claude, Cohere,
// Gemini, Perplexity, DeepL) to one uniform call shape. Chat-style calls never
// return Go errors: failures come back as an envelope.Result with Error set.
package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"ukiyo/internal/envelope"
	"ukiyo/internal/memory"
)

// Name identifies a provider.
type Name string

const (
	OpenAI     Name = "openai"
	Claude     Name = "claude"
	Cohere     Name = "cohere"
	Gemini     Name = "gemini"
	Perplexity Name = "perplexity"
	DeepL      Name = "deepl"
)

// Display returns the human-facing provider label used in result sources.
func (n Name) Display() string {
	switch n {
	case OpenAI:
		return "OpenAI"
	case Claude:
		return "Claude"
	case Cohere:
		return "Cohere"
	case Gemini:
		return "Gemini"
	case Perplexity:
		return "Perplexity"
	case DeepL:
		return "DeepL"
	}
	return string(n)
}

var (
	// ErrEmptyPrompt means there was nothing to send: no prompt and no user turn.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrNotInitialized means the provider has no API key configured.
	ErrNotInitialized = errors.New("client not initialized")
)

// Role is a conversation role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// NormalizeRole maps stored or provider-specific role names onto Role.
// Unknown names map to "".
func NormalizeRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "human":
		return RoleUser
	case "assistant", "ai", "model", "chatbot", "bot":
		return RoleAssistant
	case "system":
		return RoleSystem
	}
	return ""
}

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TaskKind selects prompt assembly rules.
type TaskKind int

const (
	// TaskGeneral applies the persona.
	TaskGeneral TaskKind = iota
	// TaskSearchFormatting drops the persona and references the goal as context only.
	TaskSearchFormatting
)

// Request is the input to a chat-style call.
type Request struct {
	Prompt      string
	Instruction string
	Task        TaskKind
	// Model overrides the adapter's default model for this call.
	Model    string
	History  []Turn
	Goal     string
	Memories []memory.Record
	// MemoryMaxLength caps the memory block; 0 means memory.DefaultMaxLength.
	MemoryMaxLength int
}

// Settings are per-adapter call defaults.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Quirks describe provider-specific conversation constraints.
type Quirks struct {
	// NoLeadingAssistant: the first turn must not come from the assistant.
	NoLeadingAssistant bool
	// NoSystemRole: instructions travel as a user turn plus a canned acknowledgement.
	NoSystemRole bool
	// RoleNames maps canonical roles to the provider's wire names.
	RoleNames map[Role]string
}

// RoleName returns the provider wire name for r.
func (q Quirks) RoleName(r Role) string {
	if name, ok := q.RoleNames[r]; ok {
		return name
	}
	return string(r)
}

// Conversation is an assembled, provider-ready prompt.
type Conversation struct {
	System string
	Turns  []Turn
}

// Reply is a raw provider answer.
type Reply struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Links        []string
}

// Backend is implemented by every chat-style provider adapter.
type Backend interface {
	Name() Name
	Quirks() Quirks
	Send(ctx context.Context, model string, conv Conversation, s Settings) (Reply, error)
}

// Chatter is what flows depend on for chat-style calls.
type Chatter interface {
	Chat(ctx context.Context, req Request) envelope.Result
}

// Searcher is the search-style (Perplexity) capability. req.Prompt is the
// query; Goal, Memories and Model apply, History and Instruction are ignored.
type Searcher interface {
	Search(ctx context.Context, req Request) envelope.Result
}

// Translator is the translation capability. It alone reports failures as errors.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}
