// Package flow implements the mode flows: fixed or parameterized sequences of
// provider calls that fill one response envelope. Flows run their stages
// strictly in order and never return provider failures as Go errors; those
// are recorded on the envelope instead.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ukiyo/internal/envelope"
	"ukiyo/internal/logging"
	"ukiyo/internal/memory"
	"ukiyo/internal/provider"
	"ukiyo/internal/usage"
)

// ErrUnknownMode is returned by Run for a mode no flow handles.
var ErrUnknownMode = errors.New("unknown mode")

// Mode names accepted by Run (case-insensitive).
const (
	ModeBalance      = "balance"
	ModeSearch6      = "search6"
	ModeSuperSearch  = "supersearch"
	ModeSuperWriting = "superwriting"
	ModeFastChat     = "fastchat"
	ModeWriting      = "writing"
	ModeUltraWriting = "ultrawriting"
	ModeDeepSearch   = "deepsearch"
	ModeUltraSearch  = "ultrasearch"
)

// Modes lists every mode Run accepts.
func Modes() []string {
	return []string{
		ModeBalance, ModeSearch6, ModeSuperSearch, ModeSuperWriting, ModeFastChat,
		ModeWriting, ModeUltraWriting, ModeDeepSearch, ModeUltraSearch,
	}
}

// Providers are the capabilities flows call. A nil field means the provider
// is unavailable; flows that need it fail with a configuration error.
type Providers struct {
	OpenAI provider.Chatter
	Claude provider.Chatter
	Cohere provider.Chatter
	Gemini provider.Chatter
	Search provider.Searcher
}

// Input is everything a flow reads. It is never mutated.
type Input struct {
	Prompt   string
	History  []provider.Turn
	Goal     string
	Memories []memory.Record
	// Genre selects the super-writing sub-flow.
	Genre string
	// DesiredChars is the requested output length for long-form flows; 0 means default.
	DesiredChars int
	// Now stamps dated search prompts. Nil means time.Now.
	Now func() time.Time
}

func (in Input) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

func (in Input) stamp() string {
	return in.now().UTC().Format(searchTimeLayout)
}

// Engine dispatches modes to flows.
type Engine struct {
	p         Providers
	memoryMax int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMemoryMaxLength caps the memory block injected into every call.
func WithMemoryMaxLength(n int) Option {
	return func(e *Engine) { e.memoryMax = n }
}

// New creates an engine over the given providers.
func New(p Providers, opts ...Option) *Engine {
	e := &Engine{p: p}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type flowFunc func(e *Engine, ctx context.Context, in Input, env *envelope.Envelope)

var flows = map[string]flowFunc{
	ModeBalance:      (*Engine).Quality,
	ModeSearch6:      (*Engine).SuperSearch,
	ModeSuperSearch:  (*Engine).SuperSearch,
	ModeSuperWriting: (*Engine).SuperWriting,
	ModeFastChat:     (*Engine).FastChat,
	ModeWriting:      (*Engine).Writing,
	ModeUltraWriting: (*Engine).UltraWriting,
	ModeDeepSearch:   (*Engine).DeepSearch,
	ModeUltraSearch:  (*Engine).UltraSearch,
}

// Run executes the flow for mode, filling env. The only error it returns is
// ErrUnknownMode; provider failures end up in env.OverallError.
func (e *Engine) Run(ctx context.Context, mode string, in Input, env *envelope.Envelope) error {
	key := strings.ToLower(strings.TrimSpace(mode))
	fn, ok := flows[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	scope := usage.ScopeFromContext(ctx)
	if scope.Mode == "" {
		scope.Mode = key
		ctx = usage.WithScope(ctx, scope)
	}

	timer := logging.StartTimer(logging.CategoryFlow, "flow "+key)
	logging.Flow("[%s] start: prompt=%q history=%d memories=%d", key, logging.Truncate(in.Prompt, 100), len(in.History), len(in.Memories))
	fn(e, ctx, in, env)
	timer.Stop()

	if env.OverallError != "" {
		logging.FlowWarn("[%s] finished with error: %s", key, env.OverallError)
	} else {
		logging.Flow("[%s] finished: final_len=%d details=%d", key, charCount(env.FinalText()), len(env.Details))
	}
	return nil
}

// =============================================================================
// CALL HELPERS
// =============================================================================

// request builds a chat request carrying the conversation context.
func (e *Engine) request(in Input, prompt, instruction string) provider.Request {
	return provider.Request{
		Prompt:          prompt,
		Instruction:     instruction,
		History:         in.History,
		Goal:            in.Goal,
		Memories:        in.Memories,
		MemoryMaxLength: e.memoryMax,
	}
}

// judgeRequest builds a bare request: no history, goal or memories.
func (e *Engine) judgeRequest(prompt string) provider.Request {
	return provider.Request{Prompt: prompt}
}

func (e *Engine) search(ctx context.Context, in Input, query string) envelope.Result {
	if e.p.Search == nil {
		return notInitialized(provider.Perplexity)
	}
	return e.p.Search.Search(ctx, provider.Request{
		Prompt:          query,
		Goal:            in.Goal,
		Memories:        in.Memories,
		MemoryMaxLength: e.memoryMax,
	})
}

func (e *Engine) chat(ctx context.Context, name provider.Name, req provider.Request) envelope.Result {
	c := e.chatter(name)
	if c == nil {
		return notInitialized(name)
	}
	return c.Chat(ctx, req)
}

func (e *Engine) chatter(name provider.Name) provider.Chatter {
	switch name {
	case provider.OpenAI:
		return e.p.OpenAI
	case provider.Claude:
		return e.p.Claude
	case provider.Cohere:
		return e.p.Cohere
	case provider.Gemini:
		return e.p.Gemini
	}
	return nil
}

func notInitialized(name provider.Name) envelope.Result {
	return envelope.Result{
		Source: provider.Label(name, provider.DefaultSettings(name).Model),
		Error:  fmt.Sprintf("%s client not initialized.", name.Display()),
	}
}

// usable reports whether a stage produced text a later stage can build on.
func usable(r envelope.Result) bool {
	return r.OK()
}

// reason is the error text of a failed stage.
func reason(r envelope.Result) string {
	if r.Error != "" {
		return r.Error
	}
	return "no response"
}

// detailsSince copies the diagnostic trail recorded after mark.
func detailsSince(env *envelope.Envelope, mark int) []envelope.Result {
	if mark >= len(env.Details) {
		return nil
	}
	return append([]envelope.Result(nil), env.Details[mark:]...)
}
