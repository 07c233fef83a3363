package flow

import (
	"context"
	"fmt"
	"strings"

	"ukiyo/internal/envelope"
	"ukiyo/internal/logging"
	"ukiyo/internal/provider"
)

// Chunk sizing and correction limits for iterative drafting.
const (
	DefaultDraftTotalChars = 100000
	MaxChunkChars          = 10000
	MinChunkChars          = 1000
	ContinuityTailChars    = 10000

	MaxLengthChecks      = 3
	MaxConsistencyChecks = 2

	// LengthAcceptRatio: a chunk at or above this share of its target is long enough.
	LengthAcceptRatio = 0.8
	// LengthFloorRatio: below this share the chunk is expanded whatever the judge says.
	LengthFloorRatio = 0.5

	// NoIssuesSentinel is the consistency judge's "nothing to fix" answer.
	NoIssuesSentinel = "NO MAJOR ISSUES"

	draftingFinalSource = "Iterative Super Drafting (Final)"
)

// ChunkPlan is the chunk layout for one drafting run.
type ChunkPlan struct {
	Total  int // target total characters
	Count  int // number of chunks
	Target int // per-chunk target characters
}

// PlanChunks computes the chunk layout. Totals below MinChunkChars fall back
// to DefaultDraftTotalChars. Count*Target always covers Total.
func PlanChunks(desired int) ChunkPlan {
	total := desired
	if total < MinChunkChars {
		total = DefaultDraftTotalChars
	}

	plan := ChunkPlan{Total: total, Count: 1, Target: total}
	if total > MaxChunkChars {
		plan.Count = ceilDiv(total, MaxChunkChars)
		plan.Target = ceilDiv(total, plan.Count)
	}
	if plan.Target < MinChunkChars {
		plan.Target = MinChunkChars
		plan.Count = ceilDiv(total, plan.Target)
	}
	return plan
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Chunk is one finished part of a drafted document.
type Chunk struct {
	Index  int
	Target int
	Text   string
	Source string
}

// DraftState is a state of the per-chunk drafting machine.
type DraftState string

const (
	DraftStateDrafting            DraftState = "drafting"
	DraftStateRefining            DraftState = "refining"
	DraftStateLengthChecking      DraftState = "length_checking"
	DraftStateExpanding           DraftState = "expanding"
	DraftStateConsistencyChecking DraftState = "consistency_checking"
	DraftStateFixing              DraftState = "fixing"
	DraftStateDone                DraftState = "done"
)

// DraftTransition records one state change of a chunk machine.
type DraftTransition struct {
	From   DraftState
	To     DraftState
	Reason string
}

// chunkMachine drives one chunk from first draft to done. Every state makes
// at most one provider call; the check counters bound the loops.
type chunkMachine struct {
	e   *Engine
	in  Input
	env *envelope.Envelope

	index, count, target int
	previous             string // everything written before this chunk
	frame                string // continuity context shared by contextual prompts

	state             DraftState
	text              string
	issues            string
	lengthChecks      int
	consistencyChecks int
	history           []DraftTransition
}

func (e *Engine) newChunkMachine(in Input, env *envelope.Envelope, plan ChunkPlan, index int, previous string) *chunkMachine {
	return &chunkMachine{
		e:        e,
		in:       in,
		env:      env,
		index:    index,
		count:    plan.Count,
		target:   plan.Target,
		previous: previous,
		frame:    continuityContext(in.Goal, in.Prompt, previous),
		state:    DraftStateDrafting,
	}
}

func (m *chunkMachine) transition(to DraftState, why string) {
	m.history = append(m.history, DraftTransition{From: m.state, To: to, Reason: why})
	logging.FlowDebug("[drafting] chunk %d/%d: %s -> %s (%s) len=%d", m.index, m.count, m.state, to, why, charCount(m.text))
	m.state = to
}

func (m *chunkMachine) run(ctx context.Context) Chunk {
	for m.state != DraftStateDone {
		m.step(ctx)
	}
	return Chunk{
		Index:  m.index,
		Target: m.target,
		Text:   m.text,
		Source: fmt.Sprintf("Iterative Super Drafting - Chunk %d/%d", m.index, m.count),
	}
}

func (m *chunkMachine) call(ctx context.Context, name provider.Name, req provider.Request) envelope.Result {
	r := m.e.chat(ctx, name, req)
	m.env.Record(r)
	return r
}

func (m *chunkMachine) contextual(prompt, instruction string) provider.Request {
	return m.e.request(m.in, prompt, instruction)
}

func (m *chunkMachine) step(ctx context.Context) {
	switch m.state {
	case DraftStateDrafting:
		r := m.call(ctx, provider.Gemini, m.contextual(draftPrompt(m.frame, m.target, m.index, m.count), draftInstruction))
		if !usable(r) {
			m.text = ""
			m.transition(DraftStateLengthChecking, "draft failed: "+reason(r))
			return
		}
		m.text = r.Response
		m.transition(DraftStateRefining, "drafted")

	case DraftStateRefining:
		r := m.call(ctx, provider.Claude, m.contextual(refinePrompt(m.frame, m.text, m.target, m.index, m.count), refineInstruction))
		if usable(r) {
			m.text = r.Response
			m.transition(DraftStateLengthChecking, "refined")
			return
		}
		m.transition(DraftStateLengthChecking, "refine failed, keeping draft")

	case DraftStateLengthChecking:
		if m.lengthChecks >= MaxLengthChecks {
			m.transition(DraftStateConsistencyChecking, "length checks exhausted")
			return
		}
		m.lengthChecks++
		n := charCount(m.text)
		if float64(n) >= float64(m.target)*LengthAcceptRatio {
			m.transition(DraftStateConsistencyChecking, "length sufficient")
			return
		}
		judge := m.call(ctx, provider.Gemini, m.e.judgeRequest(lengthJudgePrompt(m.text, m.target, m.index, m.count)))
		if judge.Error != "" {
			m.transition(DraftStateConsistencyChecking, "length judge failed, accepting")
			return
		}
		if JudgedShort(judge.Response) || float64(n) < float64(m.target)*LengthFloorRatio {
			m.transition(DraftStateExpanding, "too short")
			return
		}
		m.transition(DraftStateConsistencyChecking, "judge accepted length")

	case DraftStateExpanding:
		r := m.call(ctx, provider.Claude, m.contextual(expandPrompt(m.frame, m.text, m.target, m.index, m.count), expandInstruction))
		if !usable(r) {
			m.transition(DraftStateConsistencyChecking, "expansion failed, keeping text")
			return
		}
		m.text = r.Response
		m.transition(DraftStateLengthChecking, "expanded")

	case DraftStateConsistencyChecking:
		if m.consistencyChecks >= MaxConsistencyChecks {
			m.transition(DraftStateDone, "consistency checks exhausted")
			return
		}
		m.consistencyChecks++
		judge := m.call(ctx, provider.Gemini, m.e.judgeRequest(
			consistencyJudgePrompt(m.in.Goal, m.in.Prompt, m.previous, m.text, m.index, m.count)))
		if judge.Error != "" {
			m.transition(DraftStateDone, "consistency judge failed, accepting")
			return
		}
		if NoIssues(judge.Response) {
			m.transition(DraftStateDone, "no issues")
			return
		}
		m.issues = strings.TrimSpace(judge.Response)
		m.transition(DraftStateFixing, "issues reported")

	case DraftStateFixing:
		r := m.call(ctx, provider.Claude, m.contextual(fixPrompt(m.frame, m.text, m.issues, m.target, m.index, m.count), fixInstruction))
		if !usable(r) {
			m.transition(DraftStateDone, "fix failed, keeping text")
			return
		}
		m.text = r.Response
		m.transition(DraftStateConsistencyChecking, "fixed")

	default:
		m.transition(DraftStateDone, "unknown state")
	}
}

// JudgedShort interprets the length judge: any "YES" in the answer means short.
func JudgedShort(answer string) bool {
	return strings.Contains(strings.ToUpper(answer), "YES")
}

// NoIssues reports whether the consistency judge answered with the sentinel.
// Case, surrounding quotes and trailing punctuation are ignored; any other
// phrasing counts as a reported issue.
func NoIssues(answer string) bool {
	a := strings.TrimSpace(answer)
	a = strings.Trim(a, "\"'`*.!。 \t\r\n")
	return strings.EqualFold(a, NoIssuesSentinel)
}

// Drafting writes a long document chunk by chunk. Each chunk sees the tail of
// everything before it, so chunks run strictly in order.
func (e *Engine) Drafting(ctx context.Context, in Input, env *envelope.Envelope) {
	mark := len(env.Details)
	plan := PlanChunks(in.DesiredChars)
	if in.DesiredChars < MinChunkChars {
		logging.FlowWarn("[drafting] desired length %d too small, using %d", in.DesiredChars, plan.Total)
	}
	logging.Flow("[drafting] total=%d chunks=%d target=%d", plan.Total, plan.Count, plan.Target)

	chunks := make([]Chunk, 0, plan.Count)
	var written strings.Builder
	for i := 1; i <= plan.Count; i++ {
		if ctx.Err() != nil {
			logging.FlowWarn("[drafting] cancelled before chunk %d/%d", i, plan.Count)
			break
		}
		chunk := e.newChunkMachine(in, env, plan, i, written.String()).run(ctx)
		chunks = append(chunks, chunk)
		written.WriteString(chunk.Text)
		written.WriteString("\n\n")
		logging.Flow("[drafting] chunk %d/%d done: len=%d target=%d", i, plan.Count, charCount(chunk.Text), chunk.Target)
	}

	final := JoinChunks(chunks)
	env.UltraWritingModeDetails = detailsSince(env, mark)
	if final == "" {
		if env.OverallError == "" {
			const msg = "Iterative Super Drafting completed but generated no content."
			env.Fail(msg, envelope.Failure(draftingFinalSource, "%s", msg))
		}
		return
	}
	env.SetFinal(envelope.Result{Source: draftingFinalSource, Response: final})
}

// JoinChunks joins non-empty chunk texts in index order with blank lines.
func JoinChunks(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		if c.Text == "" {
			continue
		}
		sb.WriteString(c.Text)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), " \t\r\n")
}
