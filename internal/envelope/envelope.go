// Package envelope defines the uniform provider result and the per-request
// response envelope that flows fill in stage by stage.
package envelope

import (
	"fmt"
	"strings"
)

// Result is the output of one provider call. Error and Response may both be
// set when a fallback text accompanies a failure.
type Result struct {
	Source   string   `json:"source"`
	Response string   `json:"response,omitempty"`
	Error    string   `json:"error,omitempty"`
	Links    []string `json:"links,omitempty"`
}

// OK reports whether the call succeeded with non-blank text.
func (r Result) OK() bool {
	return r.Error == "" && strings.TrimSpace(r.Response) != ""
}

// Text returns the response text.
func (r Result) Text() string {
	return r.Response
}

// Failure builds an error result.
func Failure(source, format string, args ...interface{}) Result {
	return Result{Source: source, Error: fmt.Sprintf(format, args...)}
}

// Status is the persisted session status.
type Status string

const (
	StatusLoading            Status = "loading"
	StatusComplete           Status = "complete"
	StatusError              Status = "error"
	StatusCompleteNoResponse Status = "complete_no_response"
)

// Slot names an intermediate stage slot on the envelope.
type Slot int

const (
	SlotInitialDraft Slot = iota + 1
	SlotReview
	SlotImprovedDraft
	SlotComprehensive
	SlotFinalDraft
	SlotSecondReview
)

// Envelope accumulates one request's stage results. It is owned by a single
// flow invocation and is not safe for concurrent use.
type Envelope struct {
	Prompt             string `json:"prompt"`
	ModeExecuted       string `json:"mode_executed,omitempty"`
	ProcessedSessionID string `json:"processed_session_id,omitempty"`

	Step1InitialDraft  *Result `json:"step1_initial_draft,omitempty"`
	Step2Review        *Result `json:"step2_review,omitempty"`
	Step3ImprovedDraft *Result `json:"step3_improved_draft,omitempty"`
	Step4Comprehensive *Result `json:"step4_comprehensive_answer,omitempty"`
	Step5FinalDraft    *Result `json:"step5_final_answer,omitempty"`
	Step6SecondReview  *Result `json:"step6_review2,omitempty"`
	Final              *Result `json:"step7_final_answer,omitempty"`

	FileProcessing       *Result `json:"file_processing_step,omitempty"`
	GeneratedDownloadURL string  `json:"generated_download_url,omitempty"`
	GeneratedFileName    string  `json:"generated_file_name,omitempty"`

	SearchFragments    []Result       `json:"search_fragments"`
	SearchSummaryText  string         `json:"search_summary_text,omitempty"`
	SearchModeWarnings map[string]any `json:"search_mode_warnings"`

	WritingModeDetails      []Result `json:"writing_mode_details,omitempty"`
	UltraWritingModeDetails []Result `json:"ultra_writing_mode_details,omitempty"`

	OverallError string `json:"overall_error,omitempty"`

	// Details is the ordered trail of every stage attempt. Internal only.
	Details []Result `json:"-"`
}

// New creates the envelope shell for one request.
func New(prompt, mode, sessionID string) *Envelope {
	return &Envelope{
		Prompt:             prompt,
		ModeExecuted:       mode,
		ProcessedSessionID: sessionID,
		SearchFragments:    []Result{},
		SearchModeWarnings: map[string]any{},
	}
}

// Record appends r to the diagnostic trail.
func (e *Envelope) Record(r Result) {
	e.Details = append(e.Details, r)
}

// SetStep stores r in an intermediate slot.
func (e *Envelope) SetStep(slot Slot, r Result) {
	p := &r
	switch slot {
	case SlotInitialDraft:
		e.Step1InitialDraft = p
	case SlotReview:
		e.Step2Review = p
	case SlotImprovedDraft:
		e.Step3ImprovedDraft = p
	case SlotComprehensive:
		e.Step4Comprehensive = p
	case SlotFinalDraft:
		e.Step5FinalDraft = p
	case SlotSecondReview:
		e.Step6SecondReview = p
	default:
		panic(fmt.Sprintf("envelope: unknown slot %d", slot))
	}
}

// Step returns the result stored in slot, or nil.
func (e *Envelope) Step(slot Slot) *Result {
	switch slot {
	case SlotInitialDraft:
		return e.Step1InitialDraft
	case SlotReview:
		return e.Step2Review
	case SlotImprovedDraft:
		return e.Step3ImprovedDraft
	case SlotComprehensive:
		return e.Step4Comprehensive
	case SlotFinalDraft:
		return e.Step5FinalDraft
	case SlotSecondReview:
		return e.Step6SecondReview
	}
	return nil
}

// SetFinal stores the final answer. Once OverallError is set, an existing
// final answer is kept and SetFinal reports false.
func (e *Envelope) SetFinal(r Result) bool {
	if e.OverallError != "" && e.Final != nil {
		return false
	}
	e.Final = &r
	return true
}

// Fail records r, sets the overall error and fills the final slot with r if it is empty.
func (e *Envelope) Fail(msg string, r Result) {
	e.Record(r)
	e.OverallError = msg
	if e.Final == nil {
		e.Final = &r
	}
}

// FinalText returns the final answer text, or "".
func (e *Envelope) FinalText() string {
	if e.Final == nil {
		return ""
	}
	return e.Final.Response
}

// AppendFinalNote adds a note to the end of the final answer text.
func (e *Envelope) AppendFinalNote(note string) {
	if e.Final == nil {
		return
	}
	e.Final.Response += note
}

// Outcome decides what gets persisted as the assistant message.
// source is the label to store alongside the text.
func (e *Envelope) Outcome() (text, source string, status Status) {
	if e.Final != nil && strings.TrimSpace(e.Final.Response) != "" {
		return e.Final.Response, e.Final.Source, StatusComplete
	}
	if e.OverallError != "" {
		src := ""
		if e.Final != nil {
			src = e.Final.Source
		}
		return "An error occurred during processing: " + e.OverallError, src, StatusError
	}
	return "", "", StatusCompleteNoResponse
}
