// Package memory holds the user's long-term memory records and renders them
// into the reference block injected into provider prompts.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"ukiyo/internal/logging"
)

// DefaultMaxLength is the default cap on the formatted block, in characters.
const DefaultMaxLength = 2000

// Header opens every non-empty memory block.
const Header = `[Reference information from the user's long-term memory]
The following items are memories the user previously marked as important. Refer to them if they are relevant to the current task.
If the user's current instructions contradict these memories or are more specific, the current instructions take priority.`

// ErrorSentinel is returned instead of a block when formatting fails unexpectedly.
// It may end up inside a prompt; that is accepted.
const ErrorSentinel = "[error processing memory info]"

const untitled = "Untitled memory"

// Record is one user-curated memory.
type Record struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Priority  int        `json:"priority"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (r Record) malformed() bool {
	return strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Content) == ""
}

// Sort orders records by priority descending, then most recently updated first.
// Records without UpdatedAt sort as the oldest. The sort is stable.
func Sort(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		switch {
		case a.UpdatedAt == nil:
			return false
		case b.UpdatedAt == nil:
			return true
		default:
			return a.UpdatedAt.After(*b.UpdatedAt)
		}
	})
}

// Format renders records into a prompt block of at most maxLength characters
// (maxLength <= 0 means DefaultMaxLength). Lines are added greedily in priority
// order. If not even the first line fits, its content is cut with "..." so at
// least one memory is shown. An empty result means "omit the section".
func Format(records []Record, maxLength int) (out string) {
	if len(records) == 0 {
		return ""
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	defer func() {
		if r := recover(); r != nil {
			logging.MemoryError("memory formatting failed: %v", r)
			out = ErrorSentinel
		}
	}()

	sorted := make([]Record, 0, len(records))
	skipped := 0
	for _, r := range records {
		if r.malformed() {
			skipped++
			continue
		}
		sorted = append(sorted, r)
	}
	if skipped > 0 {
		logging.MemoryWarn("skipped %d memory record(s) with neither title nor content", skipped)
	}
	Sort(sorted)

	headerLen := runeLen(Header) + 1 // header plus its trailing newline
	var lines []string
	total := 0

	for _, r := range sorted {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = untitled
		}
		prefix := fmt.Sprintf("- %s: ", title)
		line := prefix + r.Content

		if headerLen+total+runeLen(line) > maxLength {
			if len(lines) == 0 {
				allowed := maxLength - headerLen - runeLen(prefix) - 3
				if allowed > 0 {
					lines = append(lines, prefix+truncateRunes(r.Content, allowed)+"...")
				}
			}
			break
		}
		lines = append(lines, line)
		total += runeLen(line) + 1
	}

	if len(lines) == 0 {
		return ""
	}
	return Header + "\n" + strings.Join(lines, "\n")
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
