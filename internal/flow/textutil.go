package flow

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DedupLines drops blank lines and every line whose trimmed text already
// appeared, keeping first occurrences in order. It is idempotent.
func DedupLines(text string) string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		key := strings.TrimSpace(line)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// EnhanceSpacing turns every single line break that is directly followed by
// text into a blank line, so paragraphs render apart. Existing blank lines
// are left alone.
func EnhanceSpacing(text string) string {
	r := []rune(text)
	var sb strings.Builder
	sb.Grow(len(text) + len(text)/8)
	for i, c := range r {
		sb.WriteRune(c)
		if c != '\n' || i+1 >= len(r) || unicode.IsSpace(r[i+1]) {
			continue
		}
		if i > 0 && r[i-1] == '\n' {
			continue
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}

// charCount counts characters, not bytes.
func charCount(s string) int {
	return utf8.RuneCountInString(s)
}

// head returns at most the first n characters of s.
func head(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if charCount(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// tail returns at most the last n characters of s.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
