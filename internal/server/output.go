package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"ukiyo/internal/envelope"
	"ukiyo/internal/logging"
)

// textOutputExtensions can be written straight from the answer text.
var textOutputExtensions = map[string]bool{
	"txt": true, "md": true, "json": true, "py": true, "html": true, "css": true,
	"js": true, "csv": true, "xml": true, "yaml": true, "yml": true, "log": true,
}

var formatAliases = map[string]string{
	"markdown":   "md",
	"python":     "py",
	"javascript": "js",
	"text":       "txt",
}

// binaryFormats are recognized in requests but never generated.
var binaryFormats = map[string]bool{"pdf": true, "docx": true, "xlsx": true, "pptx": true, "rtf": true, "odt": true, "epub": true}

var (
	// "output as md", "output it as a markdown file", "output to json"
	outputAsPattern = regexp.MustCompile(`(?i)\boutput (?:it )?(?:as|in|to) (?:an? )?\.?([a-z0-9]+)( file| format)?\b`)
	// "in json format", "in .csv format"
	inFormatPattern = regexp.MustCompile(`(?i)\bin (?:an? )?\.?([a-z0-9]+) (?:format|file)\b`)
	// "output format: yaml", "output format is csv"
	outputFormatPattern = regexp.MustCompile(`(?i)\boutput format(?: is|:)?\s*\.?([a-z0-9]+)`)
	// Japanese phrasings: 「md形式で出力」, 「JSONとして出力」, 出力形式は csv
	japanesePattern = regexp.MustCompile(`「(.+?)形式で出力」|「(.+?)として出力」|出力形式は\s*([a-zA-Z0-9]+)`)
)

// requestedFormat finds an output file format requested in prompt, lowercased.
// It returns "" when the prompt asks for none.
func requestedFormat(prompt string) string {
	if m := outputAsPattern.FindStringSubmatch(prompt); m != nil {
		word := strings.ToLower(m[1])
		if m[2] != "" || knownFormat(word) {
			return word
		}
	}
	for _, re := range []*regexp.Regexp{inFormatPattern, outputFormatPattern, japanesePattern} {
		m := re.FindStringSubmatch(prompt)
		if m == nil {
			continue
		}
		for _, g := range m[1:] {
			if g = strings.TrimSpace(g); g != "" {
				return strings.ToLower(g)
			}
		}
	}
	return ""
}

func knownFormat(word string) bool {
	return textOutputExtensions[word] || binaryFormats[word] || formatAliases[word] != ""
}

func extensionFor(format string) string {
	if ext, ok := formatAliases[format]; ok {
		return ext
	}
	return format
}

func unsupportedOutputNote(format string) string {
	return fmt.Sprintf("\n\n(System note: writing the answer as a \"%s\" file is not supported or failed, so it is given as text.)", format)
}

// generateOutputFile writes the final answer to a downloadable file when the
// prompt asked for one.
func (s *Server) generateOutputFile(userID, sessionID, prompt string, env *envelope.Envelope) {
	format := requestedFormat(prompt)
	if format == "" || env.Final == nil || strings.TrimSpace(env.Final.Response) == "" {
		return
	}

	ext := extensionFor(format)
	if !textOutputExtensions[ext] {
		logging.Server("output format %q not supported", format)
		env.AppendFinalNote(unsupportedOutputNote(format))
		return
	}

	name := fmt.Sprintf("u%s_s%s_output_%s.%s", userID, sessionID, uuid.NewString()[:8], ext)
	path := filepath.Join(s.cfg.GeneratedFilesDir, name)
	if err := os.WriteFile(path, []byte(env.Final.Response), 0644); err != nil {
		logging.ServerError("writing generated file %s: %v", path, err)
		env.AppendFinalNote(unsupportedOutputNote(format))
		return
	}
	env.GeneratedDownloadURL = "/download_generated_file/" + name
	env.GeneratedFileName = name
	logging.Server("generated file %s (%d bytes)", name, len(env.Final.Response))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") || filepath.Base(name) != name {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	// generated names start with the owner's ID
	if !strings.HasPrefix(name, "u"+userFrom(r.Context()).ID+"_") {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	f, err := os.Open(filepath.Join(s.cfg.GeneratedFilesDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		fail(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}
