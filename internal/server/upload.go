package server

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"ukiyo/internal/envelope"
	"ukiyo/internal/logging"
)

// uploadPreviewChars caps how much extracted file text goes into the prompt.
const uploadPreviewChars = 2000

const fileSource = "File processing"

// textExtensions are read as plain text whatever content type the client sent.
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".csv": true, ".tsv": true,
	".json": true, ".yaml": true, ".yml": true, ".xml": true, ".log": true,
	".py": true, ".js": true, ".ts": true, ".go": true, ".css": true,
	".java": true, ".c": true, ".h": true, ".cpp": true, ".rs": true,
	".rb": true, ".php": true, ".sh": true, ".sql": true, ".toml": true, ".ini": true,
}

type uploadedFile struct {
	name        string
	contentType string
	data        []byte
}

// extractFile returns the text of an uploaded file and the processing step
// to report. Unsupported types come back as an error result and no text.
func extractFile(f uploadedFile) (string, envelope.Result) {
	ext := strings.ToLower(filepath.Ext(f.name))
	ctype := f.contentType
	if ctype == "" || ctype == "application/octet-stream" {
		ctype = mime.TypeByExtension(ext)
	}
	if mt, _, err := mime.ParseMediaType(ctype); err == nil {
		ctype = mt
	}
	logging.ServerDebug("file processing: name=%s type=%q size=%d", f.name, ctype, len(f.data))

	switch {
	case ext == ".html" || ext == ".htm" || ctype == "text/html":
		text, err := htmlText(f.data)
		if err != nil {
			return "", envelope.Failure(fileSource, "Could not parse the HTML file \"%s\": %v", f.name, err)
		}
		return text, envelope.Result{Source: fileSource + " (HTML)", Response: fmt.Sprintf("Read the text of the HTML file \"%s\".", f.name)}

	case strings.HasPrefix(ctype, "text/") || ctype == "application/json" || textExtensions[ext]:
		if !utf8.Valid(f.data) {
			return "", envelope.Failure(fileSource, "The file \"%s\" is not valid UTF-8 text.", f.name)
		}
		return string(f.data), envelope.Result{Source: fileSource + " (text)", Response: fmt.Sprintf("Read the text file \"%s\".", f.name)}

	case ctype == "":
		return "", envelope.Failure(fileSource, "Could not determine the type of the file \"%s\".", f.name)

	default:
		return "", envelope.Failure(fileSource, "File type \"%s\" cannot be processed directly. File name \"%s\"", ctype, f.name)
	}
}

// wrapUploadPrompt builds the flow prompt around an uploaded file.
func wrapUploadPrompt(name, prompt, text string, step envelope.Result) string {
	switch {
	case step.Error != "":
		return fmt.Sprintf("The user uploaded the file \"%s\", but it could not be processed and is unavailable.\n"+
			"Notice about the file: \"%s\"\n"+
			"With that in mind, respond to the user's instruction below.\n---\n"+
			"User instruction: \"%s\"", name, step.Error, prompt)
	case strings.TrimSpace(text) != "":
		preview := text
		if r := []rune(preview); len(r) > uploadPreviewChars {
			preview = string(r[:uploadPreviewChars])
		}
		return fmt.Sprintf("The user uploaded the following file.\n"+
			"File name: %s\n"+
			"Extracted content (summary or full text):\n```text\n%s...\n```\n"+
			"(The above is the content of the uploaded file. Respond to the user's instruction below with it in mind.)\n---\n"+
			"User instruction: \"%s\"", name, strings.TrimSpace(preview), prompt)
	default:
		return fmt.Sprintf("The user uploaded the file \"%s\", but it contained no extractable text.\n"+
			"With that in mind, respond to the user's instruction below.\n---\n"+
			"User instruction: \"%s\"", name, prompt)
	}
}

// htmlText returns the visible text of an HTML document, one block per line.
func htmlText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	walkHTML(doc, &sb, 0)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func walkHTML(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 100 {
		return
	}
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteString(" ")
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "template":
			return
		case "br", "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "title", "section", "article", "pre", "blockquote":
			sb.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, sb, depth+1)
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "title", "section", "article", "pre", "blockquote":
			sb.WriteString("\n")
		}
	}
}
