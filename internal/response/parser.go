// Package response extracts proposed file contents from free-form agent text.
//
// A file block is a marker line naming a path, followed (after optional blank
// lines) by a fenced code block:
//
//	File: src/main.go
//	```go
//	package main
//	```
//
// The marker may be decorated as a comment, heading, list item or bold text
// ("// File:", "**File:**", "- Filename:"). A line holding nothing but a path
// also counts as a marker when the path has a directory separator or a file
// extension, so headings like these introduce blocks too:
//
//	### `src/main.go`
//	**cmd/tool/main.go**:
//	main.go
//
// A lone word such as "Output" or "Example:" is not a path and never starts
// a block.
//
// The parser is best-effort. Text that does not form a complete block is
// skipped, and a fence left open at the end of the response is discarded so
// partial content is never surfaced.
package response

import (
	"iter"
	"regexp"
	"strings"

	"github.com/Iron-Ham/roundtable/internal/workspace"
)

// PathSanitizer normalizes a raw path or rejects it.
type PathSanitizer interface {
	Sanitize(raw string) (string, error)
}

// Block is one complete file block found in a response.
type Block struct {
	// Path is the sanitized path. It is empty when Err is set.
	Path string
	// RawPath is the path as written in the response.
	RawPath string
	// Lang is the fence language tag, if any. It is informational only.
	Lang    string
	Content string
	// Err is set when the sanitizer rejected RawPath.
	Err error
}

var (
	// markerPattern matches "File: path" and its common decorations:
	// "// File:", "# File:", "**File:**", "- Filename:", "<!-- File path: x -->".
	markerPattern = regexp.MustCompile(`(?i)^(?:#{1,6}\s*|//+\s*|<!--\s*|[-*>]\s+)?(?:\*\*|__)?(?:file\s*path|file\s*name|file)(?:\*\*|__)?\s*:\s*(.+)$`)

	// barePathPattern matches a line holding nothing but a path-like token,
	// optionally as a heading, bold, or backticked: "### `src/app.go`".
	barePathPattern = regexp.MustCompile("^(?:#{1,6}\\s+)?(?:\\*\\*|__)?`?([\\w./-]*(?:/[\\w.-]+|\\.[A-Za-z0-9]+))`?(?:\\*\\*|__)?:?$")

	trailingNote = regexp.MustCompile(`\s+\([^)]*\)$`)
)

// Parser scans responses for file blocks.
type Parser struct {
	sanitizer PathSanitizer
}

// NewParser returns a Parser that passes every path through s. A nil s uses
// workspace.Sanitize with the default reserved names.
func NewParser(s PathSanitizer) *Parser {
	if s == nil {
		s = sanitizeFunc(workspace.Sanitize)
	}
	return &Parser{sanitizer: s}
}

type sanitizeFunc func(string) (string, error)

func (f sanitizeFunc) Sanitize(raw string) (string, error) { return f(raw) }

// Blocks returns the complete file blocks of text in order, including those
// whose path was rejected. The sequence is lazy and can be ranged over any
// number of times.
func (p *Parser) Blocks(text string) iter.Seq[Block] {
	return func(yield func(Block) bool) {
		var (
			pending string // raw path from the last marker line
			open    *fence
			lang    string
			body    []string
		)

		for line := range strings.Lines(text) {
			line = strings.TrimRight(line, "\r\n")
			trimmed := strings.TrimSpace(line)

			if open != nil {
				if !open.closes(trimmed) {
					body = append(body, line)
					continue
				}
				raw := pending
				content := joinBody(body)
				open, pending, body = nil, "", nil
				if raw == "" {
					continue
				}
				if !yield(p.block(raw, lang, content)) {
					return
				}
				continue
			}

			if f, info, ok := openFence(trimmed); ok {
				// An unlabeled fence is skipped whole so that markers quoted
				// inside it are not mistaken for real ones.
				open, lang, body = &f, language(info), nil
				continue
			}

			// Blank lines may separate a marker from its fence.
			if trimmed != "" {
				pending = markerPath(trimmed)
			}
		}
		// A fence still open here was truncated; drop it.
	}
}

// Files returns the (path, content) pairs of text whose paths passed
// sanitization, in order.
func (p *Parser) Files(text string) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for b := range p.Blocks(text) {
			if b.Err != nil {
				continue
			}
			if !yield(b.Path, b.Content) {
				return
			}
		}
	}
}

// Files parses text with the default sanitizer.
func Files(text string) iter.Seq2[string, string] {
	return NewParser(nil).Files(text)
}

func (p *Parser) block(raw, lang, content string) Block {
	b := Block{RawPath: raw, Lang: lang, Content: content}
	path, err := p.sanitizer.Sanitize(raw)
	if err != nil {
		b.Err = err
		return b
	}
	b.Path = path
	return b
}

// markerPath returns the raw path named by a marker line, or "".
func markerPath(trimmed string) string {
	if m := markerPattern.FindStringSubmatch(trimmed); m != nil {
		return cleanMarkerPath(m[1])
	}
	if m := barePathPattern.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return ""
}

func cleanMarkerPath(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "-->"))
	s = trailingNote.ReplaceAllString(s, "")
	for _, wrap := range []string{"**", "__"} {
		s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSuffix(s, wrap), wrap))
	}
	return s
}

func joinBody(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
