// Package completion decides whether an agent's response says the work is
// finished.
//
// Detection is a case-insensitive substring match against a fixed phrase
// list after collapsing whitespace. No attempt is made to understand the
// sentence: "I would not say the project is complete" contains "project is
// complete" and counts as a signal. This imprecision is accepted.
package completion

import (
	"strings"
)

// DefaultPhrases are the canonical completion phrasings, already normalized.
var DefaultPhrases = []string{
	"project is complete",
	"project is now complete",
	"project complete",
	"task is complete",
	"task complete",
	"work is complete",
	"implementation is complete",
	"all tasks are complete",
	"all tasks completed",
	"ready for deployment",
	"ready for production",
	"ready to deploy",
	"no further improvements needed",
	"no further improvements are needed",
	"no further changes needed",
	"no further changes are needed",
	"nothing left to do",
	"the work is done",
}

// Detector matches completion phrases in response text. The zero value
// matches nothing; use NewDetector.
type Detector struct {
	phrases []string
}

// NewDetector returns a Detector for DefaultPhrases plus extra. Extra phrases
// are normalized the same way as response text; blank ones are ignored.
func NewDetector(extra ...string) *Detector {
	seen := make(map[string]bool, len(DefaultPhrases)+len(extra))
	phrases := make([]string, 0, len(DefaultPhrases)+len(extra))
	for _, p := range append(append([]string{}, DefaultPhrases...), extra...) {
		p = Normalize(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		phrases = append(phrases, p)
	}
	return &Detector{phrases: phrases}
}

// Detect reports whether text carries a completion signal.
func (d *Detector) Detect(text string) bool {
	_, ok := d.Match(text)
	return ok
}

// Match returns the first phrase, in list order, found in text.
func (d *Detector) Match(text string) (string, bool) {
	if d == nil || text == "" {
		return "", false
	}
	normalized := Normalize(text)
	for _, p := range d.phrases {
		if strings.Contains(normalized, p) {
			return p, true
		}
	}
	return "", false
}

// Phrases returns the normalized phrases the detector matches.
func (d *Detector) Phrases() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.phrases...)
}

// Normalize lowercases s and collapses runs of whitespace to one space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
