package workspace

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultIgnorePatterns are always excluded from snapshots and change tracking.
var DefaultIgnorePatterns = []string{
	".git",
	"node_modules",
	".DS_Store",
	"*.swp",
	tempPrefix + "*",
}

// IgnoreMatcher matches slash-separated relative paths against glob patterns.
// A pattern matches when it matches the whole path or any single segment,
// so "node_modules" hides the directory at any depth and "docs/**" hides a
// subtree.
type IgnoreMatcher struct {
	patterns []string
	globs    []glob.Glob
}

// NewIgnoreMatcher compiles patterns. Blank patterns are skipped.
func NewIgnoreMatcher(patterns ...string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, p)
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Patterns returns the compiled patterns in order.
func (m *IgnoreMatcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// Match reports whether rel should be ignored.
func (m *IgnoreMatcher) Match(rel string) bool {
	if m == nil || rel == "" {
		return false
	}
	segments := strings.Split(rel, "/")
	for _, g := range m.globs {
		if g.Match(rel) {
			return true
		}
		for _, seg := range segments {
			if g.Match(seg) {
				return true
			}
		}
	}
	return false
}
