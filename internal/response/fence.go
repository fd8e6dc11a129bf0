package response

import "strings"

// fence describes an open code fence.
type fence struct {
	char byte
	size int
}

// openFence reports whether trimmed opens a code fence: three or more
// backticks or tildes, optionally followed by an info string.
func openFence(trimmed string) (fence, string, bool) {
	if len(trimmed) < 3 || (trimmed[0] != '`' && trimmed[0] != '~') {
		return fence{}, "", false
	}
	n := countLeading(trimmed, trimmed[0])
	if n < 3 {
		return fence{}, "", false
	}
	info := strings.TrimSpace(trimmed[n:])
	// Backtick fences may not carry backticks in their info string.
	if trimmed[0] == '`' && strings.ContainsRune(info, '`') {
		return fence{}, "", false
	}
	return fence{char: trimmed[0], size: n}, info, true
}

// closes reports whether trimmed closes f. A closing fence uses the same
// character, is at least as long as the opener, and carries nothing else.
func (f fence) closes(trimmed string) bool {
	if len(trimmed) < f.size || trimmed[0] != f.char {
		return false
	}
	n := countLeading(trimmed, f.char)
	return n >= f.size && n == len(trimmed)
}

func countLeading(s string, c byte) int {
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return n
}

// language returns the first word of a fence info string.
func language(info string) string {
	if fields := strings.Fields(info); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
