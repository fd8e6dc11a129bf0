package workspace

import (
	"strings"
	"unicode"

	"github.com/Iron-Ham/roundtable/internal/errors"
)

// Defaults shared by the sanitizer, writer, and snapshot.
const (
	DefaultBackupSuffix = ".bak"
	DefaultStateDir     = ".roundtable"
)

// Sanitizer turns raw paths lifted from agent text into normalized,
// slash-separated paths relative to the project root.
//
// The output only contains letters, digits, whitespace, and "-_./"; it has no
// empty, "." or ".." segments and no surrounding whitespace on any segment.
// Sanitize is idempotent: feeding its output back in returns it unchanged.
type Sanitizer struct {
	reserved     []string
	backupSuffix string
}

// NewSanitizer returns a Sanitizer that rejects paths equal to or inside one
// of the reserved directories, and paths that end with backupSuffix.
func NewSanitizer(backupSuffix string, reserved ...string) *Sanitizer {
	r := make([]string, 0, len(reserved))
	for _, name := range reserved {
		if name = strings.Trim(name, "/"); name != "" {
			r = append(r, name)
		}
	}
	return &Sanitizer{reserved: r, backupSuffix: backupSuffix}
}

var defaultSanitizer = NewSanitizer(DefaultBackupSuffix, ".git", DefaultStateDir)

// Sanitize normalizes raw using the default reserved names and backup suffix.
func Sanitize(raw string) (string, error) {
	return defaultSanitizer.Sanitize(raw)
}

// Sanitize returns the normalized path or an error wrapping
// errors.ErrPathRejected.
func (s *Sanitizer) Sanitize(raw string) (string, error) {
	cleaned := strings.TrimSpace(stripIllegal(raw))
	if cleaned == "" {
		return "", reject(raw, "empty path")
	}
	if strings.HasPrefix(cleaned, "/") {
		return "", reject(raw, "absolute paths are not allowed")
	}

	var segments []string
	for _, seg := range strings.Split(cleaned, "/") {
		seg = strings.TrimSpace(seg)
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(segments) == 0 {
				return "", reject(raw, "escapes project root")
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}

	if len(segments) == 0 {
		return "", reject(raw, "resolves to project root")
	}
	joined := strings.Join(segments, "/")
	for _, name := range s.reserved {
		if isReserved(joined, name) {
			return "", reject(raw, "reserved path "+name)
		}
	}
	if s.IsBackup(joined) {
		return "", reject(raw, "backup files cannot be written directly")
	}

	return joined, nil
}

func isReserved(rel, name string) bool {
	if len(rel) < len(name) || !strings.EqualFold(rel[:len(name)], name) {
		return false
	}
	return len(rel) == len(name) || rel[len(name)] == '/'
}

// IsBackup reports whether rel names a backup file.
func (s *Sanitizer) IsBackup(rel string) bool {
	return s.backupSuffix != "" && strings.HasSuffix(rel, s.backupSuffix)
}

func stripIllegal(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			return r
		case r == '-', r == '_', r == '.', r == '/':
			return r
		default:
			return -1
		}
	}, raw)
}

func reject(raw, reason string) error {
	return errors.NewWorkspaceError("sanitize", errors.ErrPathRejected).
		WithPath(raw).
		WithMessage(reason).
		WithSeverity(errors.SeverityWarning)
}
