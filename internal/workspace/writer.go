package workspace

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/roundtable/internal/errors"
)

// OutcomeKind classifies a single write attempt.
type OutcomeKind int

const (
	// Created means no file existed and the content was written.
	Created OutcomeKind = iota
	// Updated means the file existed with different content. A backup of the
	// prior content was written before overwriting.
	Updated
	// Unchanged means the file already held identical content. Nothing was
	// written, not even a backup.
	Unchanged
	// Rejected means the path failed sanitization or storage refused the write.
	Rejected
)

var outcomeNames = map[OutcomeKind]string{
	Created:   "created",
	Updated:   "updated",
	Unchanged: "unchanged",
	Rejected:  "rejected",
}

func (k OutcomeKind) String() string {
	if s, ok := outcomeNames[k]; ok {
		return s
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler for persisted reports.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *OutcomeKind) UnmarshalText(text []byte) error {
	for kind, name := range outcomeNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown outcome kind %q", text)
}

// Outcome is the result of one write attempt.
type Outcome struct {
	// Path is the sanitized path, or the raw path when sanitization failed.
	Path       string      `yaml:"path"`
	Kind       OutcomeKind `yaml:"kind"`
	BackupPath string      `yaml:"backup_path,omitempty"`
	Bytes      int         `yaml:"bytes,omitempty"`
	// Err is set only for Rejected outcomes.
	Err error `yaml:"-"`
	// Reason is Err's text, kept for persisted reports.
	Reason string `yaml:"reason,omitempty"`
}

// Failed reports whether the write was rejected.
func (o Outcome) Failed() bool {
	return o.Kind == Rejected
}

func rejected(path string, err error) Outcome {
	return Outcome{Path: path, Kind: Rejected, Err: err, Reason: err.Error()}
}

const tempPrefix = ".rt-tmp-"

// Writer applies file contents under a project root with change-aware
// backups. It is not safe for concurrent use; a run owns its Writer.
type Writer struct {
	root         string
	sanitizer    *Sanitizer
	backupSuffix string
}

// NewWriter returns a Writer rooted at root, which must be an absolute
// path with symlinks already resolved.
func NewWriter(root string, sanitizer *Sanitizer, backupSuffix string) *Writer {
	if backupSuffix == "" {
		backupSuffix = DefaultBackupSuffix
	}
	return &Writer{root: root, sanitizer: sanitizer, backupSuffix: backupSuffix}
}

// Write stores content at rawPath (re-sanitized) and reports the outcome.
// Failures never panic or abort; they come back as Rejected outcomes.
func (w *Writer) Write(rawPath string, content []byte) Outcome {
	rel, err := w.sanitizer.Sanitize(rawPath)
	if err != nil {
		return rejected(rawPath, err)
	}

	abs := filepath.Join(w.root, filepath.FromSlash(rel))
	if err := w.checkInsideRoot(abs); err != nil {
		return rejected(rel, errors.NewWorkspaceError("write", errors.ErrPathRejected).
			WithPath(rel).WithMessage(err.Error()).WithSeverity(errors.SeverityWarning))
	}

	info, err := os.Lstat(abs)
	switch {
	case err == nil && info.IsDir():
		return rejected(rel, errors.NewWorkspaceError("write", errors.ErrPathRejected).
			WithPath(rel).WithMessage("a directory exists at this path").WithSeverity(errors.SeverityWarning))
	case err == nil && info.Mode()&fs.ModeSymlink != 0:
		return rejected(rel, errors.NewWorkspaceError("write", errors.ErrPathRejected).
			WithPath(rel).WithMessage("refusing to write through a symlink").WithSeverity(errors.SeverityWarning))
	case err == nil:
		return w.update(rel, abs, info.Mode().Perm(), content)
	case os.IsNotExist(err):
		return w.create(rel, abs, content)
	default:
		return rejected(rel, writeFailure(rel, "stat", err))
	}
}

func (w *Writer) create(rel, abs string, content []byte) Outcome {
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return rejected(rel, writeFailure(rel, "create parent directories", err))
	}
	if err := atomicWriteFile(abs, content, 0644); err != nil {
		return rejected(rel, writeFailure(rel, "write", err))
	}
	return Outcome{Path: rel, Kind: Created, Bytes: len(content)}
}

func (w *Writer) update(rel, abs string, perm os.FileMode, content []byte) Outcome {
	prior, err := os.ReadFile(abs)
	if err != nil {
		return rejected(rel, writeFailure(rel, "read existing file", err))
	}
	if bytes.Equal(prior, content) {
		return Outcome{Path: rel, Kind: Unchanged, Bytes: len(content)}
	}

	// Stage the new content first so the backup is only written once the
	// replacement is ready to be committed.
	staged, err := stageFile(abs, content, perm)
	if err != nil {
		return rejected(rel, writeFailure(rel, "stage", err))
	}

	backupAbs := abs + w.backupSuffix
	previousBackup, hadBackup := readIfExists(backupAbs)

	if err := atomicWriteFile(backupAbs, prior, perm); err != nil {
		staged.abort()
		return rejected(rel, writeFailure(rel, "write backup", err))
	}

	if err := staged.commit(); err != nil {
		// Put the backup back the way it was so no backup exists for a
		// write that did not happen.
		if hadBackup {
			_ = atomicWriteFile(backupAbs, previousBackup, perm)
		} else {
			_ = os.Remove(backupAbs)
		}
		return rejected(rel, writeFailure(rel, "replace", err))
	}

	return Outcome{Path: rel, Kind: Updated, BackupPath: rel + w.backupSuffix, Bytes: len(content)}
}

// checkInsideRoot resolves the deepest existing ancestor of abs and makes
// sure symlinks do not lead outside the root.
func (w *Writer) checkInsideRoot(abs string) error {
	dir := filepath.Dir(abs)
	for {
		if _, err := os.Lstat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return fmt.Errorf("resolve parent directory: %w", err)
	}
	if !within(w.root, resolved) {
		return fmt.Errorf("parent directory resolves outside project root")
	}
	return nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func writeFailure(rel, step string, cause error) error {
	return errors.NewWorkspaceError("write", fmt.Errorf("%w: %s: %v", errors.ErrWriteFailed, step, cause)).
		WithPath(rel).
		WithMessage(step + " failed")
}

func readIfExists(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// stagedFile is a fully written temp file waiting to be renamed into place.
type stagedFile struct {
	tmpPath string
	target  string
}

func (s *stagedFile) commit() error {
	if err := os.Rename(s.tmpPath, s.target); err != nil {
		_ = os.Remove(s.tmpPath)
		return err
	}
	return nil
}

func (s *stagedFile) abort() {
	_ = os.Remove(s.tmpPath)
}

// stageFile writes data to a synced temp file in the target's directory.
func stageFile(target string, data []byte, perm os.FileMode) (*stagedFile, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), tempPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to set permissions: %w", err)
	}

	return &stagedFile{tmpPath: tmpPath, target: target}, nil
}

// atomicWriteFile writes data via a temp file and rename so readers never
// observe a partially written file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	staged, err := stageFile(path, data, perm)
	if err != nil {
		return err
	}
	if err := staged.commit(); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
