package workspace

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/roundtable/internal/errors"
	"github.com/Iron-Ham/roundtable/internal/logging"
)

// Options configures a Project.
type Options struct {
	// BackupSuffix is appended to a path to form its backup path.
	BackupSuffix string
	// StateDir is the project-relative directory holding run data. It is
	// reserved from writes and excluded from snapshots.
	StateDir string
	// Ignore holds extra glob patterns excluded from snapshots.
	Ignore []string
	// MaxFileBytes truncates larger files in snapshots. Zero means no limit.
	MaxFileBytes int64
	Logger       *logging.Logger
}

// File is one file in a Snapshot.
type File struct {
	Path      string
	Content   string
	Size      int64
	Truncated bool
}

// Snapshot is a read-only view of the project files at a point in time.
type Snapshot struct {
	Files []File
}

// Paths returns the snapshot's file paths in order.
func (s Snapshot) Paths() []string {
	paths := make([]string, len(s.Files))
	for i, f := range s.Files {
		paths[i] = f.Path
	}
	return paths
}

// Lookup returns the file at path.
func (s Snapshot) Lookup(path string) (File, bool) {
	i := sort.Search(len(s.Files), func(i int) bool { return s.Files[i].Path >= path })
	if i < len(s.Files) && s.Files[i].Path == path {
		return s.Files[i], true
	}
	return File{}, false
}

// Project is the on-disk project state for one run. The run's controller
// is its only writer.
type Project struct {
	root      string
	opts      Options
	sanitizer *Sanitizer
	writer    *Writer
	ignore    *IgnoreMatcher
	logger    *logging.Logger

	watcher *Watcher
	written map[string]struct{}
}

// Open prepares root for a run, creating it if needed. Failure to create or
// resolve the root is fatal and wraps errors.ErrRootUnavailable.
func Open(root string, opts Options) (*Project, error) {
	if opts.BackupSuffix == "" {
		opts.BackupSuffix = DefaultBackupSuffix
	}
	if opts.StateDir == "" {
		opts.StateDir = DefaultStateDir
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, rootUnavailable(root, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, rootUnavailable(root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, rootUnavailable(root, err)
	}
	if info, err := os.Stat(resolved); err != nil || !info.IsDir() {
		if err == nil {
			err = errors.New("not a directory")
		}
		return nil, rootUnavailable(root, err)
	}

	reserved := []string{".git"}
	stateRel := ""
	if !filepath.IsAbs(opts.StateDir) {
		stateRel = strings.Trim(filepath.ToSlash(filepath.Clean(opts.StateDir)), "/")
		reserved = append(reserved, stateRel)
	}
	sanitizer := NewSanitizer(opts.BackupSuffix, reserved...)

	patterns := append([]string{}, DefaultIgnorePatterns...)
	patterns = append(patterns, "*"+glob.QuoteMeta(opts.BackupSuffix))
	if stateRel != "" {
		patterns = append(patterns, glob.QuoteMeta(stateRel))
	}
	patterns = append(patterns, opts.Ignore...)
	ignore, err := NewIgnoreMatcher(patterns...)
	if err != nil {
		return nil, errors.NewValidationError(err.Error()).WithField("workspace.ignore").WithCause(errors.ErrInvalidConfig)
	}

	return &Project{
		root:      resolved,
		opts:      opts,
		sanitizer: sanitizer,
		writer:    NewWriter(resolved, sanitizer, opts.BackupSuffix),
		ignore:    ignore,
		logger:    opts.Logger,
		written:   make(map[string]struct{}),
	}, nil
}

func rootUnavailable(root string, cause error) error {
	return errors.NewWorkspaceError("open", errors.Join(errors.ErrRootUnavailable, cause)).
		WithPath(root).
		WithMessage("project root unavailable").
		WithSeverity(errors.SeverityCritical)
}

// Root returns the absolute project root.
func (p *Project) Root() string {
	return p.root
}

// Sanitizer returns the sanitizer configured for this project.
func (p *Project) Sanitizer() *Sanitizer {
	return p.sanitizer
}

// Write applies content at rawPath and records the path as written by the run.
func (p *Project) Write(rawPath, content string) Outcome {
	out := p.writer.Write(rawPath, []byte(content))
	switch out.Kind {
	case Created, Updated:
		p.written[out.Path] = struct{}{}
		p.logger.Debug("file written", "path", out.Path, "outcome", out.Kind.String(), "bytes", out.Bytes)
	case Rejected:
		p.logRejected(out)
	}
	return out
}

// Reject records a Rejected outcome for a path that never reached the
// writer, such as a file block whose path the parser already refused.
func (p *Project) Reject(rawPath string, err error) Outcome {
	out := rejected(rawPath, err)
	p.logRejected(out)
	return out
}

// logRejected logs a refused path as a warning and a failed write to an
// acceptable path as an error.
func (p *Project) logRejected(out Outcome) {
	if errors.GetSeverity(out.Err) >= errors.SeverityError {
		p.logger.Error("file write failed", "path", out.Path, "reason", out.Reason)
		return
	}
	p.logger.Warn("file write rejected", "path", out.Path, "reason", out.Reason)
}

// Snapshot reads the current project files. Ignored paths, backups, the
// state directory, symlinks, and binary files are left out. Files larger
// than MaxFileBytes are cut to that size and marked Truncated.
func (p *Project) Snapshot() (Snapshot, error) {
	var files []File

	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.root {
				return err
			}
			return nil
		}
		if path == p.root {
			return nil
		}

		rel, relErr := filepath.Rel(p.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if p.ignore.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		f, ok := p.readFile(path, rel)
		if ok {
			files = append(files, f)
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, rootUnavailable(p.root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return Snapshot{Files: files}, nil
}

func (p *Project) readFile(path, rel string) (File, bool) {
	fh, err := os.Open(path)
	if err != nil {
		p.logger.Debug("skipping unreadable file", "path", rel, "error", err.Error())
		return File{}, false
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return File{}, false
	}

	var r io.Reader = fh
	limit := p.opts.MaxFileBytes
	if limit > 0 {
		r = io.LimitReader(fh, limit)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return File{}, false
	}
	if isBinary(data) {
		return File{}, false
	}

	return File{
		Path:      rel,
		Content:   string(data),
		Size:      info.Size(),
		Truncated: limit > 0 && info.Size() > limit,
	}, true
}

// isBinary looks for a NUL byte in the first 8000 bytes, like git does.
func isBinary(data []byte) bool {
	const sniff = 8000
	if len(data) > sniff {
		data = data[:sniff]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// StartWatching begins recording files changed on disk during the run.
func (p *Project) StartWatching() error {
	if p.watcher != nil {
		return nil
	}
	w, err := NewWatcher(p.root, p.ignore, p.logger)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		_ = w.watcher.Close()
		return err
	}
	p.watcher = w
	return nil
}

// StopWatching stops the watcher and returns the files changed by something
// other than this project's writes, sorted.
func (p *Project) StopWatching() []string {
	if p.watcher == nil {
		return nil
	}
	p.watcher.Stop()

	var external []string
	for _, rel := range p.watcher.Changed() {
		if _, ours := p.written[rel]; ours {
			continue
		}
		external = append(external, rel)
	}
	p.watcher = nil
	return external
}

// Written returns the paths created or updated through this Project, sorted.
func (p *Project) Written() []string {
	paths := make([]string, 0, len(p.written))
	for rel := range p.written {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths
}
