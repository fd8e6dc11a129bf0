package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/roundtable/internal/logging"
)

// debounceInterval batches bursts of events from a single save.
const debounceInterval = 50 * time.Millisecond

// Watcher records which files under a project root change while a run is in
// progress. The caller subtracts the paths it wrote itself to find changes
// made by something else.
type Watcher struct {
	root    string
	ignore  *IgnoreMatcher
	logger  *logging.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	changed map[string]time.Time

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a Watcher for root. Nothing is watched until Start.
func NewWatcher(root string, ignore *IgnoreMatcher, logger *logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Watcher{
		root:    root,
		ignore:  ignore,
		logger:  logger,
		watcher: fw,
		changed: make(map[string]time.Time),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start adds the root and its non-ignored subdirectories and begins
// processing events.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.root); err != nil {
		return err
	}
	w.watchDirRecursive(w.root)
	go w.watchLoop()
	return nil
}

// Stop ends watching. Events fsnotify already delivered are recorded before
// it returns. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		_ = w.watcher.Close()
	})
}

// Changed returns the relative paths that changed, sorted.
func (w *Watcher) Changed() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.changed))
	for p := range w.changed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (w *Watcher) watchDirRecursive(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if rel, ok := w.relative(path); ok && w.ignore.Match(rel) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Debug("failed to watch directory", "path", path, "error", err.Error())
		}
		return nil
	})
}

func (w *Watcher) watchLoop() {
	defer close(w.doneCh)

	debounce := time.NewTimer(debounceInterval)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := make(map[string]fsnotify.Event)

	flush := func() {
		for _, ev := range pending {
			w.handleEvent(ev)
		}
		pending = make(map[string]fsnotify.Event)
	}

	// queue reports whether ev was kept for the next flush.
	queue := func(ev fsnotify.Event) bool {
		if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
			return false
		}
		if ev.Op&fsnotify.Create != 0 {
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				w.watchDirRecursive(ev.Name)
				return false
			}
		}
		pending[ev.Name] = ev
		return true
	}

	for {
		select {
		case <-w.stopCh:
		drain:
			for {
				select {
				case ev, ok := <-w.watcher.Events:
					if !ok {
						break drain
					}
					queue(ev)
				default:
					break drain
				}
			}
			flush()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				flush()
				return
			}
			if queue(ev) {
				debounce.Reset(debounceInterval)
			}

		case <-debounce.C:
			flush()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				flush()
				return
			}
			w.logger.Warn("file watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	rel, ok := w.relative(ev.Name)
	if !ok || w.ignore.Match(rel) {
		return
	}

	w.mu.Lock()
	w.changed[rel] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || !within(w.root, path) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
