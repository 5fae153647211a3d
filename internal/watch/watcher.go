// Package watch triggers resynthesis when blueprint inputs change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Op is the kind of file change.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change represents a detected file change.
type Change struct {
	Path string
	Op   Op
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Paths are the directories watched recursively.
	Paths []string

	// Ignore holds doublestar patterns. Patterns without a slash are matched
	// against every path segment, others against the slash-separated path.
	Ignore []string

	// Exclude holds directories whose whole tree is skipped, such as the
	// synthesis output.
	Exclude []string

	// Debounce is the quiet period before a batch of changes is reported.
	Debounce time.Duration

	Logger *slog.Logger
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	".blueprint",
	"node_modules",
	"*.tmp",
	"*.swp",
	"*~",
}

// Watcher monitors directory trees and reports debounced change batches.
type Watcher struct {
	config   WatcherConfig
	exclude  []string
	onChange func([]Change)
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
}

// NewWatcher creates a new file watcher.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Debounce == 0 {
		config.Debounce = 200 * time.Millisecond
	}
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	w := &Watcher{config: config}
	for _, dir := range config.Exclude {
		if abs, err := filepath.Abs(dir); err == nil {
			w.exclude = append(w.exclude, abs)
		}
	}
	return w
}

// OnChange sets the callback for change batches.
func (w *Watcher) OnChange(fn func([]Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start watches until ctx is done or Stop is called. Directories created
// while watching are added to the watch list.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	defer func() {
		fsw.Close()
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	for _, p := range w.config.Paths {
		if err := w.addRecursive(fsw, p); err != nil {
			return err
		}
	}

	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || w.shouldIgnore(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(fsw, event.Name); err != nil {
						w.config.Logger.Warn("watch directory", "path", event.Name, "error", err)
					}
				}
			}
			batch = append(batch, Change{Path: event.Name, Op: convertOp(event.Op)})

			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.config.Debounce)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.config.Logger.Warn("watch error", "error", err)
		case <-timerC:
			timer, timerC = nil, nil
			w.flush(batch)
			batch = nil
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stopCh)
		w.running = false
	}
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) flush(batch []Change) {
	w.mu.Lock()
	callback := w.onChange
	w.mu.Unlock()

	if callback == nil || len(batch) == 0 {
		return
	}
	callback(dedupe(batch))
}

// dedupe keeps the latest change per path, in first-seen order.
func dedupe(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			out[i] = c
			continue
		}
		seen[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.shouldIgnore(p) {
			return filepath.SkipDir
		}
		return fsw.Add(p)
	})
}

// shouldIgnore checks if a path should be ignored.
func (w *Watcher) shouldIgnore(fullPath string) bool {
	if abs, err := filepath.Abs(fullPath); err == nil {
		for _, dir := range w.exclude {
			if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
				return true
			}
		}
	}

	normalized := filepath.ToSlash(fullPath)
	segments := strings.Split(normalized, "/")

	for _, pattern := range w.config.Ignore {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		if strings.Contains(pattern, "/") {
			if matched, _ := doublestar.Match(pattern, normalized); matched {
				return true
			}
			if matched, _ := doublestar.Match("**/"+pattern, normalized); matched {
				return true
			}
			continue
		}

		for _, segment := range segments {
			if segment == "" || segment == "." {
				continue
			}
			if matched, _ := doublestar.Match(pattern, segment); matched {
				return true
			}
		}
	}

	return false
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}
