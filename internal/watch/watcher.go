// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs work when files change. Events are debounced so an
// editor's write-then-rename produces one callback carrying every changed
// path.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

var defaultIgnores = []string{
	"**/.git/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

type (
	// Config selects what to watch.
	Config struct {
		// Files are watched individually, by way of their directories.
		Files []string
		// Dir is walked recursively; events below it are filtered by
		// Patterns. Empty disables directory watching.
		Dir string
		// Patterns are doublestar globs relative to Dir. Empty matches
		// every file not ignored.
		Patterns []string
		// Debounce is the quiet period before OnChange fires.
		Debounce time.Duration
		// OnChange receives the sorted absolute paths that changed. Calls
		// never overlap.
		OnChange func(ctx context.Context, changed []string) error
		// Logger defaults to a discarding logger.
		Logger *log.Logger
	}

	// Watcher delivers debounced change notifications. Run may be called
	// once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		files    map[string]struct{}
		dir      string
		debounce time.Duration
		logger   *log.Logger
		started  atomic.Bool
	}
)

// New validates cfg and registers the watches.
func New(cfg Config) (*Watcher, error) {
	for _, pat := range cfg.Patterns {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid pattern %q", pat)
		}
	}
	if len(cfg.Files) == 0 && cfg.Dir == "" {
		return nil, errors.New("watch: nothing to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		files:    make(map[string]struct{}),
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard)
	}

	if err := w.register(); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) register() error {
	dirs := make(map[string]struct{})
	for _, f := range w.cfg.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("watch: resolve %q: %w", f, err)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for _, d := range slices.Sorted(maps.Keys(dirs)) {
		if err := w.fsw.Add(d); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", d, err)
		}
	}

	if w.cfg.Dir == "" {
		return nil
	}
	abs, err := filepath.Abs(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("watch: resolve %q: %w", w.cfg.Dir, err)
	}
	w.dir = abs
	err = filepath.WalkDir(abs, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(abs, path); rel != "." && w.ignored(rel+"/") {
			return filepath.SkipDir
		}
		if _, seen := dirs[path]; seen {
			return nil
		}
		return w.fsw.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch: walk %q: %w", abs, err)
	}
	return nil
}

// Run processes events until ctx ends, calling OnChange on the calling
// goroutine. It returns nil on cancellation and an error when the watcher
// breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() { _ = w.fsw.Close() }()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			if !w.relevant(evt) {
				continue
			}
			pending[evt.Name] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			w.logger.Debug("files changed", "count", len(changed))
			if w.cfg.OnChange == nil {
				continue
			}
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("change handler failed", "error", err)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if isFatal(err) {
				return fmt.Errorf("watch: %w", err)
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) relevant(evt fsnotify.Event) bool {
	if evt.Op == fsnotify.Chmod {
		return false
	}
	if _, ok := w.files[evt.Name]; ok {
		return true
	}
	if w.dir == "" {
		return false
	}
	rel, err := filepath.Rel(w.dir, evt.Name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	if w.ignored(rel) {
		return false
	}
	if evt.Has(fsnotify.Create) {
		if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
			if !w.ignored(rel + "/") {
				if err := w.fsw.Add(evt.Name); err != nil {
					w.logger.Warn("cannot watch new directory", "path", evt.Name, "error", err)
				}
			}
			return false
		}
	}
	return w.matches(rel)
}

func (w *Watcher) ignored(rel string) bool {
	return matchAny(defaultIgnores, filepath.ToSlash(rel))
}

func (w *Watcher) matches(rel string) bool {
	return len(w.cfg.Patterns) == 0 || matchAny(w.cfg.Patterns, filepath.ToSlash(rel))
}

func matchAny(patterns []string, name string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}
