// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
	ch    chan struct{}
}

func newRecorder() *recorder { return &recorder{ch: make(chan struct{}, 16)} }

func (r *recorder) onChange(_ context.Context, changed []string) error {
	r.mu.Lock()
	r.calls = append(r.calls, changed)
	r.mu.Unlock()
	r.ch <- struct{}{}
	return nil
}

func (r *recorder) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change callback")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func startWatcher(t *testing.T, cfg Config) {
	t.Helper()
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	watched := filepath.Join(dir, "cmds.txt")
	other := filepath.Join(dir, "other.txt")
	writeFile(t, watched, "echo a\n")
	writeFile(t, other, "x")

	rec := newRecorder()
	startWatcher(t, Config{Files: []string{watched}, Debounce: 20 * time.Millisecond, OnChange: rec.onChange})

	writeFile(t, other, "y")
	writeFile(t, watched, "echo b\n")
	got := rec.wait(t)
	if len(got) != 1 || got[0] != watched {
		t.Errorf("changed = %v, want [%s]", got, watched)
	}
}

func TestWatcher_DirPatterns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, Config{
		Dir:      dir,
		Patterns: []string{"**/*.sh"},
		Debounce: 20 * time.Millisecond,
		OnChange: rec.onChange,
	})

	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	script := filepath.Join(dir, "run.sh")
	writeFile(t, script, "println hi")
	got := rec.wait(t)
	if len(got) != 1 || got[0] != script {
		t.Errorf("changed = %v, want [%s]", got, script)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Error("New() with nothing to watch should fail")
	}
	if _, err := New(Config{Dir: t.TempDir(), Patterns: []string{"[unclosed"}}); err == nil {
		t.Error("New() with an invalid pattern should fail")
	}
}

func TestRun_Twice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Errorf("first Run() = %v", err)
	}
	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
}

func TestRelevant(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := New(Config{Dir: dir, Patterns: []string{"*.txt"}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.fsw.Close() })

	tests := []struct {
		name string
		evt  fsnotify.Event
		want bool
	}{
		{"matching write", fsnotify.Event{Name: filepath.Join(dir, "a.txt"), Op: fsnotify.Write}, true},
		{"chmod only", fsnotify.Event{Name: filepath.Join(dir, "a.txt"), Op: fsnotify.Chmod}, false},
		{"pattern miss", fsnotify.Event{Name: filepath.Join(dir, "a.go"), Op: fsnotify.Write}, false},
		{"editor swap", fsnotify.Event{Name: filepath.Join(dir, "a.txt.swp"), Op: fsnotify.Write}, false},
		{"git metadata", fsnotify.Event{Name: filepath.Join(dir, ".git", "x.txt"), Op: fsnotify.Write}, false},
		{"outside dir", fsnotify.Event{Name: filepath.Join(filepath.Dir(dir), "b.txt"), Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		if got := w.relevant(tt.evt); got != tt.want {
			t.Errorf("%s: relevant() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
