package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func runWatcher(t *testing.T, cfg WatchConfig) (*DirWatcher, <-chan []string, context.CancelFunc) {
	t.Helper()
	batches := make(chan []string, 8)
	w := NewDirWatcher(cfg, func(_ context.Context, files []string) {
		batches <- files
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.Run(ctx); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	// Let the watch register before files appear.
	time.Sleep(50 * time.Millisecond)
	return w, batches, cancel
}

func TestDirWatcher_ReportsSettledFiles(t *testing.T) {
	dir := t.TempDir()
	_, batches, _ := runWatcher(t, WatchConfig{Dir: dir, Settle: 100 * time.Millisecond})

	touch(t, dir, "clip.mp4")
	touch(t, dir, "notes.txt")

	select {
	case files := <-batches:
		if got := basenames(files); !sliceEqual(got, []string{"clip.mp4"}) {
			t.Errorf("got %v, want [clip.mp4]", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for settled file")
	}
}

func TestDirWatcher_IgnoresSeenFiles(t *testing.T) {
	dir := t.TempDir()
	w, batches, _ := runWatcher(t, WatchConfig{Dir: dir, Settle: 100 * time.Millisecond})
	w.MarkSeen([]string{filepath.Join(dir, "old.mp4")})

	touch(t, dir, "old.mp4")
	touch(t, dir, "new.mp4")

	select {
	case files := <-batches:
		if got := basenames(files); !sliceEqual(got, []string{"new.mp4"}) {
			t.Errorf("got %v, want [new.mp4]", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for settled file")
	}
}

func TestDirWatcher_WaitsForEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	_, batches, _ := runWatcher(t, WatchConfig{Dir: dir, Settle: 100 * time.Millisecond})

	path := filepath.Join(dir, "copying.mp4")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case files := <-batches:
		t.Fatalf("empty file reported: %v", files)
	case <-time.After(400 * time.Millisecond):
	}

	if err := os.WriteFile(path, []byte("frames"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case files := <-batches:
		if got := basenames(files); !sliceEqual(got, []string{"copying.mp4"}) {
			t.Errorf("got %v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for file after write")
	}
}

func TestDirWatcher_RecursiveNewDirectory(t *testing.T) {
	dir := t.TempDir()
	_, batches, _ := runWatcher(t, WatchConfig{Dir: dir, Recursive: true, Settle: 100 * time.Millisecond})

	sub := filepath.Join(dir, "day1")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	touch(t, sub, "clip.mov")

	select {
	case files := <-batches:
		if got := basenames(files); !sliceEqual(got, []string{"clip.mov"}) {
			t.Errorf("got %v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for nested file")
	}
}

func TestDirWatcher_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	w := NewDirWatcher(WatchConfig{Dir: dir}, func(context.Context, []string) {})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDirWatcher_MissingDir(t *testing.T) {
	w := NewDirWatcher(WatchConfig{Dir: filepath.Join(t.TempDir(), "nope")}, func(context.Context, []string) {})
	if err := w.Run(context.Background()); err == nil {
		t.Error("expected error for missing directory")
	}
}
