package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startWatcher(t *testing.T, path string, opts ...WatcherOption[Options]) *Watcher[Options] {
	t.Helper()
	w := NewConfigWatcher(path, LoadFile, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	// Let the watcher register before the first write.
	time.Sleep(100 * time.Millisecond)
	return w
}

func workersConfig(n int) []byte {
	return fmt.Appendf(nil, "[encode]\nworkers = %d\n", n)
}

func TestConfigWatcher_Reload(t *testing.T) {
	path := writeConfig(t, string(workersConfig(1)))

	received := make(chan Options, 1)
	w := NewConfigWatcher(path, LoadFile, newTestLogger(), WithDebounce[Options](50*time.Millisecond))
	w.OnReload(func(o Options) { received <- o })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, workersConfig(6), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case o := <-received:
		if o.Workers != 6 {
			t.Errorf("Workers = %d, want 6", o.Workers)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestConfigWatcher_RenameReplace(t *testing.T) {
	path := writeConfig(t, string(workersConfig(1)))

	received := make(chan Options, 1)
	w := startWatcher(t, path, WithDebounce[Options](50*time.Millisecond))
	w.OnReload(func(o Options) { received <- o })

	tmp := filepath.Join(filepath.Dir(path), ".reframer.toml.swp")
	if err := os.WriteFile(tmp, workersConfig(3), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case o := <-received:
		if o.Workers != 3 {
			t.Errorf("Workers = %d, want 3", o.Workers)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}
}

func TestConfigWatcher_IgnoresSiblings(t *testing.T) {
	path := writeConfig(t, string(workersConfig(1)))

	var count atomic.Int32
	w := startWatcher(t, path, WithDebounce[Options](50*time.Millisecond))
	w.OnReload(func(Options) { count.Add(1) })

	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "other.toml"), workersConfig(9), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected no reloads for sibling file, got %d", got)
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	path := writeConfig(t, string(workersConfig(1)))

	var count1, count2 atomic.Int32
	w := startWatcher(t, path, WithDebounce[Options](50*time.Millisecond))
	w.OnReload(func(Options) { count1.Add(1) })
	unsub := w.OnReload(func(Options) { count2.Add(1) })

	if err := os.WriteFile(path, workersConfig(2), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(250 * time.Millisecond)
	unsub()

	if err := os.WriteFile(path, workersConfig(3), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(250 * time.Millisecond)

	if got := count1.Load(); got != 2 {
		t.Errorf("handler1: expected 2 calls, got %d", got)
	}
	if got := count2.Load(); got != 1 {
		t.Errorf("handler2: expected 1 call, got %d", got)
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	path := writeConfig(t, string(workersConfig(1)))

	errs := make(chan error, 1)
	configs := make(chan Options, 1)
	w := startWatcher(t, path,
		WithDebounce[Options](50*time.Millisecond),
		WithErrorHandler[Options](func(err error) { errs <- err }),
	)
	w.OnReload(func(o Options) { configs <- o })

	// Parses, but fails validation.
	if err := os.WriteFile(path, []byte("[encode]\nworkers = -2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errs:
	case <-configs:
		t.Fatal("config handler should not be called on error")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := writeConfig(t, string(workersConfig(0)))

	var count, last atomic.Int32
	w := startWatcher(t, path, WithDebounce[Options](200*time.Millisecond))
	w.OnReload(func(o Options) {
		count.Add(1)
		last.Store(int32(o.Workers))
	})

	for i := 1; i <= 5; i++ {
		if err := os.WriteFile(path, workersConfig(i), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced call, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("expected final value 5, got %d", got)
	}
}

func TestConfigWatcher_Stop(t *testing.T) {
	path := writeConfig(t, string(workersConfig(1)))

	var count atomic.Int32
	w := NewConfigWatcher(path, LoadFile, newTestLogger(), WithDebounce[Options](50*time.Millisecond))
	w.OnReload(func(Options) { count.Add(1) })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, workersConfig(9), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected 0 calls after stop, got %d", got)
	}
}
