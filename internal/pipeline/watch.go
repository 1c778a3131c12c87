package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/smazurov/reframer/internal/events"
	"github.com/smazurov/reframer/internal/logging"
)

// DefaultSettle is how long a new file must stay unchanged before it is
// handed to the batch handler.
const DefaultSettle = 3 * time.Second

// BatchFunc processes a set of settled files. Calls are serialized.
type BatchFunc func(ctx context.Context, files []string)

// WatchConfig configures a DirWatcher.
type WatchConfig struct {
	Dir       string
	Recursive bool
	Settle    time.Duration
	Exclude   []string // directories never watched, e.g. the output root
	Bus       *events.Bus
}

// DirWatcher reports video files that appear in a directory once their
// size has stopped changing.
type DirWatcher struct {
	cfg      WatchConfig
	handler  BatchFunc
	logger   *slog.Logger
	excluded map[string]bool

	mu      sync.Mutex
	pending map[string]pendingFile
	seen    map[string]bool
}

type pendingFile struct {
	size    int64
	changed time.Time
}

// NewDirWatcher creates a watcher that calls handler with settled files.
func NewDirWatcher(cfg WatchConfig, handler BatchFunc) *DirWatcher {
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	excluded := make(map[string]bool, len(cfg.Exclude))
	for _, e := range cfg.Exclude {
		if abs, err := filepath.Abs(e); err == nil {
			excluded[abs] = true
		}
	}
	return &DirWatcher{
		cfg:      cfg,
		handler:  handler,
		logger:   logging.GetLogger("watch"),
		excluded: excluded,
		pending:  make(map[string]pendingFile),
		seen:     make(map[string]bool),
	}
}

// MarkSeen records files that were already processed so later events for
// them are ignored.
func (w *DirWatcher) MarkSeen(files []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range files {
		w.seen[f] = true
	}
}

// Run watches until ctx is cancelled. The handler runs on its own
// goroutine so events keep draining while a batch encodes.
func (w *DirWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.cfg.Dir); err != nil {
		return err
	}
	w.logger.Info("Watching for new sources", "dir", w.cfg.Dir, "recursive", w.cfg.Recursive, "settle", w.cfg.Settle)

	batches := make(chan []string, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for files := range batches {
			if ctx.Err() != nil {
				continue
			}
			w.handler(ctx, files)
		}
	}()
	defer func() {
		close(batches)
		wg.Wait()
	}()

	ticker := time.NewTicker(max(w.cfg.Settle/3, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(watcher, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", "error", err)

		case now := <-ticker.C:
			if ready := w.settled(now); len(ready) > 0 {
				select {
				case batches <- ready:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (w *DirWatcher) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if w.cfg.Recursive && event.Has(fsnotify.Create) {
			if err := w.addTree(watcher, event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
		}
		return
	}
	if !info.Mode().IsRegular() || !IsVideo(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[event.Name] {
		return
	}
	if _, ok := w.pending[event.Name]; !ok {
		w.logger.Debug("New source detected", "path", event.Name)
	}
	w.pending[event.Name] = pendingFile{size: info.Size(), changed: time.Now()}
}

// settled returns pending files that have not changed for the settle
// interval and have a stable, non-zero size.
func (w *DirWatcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, p := range w.pending {
		if now.Sub(p.changed) < w.cfg.Settle {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			delete(w.pending, path)
			continue
		}
		if info.Size() != p.size || info.Size() == 0 {
			w.pending[path] = pendingFile{size: info.Size(), changed: now}
			continue
		}
		delete(w.pending, path)
		w.seen[path] = true
		ready = append(ready, path)
		w.cfg.Bus.Publish(events.FileDiscoveredEvent{Path: path, Timestamp: now.Format(time.RFC3339)})
	}
	sort.Strings(ready)
	if len(ready) > 0 {
		w.logger.Info("Sources settled", "count", len(ready))
	}
	return ready
}

// addTree watches root and, when recursive, every directory below it.
func (w *DirWatcher) addTree(watcher *fsnotify.Watcher, root string) error {
	if !w.cfg.Recursive {
		if err := watcher.Add(root); err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root {
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if abs, absErr := filepath.Abs(path); absErr == nil && w.excluded[abs] {
				return filepath.SkipDir
			}
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
