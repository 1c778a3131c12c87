// Package scratch manages the temporary directory used for pre-step
// artifacts (trimmed and rotated intermediates).
package scratch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/smazurov/reframer/internal/logging"
)

// DirName is the default scratch directory name under the output root.
const DirName = ".reframer-tmp"

// Dir is a private per-batch directory under a scratch root. Names are
// unique across concurrent units.
type Dir struct {
	parent  string
	root    string
	owned   bool
	counter atomic.Uint64
}

// New creates a fresh "batch-*" directory under parent, creating parent
// if needed. Only that directory is removed by Purge; parent is removed
// as well only when New created it and it is empty by then.
func New(parent string) (*Dir, error) {
	_, statErr := os.Stat(parent)
	owned := errors.Is(statErr, os.ErrNotExist)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	root, err := os.MkdirTemp(parent, "batch-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	return &Dir{parent: parent, root: root, owned: owned}, nil
}

// Path returns the batch directory.
func (d *Dir) Path() string { return d.root }

// Name returns a fresh file path "<n>_<token>_<stem><ext>".
func (d *Dir) Name(stem, ext string) string {
	n := d.counter.Add(1)
	token := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return filepath.Join(d.root, fmt.Sprintf("%04d_%s_%s%s", n, token, sanitize(stem), ext))
}

// Session tracks the artifacts of one unit so they can be removed on
// every exit path.
func (d *Dir) Session() *Session {
	return &Session{dir: d}
}

// Purge removes the batch directory and everything in it. Files in the
// scratch root that this batch did not create are left alone.
func (d *Dir) Purge() error {
	if err := os.RemoveAll(d.root); err != nil {
		return fmt.Errorf("purge scratch directory: %w", err)
	}
	if d.owned {
		// Fails harmlessly when another batch or the user put files there.
		_ = os.Remove(d.parent)
	}
	logging.GetLogger("scratch").Debug("Scratch directory purged", "path", d.root)
	return nil
}

// Session is a set of scratch files owned by one unit.
type Session struct {
	dir   *Dir
	mu    sync.Mutex
	files []string
}

// File allocates and records a scratch path.
func (s *Session) File(stem, ext string) string {
	path := s.dir.Name(stem, ext)
	s.mu.Lock()
	s.files = append(s.files, path)
	s.mu.Unlock()
	return path
}

// Files returns the recorded paths.
func (s *Session) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}

// Cleanup removes every recorded file. Missing files are not an error.
func (s *Session) Cleanup() error {
	s.mu.Lock()
	files := s.files
	s.files = nil
	s.mu.Unlock()

	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sanitize(stem string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, stem)
}
