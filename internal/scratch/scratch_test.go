package scratch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestNamesUnique(t *testing.T) {
	d, err := New(filepath.Join(t.TempDir(), DirName))
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				name := d.Name("clip", ".mp4")
				mu.Lock()
				if seen[name] {
					t.Errorf("duplicate scratch name %s", name)
				}
				seen[name] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 400 {
		t.Errorf("got %d names, want 400", len(seen))
	}
}

func TestNameSanitized(t *testing.T) {
	d, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	name := filepath.Base(d.Name("my clip:1", ".mov"))
	if strings.ContainsAny(name, " :") || !strings.HasSuffix(name, "_my_clip_1.mov") {
		t.Errorf("name = %q", name)
	}
	if filepath.Dir(d.Name("x", ".mp4")) != d.Path() {
		t.Error("name not under scratch root")
	}
}

func TestSessionCleanup(t *testing.T) {
	d, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := d.Session()
	trimmed := s.File("clip_trim", ".mp4")
	rotated := s.File("clip_rot", ".mp4")
	if err := os.WriteFile(trimmed, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// rotated never written: cleanup must tolerate it.

	other := d.Session().File("other", ".mp4")
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := s.Files(); len(got) != 2 || got[1] != rotated {
		t.Errorf("Files = %v", got)
	}
	if err := s.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(trimmed); !os.IsNotExist(err) {
		t.Error("trimmed artifact not removed")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("cleanup removed another session's file")
	}
	if len(s.Files()) != 0 {
		t.Error("session not reset")
	}
}

func TestPurge(t *testing.T) {
	root := filepath.Join(t.TempDir(), DirName)
	d, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(d.Name("a", ".mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(d.Path()) != root {
		t.Errorf("batch dir %s not under %s", d.Path(), root)
	}
	if err := d.Purge(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Error("scratch root created by New still exists")
	}
	if err := d.Purge(); err != nil {
		t.Errorf("second purge: %v", err)
	}
}

func TestPurgeKeepsExistingFiles(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "keep-me.txt")
	if err := os.WriteFile(keep, []byte("user data"), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	other, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	if d.Path() == other.Path() {
		t.Fatal("two batches share a scratch directory")
	}
	if err := os.WriteFile(d.Name("a", ".mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := d.Purge(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("pre-existing file removed: %v", err)
	}
	if _, err := os.Stat(d.Path()); !os.IsNotExist(err) {
		t.Error("batch directory still exists")
	}
	if _, err := os.Stat(other.Path()); err != nil {
		t.Errorf("other batch directory removed: %v", err)
	}
}
