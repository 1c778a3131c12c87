package updater

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smazurov/reframer/internal/logging"
)

func TestBackupAndRestore(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "reframer")
	if err := os.WriteFile(exe, []byte("v1"), 0o755); err != nil {
		t.Fatal(err)
	}

	backupDir := filepath.Join(dir, "backup")
	mgr, err := newBackupManager(backupDir, logging.GetLogger("updater"))
	if err != nil {
		t.Fatalf("newBackupManager: %v", err)
	}
	if mgr.hasBackup() {
		t.Fatal("fresh manager reports a backup")
	}
	if err := mgr.createBackup(exe, "1.0.0"); err != nil {
		t.Fatalf("createBackup: %v", err)
	}

	if err := os.WriteFile(exe, []byte("v2"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := mgr.restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	data, _ := os.ReadFile(exe)
	if string(data) != "v1" {
		t.Errorf("restored binary = %q, want v1", data)
	}

	// A new manager picks the backup up from disk.
	reloaded, err := newBackupManager(backupDir, logging.GetLogger("updater"))
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.backupVersion() != "1.0.0" {
		t.Errorf("backupVersion = %q", reloaded.backupVersion())
	}
}

func TestRestoreWithoutBackup(t *testing.T) {
	mgr, err := newBackupManager(t.TempDir(), logging.GetLogger("updater"))
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.restore(); err == nil {
		t.Fatal("expected error")
	}
}

func TestDirWritable(t *testing.T) {
	dir := t.TempDir()
	if ok, reason := dirWritable(dir); !ok {
		t.Fatalf("temp dir not writable: %s", reason)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}
	if ok, _ := dirWritable(filepath.Join(dir, "missing")); ok {
		t.Error("missing directory reported writable")
	}
}

func TestDisabledUpdater(t *testing.T) {
	u := &Updater{disabledReason: "read-only"}
	if u.Enabled() {
		t.Fatal("zero updater enabled")
	}
	if err := u.Rollback(); !HasCode(err, ErrCodeDisabled) {
		t.Errorf("Rollback error = %v", err)
	}
	if _, err := u.Apply(context.Background()); !HasCode(err, ErrCodeDisabled) || HasCode(err, ErrCodeNoUpdate) {
		t.Errorf("Apply error = %v", err)
	}
	if u.BackupVersion() != "" {
		t.Errorf("BackupVersion = %q", u.BackupVersion())
	}
}

func TestDevBuildAlwaysUpdates(t *testing.T) {
	if !newer("dev", nil) {
		t.Error("dev build should update")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := newError(ErrCodeApplyFailed, "failed to apply update", cause)
	if !errors.Is(err, cause) {
		t.Error("cause not unwrapped")
	}
	if err.Error() != "APPLY_FAILED: failed to apply update: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}
