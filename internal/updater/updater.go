package updater

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/smazurov/reframer/internal/logging"
	"github.com/smazurov/reframer/internal/version"
)

// Updater checks for and installs new releases.
type Updater struct {
	repository selfupdate.Repository
	updater    *selfupdate.Updater
	backups    *backupManager
	logger     *slog.Logger

	enabled        bool
	disabledReason string
}

// New creates an updater. It is returned disabled, not as an error, when
// the binary's directory is not writable.
func New(opts Options) (*Updater, error) {
	logger := logging.GetLogger("updater")

	if opts.Repository == "" {
		opts.Repository = DefaultRepository
	}

	if canWrite, reason := checkWritePermission(); !canWrite {
		logger.Warn("Self-update disabled", "reason", reason)
		return &Updater{logger: logger, disabledReason: reason}, nil
	}

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}
	up, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: opts.Prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	backupDir := opts.BackupDir
	if backupDir == "" {
		if backupDir, err = defaultBackupDir(); err != nil {
			return nil, err
		}
	}
	backups, err := newBackupManager(backupDir, logger)
	if err != nil {
		logger.Warn("Failed to create backup manager", "error", err)
	}

	return &Updater{
		repository: selfupdate.ParseSlug(opts.Repository),
		updater:    up,
		backups:    backups,
		logger:     logger,
		enabled:    true,
	}, nil
}

func checkWritePermission() (bool, string) {
	exe, err := os.Executable()
	if err != nil {
		return false, fmt.Sprintf("failed to get executable path: %v", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return false, fmt.Sprintf("failed to resolve symlinks: %v", err)
	}
	return dirWritable(filepath.Dir(exe))
}

func dirWritable(dir string) (bool, string) {
	f, err := os.CreateTemp(dir, ".reframer.update.*")
	if err != nil {
		return false, fmt.Sprintf("no write permission to %s: %v", dir, err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true, ""
}

// Enabled reports whether updates can be applied.
func (u *Updater) Enabled() bool { return u.enabled }

// DisabledReason explains why updates are disabled.
func (u *Updater) DisabledReason() string { return u.disabledReason }

// BackupVersion returns the version a rollback would restore, if any.
func (u *Updater) BackupVersion() string {
	if u.backups == nil {
		return ""
	}
	return u.backups.backupVersion()
}

// newer reports whether latest should replace current. Development
// builds always update.
func newer(current string, release *selfupdate.Release) bool {
	return current == "dev" || release.GreaterThan(current)
}

func (u *Updater) detect(ctx context.Context) (*selfupdate.Release, error) {
	if !u.enabled {
		return nil, newError(ErrCodeDisabled, u.disabledReason, nil)
	}
	release, found, err := u.updater.DetectLatest(ctx, u.repository)
	if err != nil {
		return nil, newError(ErrCodeCheckFailed, "failed to check for updates", err)
	}
	if !found {
		return nil, newError(ErrCodeNotFound, "repository not found or has no releases", nil)
	}
	return release, nil
}

// Check queries the latest release without downloading it.
func (u *Updater) Check(ctx context.Context) (*UpdateInfo, error) {
	release, err := u.detect(ctx)
	if err != nil {
		return nil, err
	}
	current := version.Version
	info := &UpdateInfo{
		CurrentVersion:  current,
		LatestVersion:   release.Version(),
		UpdateAvailable: newer(current, release),
	}
	if info.UpdateAvailable {
		info.ReleaseNotes = release.ReleaseNotes
		info.ReleaseURL = release.URL
		info.PublishedAt = release.PublishedAt
		info.AssetSize = release.AssetByteSize
	}
	return info, nil
}

// Apply backs up the running binary and replaces it with the latest
// release. A failed replacement restores the backup.
func (u *Updater) Apply(ctx context.Context) (*UpdateInfo, error) {
	release, err := u.detect(ctx)
	if err != nil {
		return nil, err
	}
	current := version.Version
	if !newer(current, release) {
		return nil, newError(ErrCodeNoUpdate, fmt.Sprintf("already at %s", release.Version()), nil)
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return nil, newError(ErrCodeApplyFailed, "failed to get executable path", err)
	}
	if u.backups != nil {
		if err := u.backups.createBackup(exe, current); err != nil {
			return nil, newError(ErrCodeBackupFailed, "failed to create backup", err)
		}
	}

	if err := u.updater.UpdateTo(ctx, release, exe); err != nil {
		u.restoreAfterFailure()
		return nil, newError(ErrCodeApplyFailed, "failed to apply update", err)
	}

	u.logger.Info("Update applied", "from", current, "to", release.Version())
	return &UpdateInfo{
		CurrentVersion:  current,
		LatestVersion:   release.Version(),
		ReleaseURL:      release.URL,
		PublishedAt:     release.PublishedAt,
		AssetSize:       release.AssetByteSize,
		UpdateAvailable: true,
	}, nil
}

// Rollback restores the binary saved by the last Apply.
func (u *Updater) Rollback() error {
	if !u.enabled {
		return newError(ErrCodeDisabled, u.disabledReason, nil)
	}
	if u.backups == nil || !u.backups.hasBackup() {
		return newError(ErrCodeNoBackup, "no backup available for rollback", nil)
	}
	if err := u.backups.restore(); err != nil {
		return newError(ErrCodeRollbackFailed, "failed to restore backup", err)
	}
	return nil
}

func (u *Updater) restoreAfterFailure() {
	if u.backups == nil || !u.backups.hasBackup() {
		u.logger.Error("No backup available for automatic rollback")
		return
	}
	if err := u.backups.restore(); err != nil {
		u.logger.Error("Failed to restore backup", "error", err)
		return
	}
	u.logger.Info("Automatic rollback completed")
}
