// Package updater replaces the running binary with the latest GitHub
// release. It backs the update subcommand: check, optionally apply, exit.
// The running capture service is never updated in place; systemd restarts
// it on the next unit cycle with the swapped binary.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/smazurov/viewfinder/internal/logging"
	"github.com/smazurov/viewfinder/internal/version"
)

// Options configures the release source.
type Options struct {
	Repository string // GitHub slug, e.g. "smazurov/viewfinder"
	Prerelease bool
}

// UpdateInfo is the result of a release check.
type UpdateInfo struct {
	CurrentVersion  string
	LatestVersion   string
	ReleaseNotes    string
	ReleaseURL      string
	PublishedAt     time.Time
	AssetSize       int
	UpdateAvailable bool
}

// Updater checks and applies releases for one repository.
type Updater struct {
	updater    *selfupdate.Updater
	repository selfupdate.Repository
	backup     *backupManager
	latest     *selfupdate.Release
	log        *slog.Logger
}

// New builds an updater for the configured repository. It fails up front
// when the executable's directory is not writable, so a check cannot
// succeed only for the apply to fail.
func New(opts Options) (*Updater, error) {
	log := logging.GetLogger("updater")

	if err := checkWritable(); err != nil {
		return nil, newError(ErrCodePermission, "cannot replace the running binary", err)
	}

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("create github source: %w", err)
	}
	u, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: opts.Prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("create updater: %w", err)
	}

	backup, err := newBackupManager(log)
	if err != nil {
		log.Warn("backups unavailable, a failed update cannot be rolled back", "error", err)
	}

	return &Updater{
		updater:    u,
		repository: selfupdate.ParseSlug(opts.Repository),
		backup:     backup,
		log:        log,
	}, nil
}

// checkWritable proves the executable can be replaced by creating a file
// next to it.
func checkWritable() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	probe := filepath.Join(filepath.Dir(exe), ".viewfinder.update.probe")
	f, err := os.Create(probe)
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(probe)
}

// Check queries the latest release and compares it against the running
// version. A dev build is always considered outdated.
func (u *Updater) Check(ctx context.Context) (*UpdateInfo, error) {
	release, found, err := u.updater.DetectLatest(ctx, u.repository)
	if err != nil {
		return nil, newError(ErrCodeCheckFailed, "query latest release", err)
	}
	if !found {
		return nil, newError(ErrCodeNotFound, "repository has no releases", nil)
	}

	current := version.Version
	info := &UpdateInfo{
		CurrentVersion:  current,
		LatestVersion:   release.Version(),
		ReleaseNotes:    release.ReleaseNotes,
		ReleaseURL:      release.URL,
		PublishedAt:     release.PublishedAt,
		AssetSize:       release.AssetByteSize,
		UpdateAvailable: current == "dev" || release.GreaterThan(current),
	}
	if info.UpdateAvailable {
		u.latest = release
	}
	return info, nil
}

// Apply downloads the latest release over the running binary. The current
// binary is backed up first and restored when the swap fails partway.
// When nothing newer exists Apply returns the check result unchanged.
func (u *Updater) Apply(ctx context.Context) (*UpdateInfo, error) {
	info, err := u.Check(ctx)
	if err != nil {
		return nil, err
	}
	if !info.UpdateAvailable {
		return info, nil
	}

	if u.backup != nil {
		if err := u.backup.create(); err != nil {
			return nil, newError(ErrCodeBackupFailed, "back up current binary", err)
		}
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return nil, newError(ErrCodeApplyFailed, "resolve executable path", err)
	}
	if err := u.updater.UpdateTo(ctx, u.latest, exe); err != nil {
		u.restoreAfterFailure()
		return nil, newError(ErrCodeApplyFailed, "apply release "+info.LatestVersion, err)
	}

	u.log.Info("update applied", "from", info.CurrentVersion, "to", info.LatestVersion)
	return info, nil
}

// Rollback swaps the backed up binary back in and returns its version.
func (u *Updater) Rollback() (string, error) {
	if u.backup == nil || !u.backup.exists() {
		return "", newError(ErrCodeNoBackup, "no backup to roll back to", nil)
	}
	ver := u.backup.version()
	if err := u.backup.restore(); err != nil {
		return "", newError(ErrCodeRollbackFailed, "restore backup", err)
	}
	u.log.Info("rolled back", "to", ver)
	return ver, nil
}

func (u *Updater) restoreAfterFailure() {
	if u.backup == nil || !u.backup.exists() {
		u.log.Error("no backup to restore after failed update")
		return
	}
	if err := u.backup.restore(); err != nil {
		u.log.Error("restore after failed update", "error", err)
		return
	}
	u.log.Info("restored previous binary after failed update")
}
