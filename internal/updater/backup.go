package updater

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/smazurov/viewfinder/internal/version"
)

const (
	backupBinary = "viewfinder.previous"
	backupRecord = "backup.json"
)

type backupInfo struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	ExecPath  string    `json:"exec_path"`
}

// backupManager keeps one previous binary under the user cache directory
// so a bad release can be rolled back without re-downloading.
type backupManager struct {
	dir  string
	info *backupInfo
	log  *slog.Logger
}

func newBackupManager(log *slog.Logger) (*backupManager, error) {
	cache, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("locate cache directory: %w", err)
	}
	dir := filepath.Join(cache, "viewfinder", "backup")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	m := &backupManager{dir: dir, log: log}
	m.load()
	return m, nil
}

// load picks up a backup left by an earlier run. A record without its
// binary counts as no backup.
func (m *backupManager) load() {
	data, err := os.ReadFile(filepath.Join(m.dir, backupRecord))
	if err != nil {
		return
	}
	var info backupInfo
	if err := json.Unmarshal(data, &info); err != nil {
		m.log.Warn("unreadable backup record", "error", err)
		return
	}
	if _, err := os.Stat(filepath.Join(m.dir, backupBinary)); err != nil {
		m.log.Warn("backup record without its binary", "dir", m.dir)
		return
	}
	m.info = &info
}

func (m *backupManager) create() error {
	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	if err := copyFile(filepath.Join(m.dir, backupBinary), exe); err != nil {
		return err
	}

	info := backupInfo{
		Version:   version.Version,
		CreatedAt: time.Now(),
		ExecPath:  exe,
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode backup record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, backupRecord), data, 0o644); err != nil {
		return fmt.Errorf("write backup record: %w", err)
	}

	m.info = &info
	m.log.Info("backed up current binary", "version", info.Version, "dir", m.dir)
	return nil
}

// restore copies the backed up binary over the path it was taken from,
// which survives the executable itself having been replaced since.
func (m *backupManager) restore() error {
	if m.info == nil {
		return fmt.Errorf("no backup available")
	}
	return copyFile(m.info.ExecPath, filepath.Join(m.dir, backupBinary))
}

func (m *backupManager) exists() bool { return m.info != nil }

func (m *backupManager) version() string {
	if m.info == nil {
		return ""
	}
	return m.info.Version
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}
