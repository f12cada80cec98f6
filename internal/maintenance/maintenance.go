// Package maintenance runs the daemon's housekeeping: daily config backups
// and pruning of old debug captures.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupPrefix  = "gl846d-config-"
	backupSuffix  = ".tar.gz"
	backupMaxAge  = 90 * 24 * time.Hour
	dumpMaxAge    = 7 * 24 * time.Hour
	dumpPruneTick = time.Hour
)

// Service manages the background maintenance goroutines.
type Service struct {
	configDir string
	backupDir string
	dumpDir   string // empty when dumps are disabled
}

// New creates a maintenance Service. Backups of configDir go to backupDir.
func New(configDir, backupDir, dumpDir string) *Service {
	return &Service{
		configDir: configDir,
		backupDir: backupDir,
		dumpDir:   dumpDir,
	}
}

// Start launches the maintenance goroutines and blocks until ctx is
// cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.runBackup(ctx)
	if s.dumpDir != "" {
		go s.runPruneDumps(ctx)
	}
	<-ctx.Done()
}

// RunBackupNow performs a backup immediately and returns the archive path.
func (s *Service) RunBackupNow() (string, error) {
	return runBackup(s.configDir, s.backupDir, time.Now())
}

// ListBackups returns the backup archives, oldest first.
func (s *Service) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	files := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), backupSuffix) {
			files = append(files, filepath.Join(s.backupDir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// runBackup backs the config up every day at 2am.
func (s *Service) runBackup(ctx context.Context) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, now.Location())
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
			path, err := s.RunBackupNow()
			if err != nil {
				slog.Error("maintenance: backup failed", "err", err)
			} else {
				slog.Info("maintenance: backup created", "file", path)
			}
		}
	}
}

func (s *Service) runPruneDumps(ctx context.Context) {
	t := time.NewTicker(dumpPruneTick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pruneOld(s.dumpDir, "", ".tiff", dumpMaxAge)
		}
	}
}

// runBackup archives configDir into backupDir with the date of now in the
// name, then prunes old archives.
func runBackup(configDir, backupDir string, now time.Time) (string, error) {
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	dest := filepath.Join(backupDir, backupPrefix+now.Format("2006-01-02")+backupSuffix)
	cmd := exec.Command("tar", "-czf", dest, "-C", filepath.Dir(configDir), filepath.Base(configDir))
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("tar: %w: %s", err, out)
	}

	pruneOld(backupDir, backupPrefix, backupSuffix, backupMaxAge)
	return dest, nil
}

// pruneOld deletes files in dir matching prefix and suffix whose mod time
// is older than maxAge.
func pruneOld(dir, prefix, suffix string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(dir, e.Name())
			if err := os.Remove(path); err != nil {
				slog.Warn("maintenance: failed to prune", "file", path, "err", err)
			} else {
				slog.Debug("maintenance: pruned", "file", path)
			}
		}
	}
}
