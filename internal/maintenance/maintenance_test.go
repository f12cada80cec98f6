package maintenance

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestBackup_CreatesFile verifies that runBackup creates a .tar.gz archive.
func TestBackup_CreatesFile(t *testing.T) {
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar not available")
	}
	cfgDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(cfgDir, "gl846d.json"), []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}
	backupDir := filepath.Join(t.TempDir(), "backups")

	file, err := runBackup(cfgDir, backupDir, time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("runBackup: %v", err)
	}
	if filepath.Base(file) != "gl846d-config-2026-03-04.tar.gz" {
		t.Errorf("backup file = %q", file)
	}
	if st, err := os.Stat(file); err != nil || st.Size() == 0 {
		t.Errorf("backup file %q missing or empty: %v", file, err)
	}
}

// TestPruneOld verifies that only matching files older than maxAge go.
func TestPruneOld(t *testing.T) {
	dir := t.TempDir()
	past := time.Now().Add(-100 * 24 * time.Hour)

	files := map[string]bool{ // name -> should survive
		"gl846d-config-2099-01-01.tar.gz": true,
		"gl846d-config-2000-01-01.tar.gz": false,
		"notes-2000-01-01.txt":            true,
	}
	for name, keep := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if !keep || strings.HasPrefix(name, "notes") {
			if err := os.Chtimes(path, past, past); err != nil {
				t.Fatal(err)
			}
		}
	}

	pruneOld(dir, backupPrefix, backupSuffix, backupMaxAge)

	for name, keep := range files {
		_, err := os.Stat(filepath.Join(dir, name))
		if keep && err != nil {
			t.Errorf("%s was pruned", name)
		}
		if !keep && !os.IsNotExist(err) {
			t.Errorf("%s still exists", name)
		}
	}
}

func TestPruneDumps(t *testing.T) {
	dir := t.TempDir()
	past := time.Now().Add(-8 * 24 * time.Hour)
	old := filepath.Join(dir, "gl846_gain.tiff")
	fresh := filepath.Join(dir, "gl846_led_00.tiff")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("II*"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	pruneOld(dir, "", ".tiff", dumpMaxAge)

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old dump still exists")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh dump was pruned")
	}
}

// TestListBackups verifies that ListBackups returns only backup archives.
func TestListBackups(t *testing.T) {
	backupDir := t.TempDir()
	names := []string{
		"gl846d-config-2024-06-15.tar.gz",
		"gl846d-config-2024-01-01.tar.gz",
		"other-file.txt",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(backupDir, n), []byte{}, 0644); err != nil {
			t.Fatal(err)
		}
	}

	s := New(t.TempDir(), backupDir, "")
	files, err := s.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("ListBackups returned %d files; want 2: %v", len(files), files)
	}
	if filepath.Base(files[0]) != "gl846d-config-2024-01-01.tar.gz" {
		t.Errorf("first = %q, want the oldest", files[0])
	}

	empty := New("", filepath.Join(backupDir, "missing"), "")
	if files, err := empty.ListBackups(); err != nil || len(files) != 0 {
		t.Errorf("missing dir = %v, %v", files, err)
	}
}
