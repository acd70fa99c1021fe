package backup_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"cyrfix/internal/backup"
)

func TestBackupWritesByteIdenticalCopy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "album.cue")
	content := []byte{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	m := backup.NewManager(false)
	if err := m.Backup(path); err != nil {
		t.Fatalf("Backup returned error: %v", err)
	}

	got, err := os.ReadFile(path + backup.Suffix)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("backup bytes differ: got % X want % X", got, content)
	}
}

func TestBackupOverwritesExistingBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.mp3")
	if err := os.WriteFile(path, []byte("current"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.WriteFile(path+backup.Suffix, []byte("older run"), 0o644); err != nil {
		t.Fatalf("write stale backup: %v", err)
	}

	if err := backup.NewManager(false).Backup(path); err != nil {
		t.Fatalf("Backup returned error: %v", err)
	}
	got, err := os.ReadFile(path + backup.Suffix)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(got) != "current" {
		t.Fatalf("backup = %q, want %q", got, "current")
	}
}

func TestDisabledManagerSkipsAllIO(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.flac")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := backup.NewManager(true).Backup(path); err != nil {
		t.Fatalf("disabled Backup returned error: %v", err)
	}
	if _, err := os.Stat(path + backup.Suffix); !os.IsNotExist(err) {
		t.Fatalf("expected no backup file, stat err = %v", err)
	}
}

func TestBackupMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	err := backup.NewManager(false).Backup(filepath.Join(dir, "vanished.mp3"))
	if err == nil {
		t.Fatal("expected error when source file is missing")
	}
}
