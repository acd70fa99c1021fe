package scanner_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"cyrfix/internal/audiotag"
	"cyrfix/internal/backup"
	"cyrfix/internal/cue"
	"cyrfix/internal/mojibake"
	"cyrfix/internal/scanner"
)

// cp1251 encoding of `TITLE "Песня"`.
var legacyCue = []byte{'T', 'I', 'T', 'L', 'E', ' ', '"', 0xCF, 0xE5, 0xF1, 0xED, 0xFF, '"', '\n'}

type memContainer struct {
	fields map[string][]string
}

func (m *memContainer) TextFields() map[string][]string {
	out := make(map[string][]string, len(m.fields))
	for k, v := range m.fields {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (m *memContainer) SetText(key string, values ...string) { m.fields[key] = values }
func (m *memContainer) Save() error                          { return nil }
func (m *memContainer) Close() error                         { return nil }

type captureReporter struct {
	events []scanner.Event
}

func (c *captureReporter) FileFixed(e scanner.Event) { c.events = append(c.events, e) }

func write(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newScanner(t *testing.T, containers map[string]*memContainer, reporter scanner.Reporter) *scanner.Scanner {
	t.Helper()
	backups := backup.NewManager(false)
	open := func(path string) (audiotag.Container, error) {
		c, ok := containers[filepath.Base(path)]
		if !ok {
			return &memContainer{fields: map[string][]string{}}, nil
		}
		return c, nil
	}
	cueProc := cue.NewProcessor(backups, false, false, nil)
	audioProc := audiotag.NewProcessor(backups, mojibake.DefaultThreshold, false, open, nil)
	return scanner.New(cueProc, audioProc, true, reporter, nil)
}

func TestRunFixesClassifiedFilesAndCounts(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "album", "album.cue"), legacyCue)
	write(t, filepath.Join(root, "album", "notes.txt"), []byte{0xCF, 0xE5}) // unmatched extension
	write(t, filepath.Join(root, "album", "01.mp3"), []byte("mp3 bytes"))
	write(t, filepath.Join(root, "album", "02.flac"), []byte("flac bytes"))

	containers := map[string]*memContainer{
		"01.mp3":  {fields: map[string][]string{"TIT2": {"Ëüâèöà ðîêà"}}},
		"02.flac": {fields: map[string][]string{"TITLE": {"Already Correct"}}},
	}
	reporter := &captureReporter{}
	s := newScanner(t, containers, reporter)

	summary, err := s.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Fixed != 2 {
		t.Fatalf("fixed = %d, want 2", summary.Fixed)
	}
	if summary.Scanned != 3 {
		t.Fatalf("scanned = %d, want 3 (txt must be ignored)", summary.Scanned)
	}
	if summary.Errors != 0 {
		t.Fatalf("errors = %d, want 0", summary.Errors)
	}

	if len(reporter.events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(reporter.events), reporter.events)
	}
	labels := map[string]bool{}
	for _, e := range reporter.events {
		labels[e.Label] = true
	}
	if !labels["CUE"] || !labels["MP3"] {
		t.Fatalf("unexpected labels: %+v", labels)
	}

	// Unmatched extension stays untouched even though its bytes are legacy.
	raw, err := os.ReadFile(filepath.Join(root, "album", "notes.txt"))
	if err != nil {
		t.Fatalf("read notes.txt: %v", err)
	}
	if raw[0] != 0xCF {
		t.Fatal("unmatched extension file was modified")
	}
}

func TestRunMissingRootFails(t *testing.T) {
	s := newScanner(t, nil, nil)
	if _, err := s.Run(context.Background(), filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestRunUppercaseExtensionsClassified(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "ALBUM.CUE"), legacyCue)

	reporter := &captureReporter{}
	s := newScanner(t, nil, reporter)
	summary, err := s.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Fixed != 1 {
		t.Fatalf("fixed = %d, want 1", summary.Fixed)
	}
}

func TestRunFollowsDirectorySymlinks(t *testing.T) {
	real := t.TempDir()
	write(t, filepath.Join(real, "album.cue"), legacyCue)

	root := t.TempDir()
	if err := os.Symlink(real, filepath.Join(root, "linked")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	s := newScanner(t, nil, nil)
	summary, err := s.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Fixed != 1 {
		t.Fatalf("fixed = %d, want 1 (symlinked dir must be walked)", summary.Fixed)
	}
}

func TestRunIgnoresSymlinksWhenDisabled(t *testing.T) {
	real := t.TempDir()
	write(t, filepath.Join(real, "album.cue"), legacyCue)

	root := t.TempDir()
	if err := os.Symlink(real, filepath.Join(root, "linked")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	backups := backup.NewManager(false)
	cueProc := cue.NewProcessor(backups, false, false, nil)
	audioProc := audiotag.NewProcessor(backups, mojibake.DefaultThreshold, false,
		func(string) (audiotag.Container, error) { return &memContainer{fields: map[string][]string{}}, nil }, nil)
	s := scanner.New(cueProc, audioProc, false, nil, nil)

	summary, err := s.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Fixed != 0 {
		t.Fatalf("fixed = %d, want 0", summary.Fixed)
	}
}

func TestRunProcessesSingleFileRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "album.cue")
	write(t, path, legacyCue)

	s := newScanner(t, nil, nil)
	summary, err := s.Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Fixed != 1 {
		t.Fatalf("fixed = %d, want 1", summary.Fixed)
	}
}

func TestRunSkipsContainersWithoutTagBackend(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "ambience.wav"), []byte("RIFF"))
	write(t, filepath.Join(root, "album.cue"), legacyCue)

	backups := backup.NewManager(false)
	open := func(path string) (audiotag.Container, error) {
		return nil, fmt.Errorf("%w: %s", audiotag.ErrUnsupportedFormat, filepath.Ext(path))
	}
	cueProc := cue.NewProcessor(backups, false, false, nil)
	audioProc := audiotag.NewProcessor(backups, mojibake.DefaultThreshold, false, open, nil)
	s := scanner.New(cueProc, audioProc, false, nil, nil)

	summary, err := s.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Errors != 0 {
		t.Fatalf("errors = %d, want 0 (unsupported container is a skip, not a failure)", summary.Errors)
	}
	if summary.Fixed != 1 {
		t.Fatalf("fixed = %d, want 1", summary.Fixed)
	}
}

func TestRunContinuesAfterProcessorError(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "broken.mp3"), []byte("x"))
	write(t, filepath.Join(root, "z-album.cue"), legacyCue)

	backups := backup.NewManager(false)
	open := func(path string) (audiotag.Container, error) {
		return nil, os.ErrInvalid
	}
	cueProc := cue.NewProcessor(backups, false, false, nil)
	audioProc := audiotag.NewProcessor(backups, mojibake.DefaultThreshold, false, open, nil)
	s := scanner.New(cueProc, audioProc, false, nil, nil)

	summary, err := s.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Errors != 1 {
		t.Fatalf("errors = %d, want 1", summary.Errors)
	}
	if summary.Fixed != 1 {
		t.Fatalf("fixed = %d, want 1 (run must continue past the failure)", summary.Fixed)
	}
}
