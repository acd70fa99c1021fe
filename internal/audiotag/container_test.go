package audiotag_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"

	"cyrfix/internal/audiotag"
	"cyrfix/internal/backup"
	"cyrfix/internal/mojibake"
)

func writeMP3Fixture(t *testing.T, frames map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.mp3")

	payload := make([]byte, 32)
	payload[0], payload[1] = 0xFF, 0xFB // MPEG frame sync
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write mp3 payload: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("open id3 tag: %v", err)
	}
	for id, text := range frames {
		tag.AddTextFrame(id, id3v2.EncodingUTF8, text)
	}
	if err := tag.Save(); err != nil {
		t.Fatalf("save id3 tag: %v", err)
	}
	if err := tag.Close(); err != nil {
		t.Fatalf("close id3 tag: %v", err)
	}
	return path
}

func writeFLACFixture(t *testing.T, comments []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.flac")

	file := new(flac.File)
	file.Meta = append(file.Meta, &flac.MetaDataBlock{
		Type: flac.StreamInfo,
		Data: make([]byte, 34),
	})
	cmts := flacvorbis.New()
	cmts.Comments = append(cmts.Comments, comments...)
	block := cmts.Marshal()
	file.Meta = append(file.Meta, &block)
	file.Frames = []byte{0xFF, 0xF8} // FLAC frame sync code, like the MP3 fixture's MPEG sync

	if err := file.Save(path); err != nil {
		t.Fatalf("save flac fixture: %v", err)
	}
	return path
}

func newProductionProcessor(dryRun bool) *audiotag.Processor {
	return audiotag.NewProcessor(backup.NewManager(false), mojibake.DefaultThreshold, dryRun, nil, nil)
}

func readID3TextFrame(t *testing.T, path, id string) string {
	t.Helper()
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("reopen id3 tag: %v", err)
	}
	defer tag.Close()
	return tag.GetTextFrame(id).Text
}

func TestProcessRepairsMP3OnDisk(t *testing.T) {
	path := writeMP3Fixture(t, map[string]string{
		"TIT2": "Ëüâèöà ðîêà",
		"TPE1": "Çåìôèðà",
		"TALB": "Plain English Album",
	})

	fixes, modified, err := newProductionProcessor(false).Process(path)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !modified {
		t.Fatal("expected modification")
	}
	if len(fixes) != 2 {
		t.Fatalf("got %d fixes, want 2: %+v", len(fixes), fixes)
	}

	if got := readID3TextFrame(t, path, "TIT2"); got != "Львица рока" {
		t.Fatalf("TIT2 = %q, want %q", got, "Львица рока")
	}
	if got := readID3TextFrame(t, path, "TPE1"); got != "Земфира" {
		t.Fatalf("TPE1 = %q, want %q", got, "Земфира")
	}
	if got := readID3TextFrame(t, path, "TALB"); got != "Plain English Album" {
		t.Fatalf("TALB changed: %q", got)
	}
	if _, err := os.Stat(path + backup.Suffix); err != nil {
		t.Fatalf("expected backup before save: %v", err)
	}
}

func TestProcessLeavesCleanMP3Alone(t *testing.T) {
	path := writeMP3Fixture(t, map[string]string{
		"TIT2": "The Dark Side of the Moon",
		"TPE1": "Кино",
	})
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	fixes, modified, err := newProductionProcessor(false).Process(path)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if modified || len(fixes) != 0 {
		t.Fatalf("expected no-op, got modified=%v fixes=%+v", modified, fixes)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reread fixture: %v", err)
	}
	if string(after) != string(before) {
		t.Fatal("clean file was rewritten")
	}
	if _, err := os.Stat(path + backup.Suffix); !os.IsNotExist(err) {
		t.Fatalf("no backup expected, stat err = %v", err)
	}
}

func TestProcessDryRunLeavesMP3Untouched(t *testing.T) {
	path := writeMP3Fixture(t, map[string]string{"TIT2": "Ëüâèöà ðîêà"})

	fixes, modified, err := newProductionProcessor(true).Process(path)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !modified || len(fixes) != 1 {
		t.Fatalf("expected one reported fix, got modified=%v fixes=%+v", modified, fixes)
	}
	if got := readID3TextFrame(t, path, "TIT2"); got != "Ëüâèöà ðîêà" {
		t.Fatalf("dry run mutated the tag: %q", got)
	}
}

func TestProcessRepairsFLACOnDisk(t *testing.T) {
	path := writeFLACFixture(t, []string{
		"TITLE=Ìàøèíà âðåìåíè",
		"ARTIST=Accept",
		"ARTIST=Çåìôèðà",
	})

	fixes, modified, err := newProductionProcessor(false).Process(path)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !modified {
		t.Fatal("expected modification")
	}
	if len(fixes) != 2 {
		t.Fatalf("got %d fixes, want 2: %+v", len(fixes), fixes)
	}

	container, err := audiotag.Open(path)
	if err != nil {
		t.Fatalf("reopen flac: %v", err)
	}
	defer container.Close()
	fields := container.TextFields()
	if got := fields["TITLE"]; len(got) != 1 || got[0] != "Машина времени" {
		t.Fatalf("TITLE = %v", got)
	}
	artists := fields["ARTIST"]
	if len(artists) != 2 || artists[0] != "Accept" || artists[1] != "Земфира" {
		t.Fatalf("ARTIST = %v", artists)
	}
	if _, err := os.Stat(path + backup.Suffix); err != nil {
		t.Fatalf("expected backup before save: %v", err)
	}
}

func TestOpenRejectsUnsupportedContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.ogg")
	if err := os.WriteFile(path, []byte("OggS"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	_, err := audiotag.Open(path)
	if !errors.Is(err, audiotag.ErrUnsupportedFormat) {
		t.Fatalf("Open error = %v, want ErrUnsupportedFormat", err)
	}

	_, modified, err := newProductionProcessor(false).Process(path)
	if !errors.Is(err, audiotag.ErrUnsupportedFormat) {
		t.Fatalf("Process error = %v, want wrapped ErrUnsupportedFormat", err)
	}
	if modified {
		t.Fatal("unsupported container must not report a modification")
	}
}
