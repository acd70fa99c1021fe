// Package scanner walks a directory tree and routes music files to the
// cue-sheet and audio-tag processors.
//
// Each file is processed independently and sequentially: read, decide,
// optionally back up, optionally write, before the next file is visited.
// Traversal errors and per-file processing errors are logged and skipped;
// only a missing root aborts the run.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cyrfix/internal/audiotag"
	"cyrfix/internal/cue"
	"cyrfix/internal/logging"
)

var audioExtensions = map[string]struct{}{
	"mp3": {}, "flac": {}, "m4a": {}, "mp4": {}, "ogg": {}, "wav": {},
}

var cueExtensions = map[string]struct{}{
	"cue": {},
}

// Event describes one fixed file for console reporting and the history
// ledger. Fixes is nil for cue rewrites, where the whole file is the
// candidate.
type Event struct {
	Path  string
	Label string
	Fixes []audiotag.FieldFix
}

// Reporter receives an Event for every file the run fixed.
type Reporter interface {
	FileFixed(Event)
}

// Summary aggregates one run's outcome.
type Summary struct {
	Scanned int
	Fixed   int
	Errors  int
}

// Scanner enumerates files under a root and dispatches them by extension.
type Scanner struct {
	cue      *cue.Processor
	audio    *audiotag.Processor
	follow   bool
	reporter Reporter
	logger   *slog.Logger
}

// New constructs a Scanner. reporter may be nil when no per-file console
// output is wanted; follow enables traversal through symbolic links.
func New(cueProc *cue.Processor, audioProc *audiotag.Processor, follow bool, reporter Reporter, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{cue: cueProc, audio: audioProc, follow: follow, reporter: reporter, logger: logger}
}

// Run walks root and processes every classified file. It fails only when
// root does not exist or the context is cancelled; everything else is
// logged, counted, and skipped.
func (s *Scanner) Run(ctx context.Context, root string) (Summary, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Summary{}, fmt.Errorf("path not found: %s: %w", root, err)
	}

	var summary Summary
	if !info.IsDir() {
		if err := s.visit(ctx, root, &summary); err != nil {
			return summary, err
		}
		return summary, nil
	}

	visited := map[string]struct{}{}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		visited[resolved] = struct{}{}
	}
	if err := s.walk(ctx, root, visited, &summary); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *Scanner) walk(ctx context.Context, dir string, visited map[string]struct{}, summary *Summary) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("skipping unreadable directory", "path", dir, "error", err)
		summary.Errors++
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, entry.Name())
		switch {
		case entry.IsDir():
			if err := s.walk(ctx, path, visited, summary); err != nil {
				return err
			}
		case entry.Type()&fs.ModeSymlink != 0:
			if !s.follow {
				continue
			}
			if err := s.walkSymlink(ctx, path, visited, summary); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			if err := s.visit(ctx, path, summary); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scanner) walkSymlink(ctx context.Context, path string, visited map[string]struct{}, summary *Summary) error {
	target, err := os.Stat(path)
	if err != nil {
		s.logger.Warn("skipping broken symlink", "path", path, "error", err)
		summary.Errors++
		return nil
	}
	if !target.IsDir() {
		if target.Mode().IsRegular() {
			return s.visit(ctx, path, summary)
		}
		return nil
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		s.logger.Warn("skipping unresolvable symlink", "path", path, "error", err)
		summary.Errors++
		return nil
	}
	if _, seen := visited[resolved]; seen {
		return nil
	}
	visited[resolved] = struct{}{}
	return s.walk(ctx, path, visited, summary)
}

func (s *Scanner) visit(ctx context.Context, path string, summary *Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return nil
	}

	if _, ok := cueExtensions[ext]; ok {
		summary.Scanned++
		modified, err := s.cue.Process(path)
		if err != nil {
			s.logger.Error("cue repair failed", "path", path, "error", err)
			summary.Errors++
			return nil
		}
		if modified {
			summary.Fixed++
			s.report(Event{Path: path, Label: "CUE"})
		}
		return nil
	}

	if _, ok := audioExtensions[ext]; ok {
		summary.Scanned++
		fixes, modified, err := s.audio.Process(path)
		if err != nil {
			if errors.Is(err, audiotag.ErrUnsupportedFormat) {
				s.logger.Debug("skipping audio container without a tag backend", "path", path)
				return nil
			}
			s.logger.Error("tag repair failed", "path", path, "error", err)
			summary.Errors++
			return nil
		}
		if modified {
			summary.Fixed++
			s.report(Event{Path: path, Label: strings.ToUpper(ext), Fixes: fixes})
		}
		return nil
	}

	return nil
}

func (s *Scanner) report(event Event) {
	if s.reporter == nil {
		return
	}
	s.reporter.FileFixed(event)
}
