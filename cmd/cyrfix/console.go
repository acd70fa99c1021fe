package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"cyrfix/internal/history"
	"cyrfix/internal/scanner"
)

// palette holds the console colors; all entries render plain when color is
// disabled.
type palette struct {
	heading text.Colors
	cueTag  text.Colors
	fileTag text.Colors
	fix     text.Colors
}

func newPalette(enabled bool) palette {
	if !enabled {
		return palette{}
	}
	return palette{
		heading: text.Colors{text.FgGreen, text.Bold},
		cueTag:  text.Colors{text.FgMagenta},
		fileTag: text.Colors{text.FgHiBlue},
		fix:     text.Colors{text.FgCyan},
	}
}

func colorsEnabled() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// consoleReporter prints one line per fixed file, plus a line per repaired
// tag field.
type consoleReporter struct {
	out    io.Writer
	colors palette
}

func (r *consoleReporter) FileFixed(e scanner.Event) {
	tag := fmt.Sprintf("[%s]", e.Label)
	style := r.colors.fileTag
	if e.Label == "CUE" {
		style = r.colors.cueTag
	}
	fmt.Fprintf(r.out, "%-6s %s\n", style.Sprint(tag), e.Path)
	for _, fix := range e.Fixes {
		fmt.Fprintf(r.out, "  %s %s: %q -> %q\n", r.colors.fix.Sprint("FIX"), fix.Key, fix.Before, fix.After)
	}
}

// recordingReporter forwards events to the console and appends each fix to
// the history ledger. Ledger failures are logged, never fatal: the repair
// itself already happened.
type recordingReporter struct {
	next   scanner.Reporter
	store  *history.Store
	runID  string
	ctx    context.Context
	logger *slog.Logger
}

func (r *recordingReporter) FileFixed(e scanner.Event) {
	r.next.FileFixed(e)

	kind := strings.ToLower(e.Label)
	if len(e.Fixes) == 0 {
		r.record(history.Fix{Path: e.Path, Kind: kind})
		return
	}
	for _, fix := range e.Fixes {
		r.record(history.Fix{
			Path:     e.Path,
			Kind:     kind,
			FieldKey: fix.Key,
			Before:   fix.Before,
			After:    fix.After,
		})
	}
}

func (r *recordingReporter) record(fix history.Fix) {
	if err := r.store.RecordFix(r.ctx, r.runID, fix); err != nil {
		r.logger.Warn("could not record fix in history", "path", fix.Path, "error", err)
	}
}
