// Package cue repairs cue-sheet companion files stored in Windows-1251.
//
// Unlike audio tags, a cue sheet has no structured fields: the whole file is
// one candidate, and the decision is about which bytes to read rather than
// mojibake scoring. Raw bytes that already form valid UTF-8 are presumed
// correct regardless of script and are never rewritten.
package cue

import (
	"fmt"
	"log/slog"
	"os"
	"unicode/utf8"

	"cyrfix/internal/backup"
	"cyrfix/internal/cyrcodec"
	"cyrfix/internal/logging"
)

// Processor rewrites legacy-encoded cue sheets as UTF-8.
type Processor struct {
	backups     *backup.Manager
	forceLegacy bool
	dryRun      bool
	logger      *slog.Logger
}

// NewProcessor constructs a Processor. forceLegacy skips the UTF-8 validity
// probe and reinterprets every cue file as Windows-1251 unconditionally.
func NewProcessor(backups *backup.Manager, forceLegacy, dryRun bool, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{backups: backups, forceLegacy: forceLegacy, dryRun: dryRun, logger: logger}
}

// Process reads the cue sheet at path and reports whether it was rewritten.
//
// With forceLegacy the raw bytes are decoded as Windows-1251 and written
// back unconditionally. Otherwise bytes that are already valid UTF-8 leave
// the file untouched, and only invalid byte sequences fall back to the
// legacy decode. New content is always written as UTF-8, after a backup.
func (p *Processor) Process(path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	var content string
	if p.forceLegacy {
		decoded, lossy := cyrcodec.Decode(raw)
		if lossy {
			p.logger.Warn("cue sheet not fully decodable as cp1251", "path", path)
		}
		content = decoded
	} else {
		if utf8.Valid(raw) {
			return false, nil
		}
		content, _ = cyrcodec.Decode(raw)
	}

	if p.dryRun {
		return true, nil
	}

	if err := p.backups.Backup(path); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
