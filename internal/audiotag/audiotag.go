// Package audiotag repairs mojibake in the text fields of audio file tags.
//
// Repairs are applied as a per-file transaction: every text field is scored
// first, without mutating the tag during iteration, and only when at least
// one repair was accepted does the file get backed up, mutated, and saved.
// A failed save leaves the on-disk file untouched and counts as not
// modified.
package audiotag

import (
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/exp/maps"

	"cyrfix/internal/backup"
	"cyrfix/internal/logging"
	"cyrfix/internal/mojibake"
)

// FieldFix records one accepted repair of a tag field value.
type FieldFix struct {
	Key    string
	Before string
	After  string
}

// Container is the slice of a media file's tag surface the processor needs:
// enumerate text fields, replace a field's values, persist in place.
type Container interface {
	// TextFields returns key to values for every text-valued field of the
	// file's preferred tag. The returned map is a snapshot the caller owns.
	TextFields() map[string][]string
	// SetText replaces all values stored under key.
	SetText(key string, values ...string)
	// Save persists the mutated tag back into the file at its original path.
	Save() error
	Close() error
}

// OpenFunc probes a media file and returns its tag container.
type OpenFunc func(path string) (Container, error)

// Processor applies the mojibake detector to every text field of a tag.
type Processor struct {
	backups   *backup.Manager
	threshold float64
	dryRun    bool
	open      OpenFunc
	logger    *slog.Logger
}

// NewProcessor constructs a Processor reading tags through open.
func NewProcessor(backups *backup.Manager, threshold float64, dryRun bool, open OpenFunc, logger *slog.Logger) *Processor {
	if open == nil {
		open = Open
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{backups: backups, threshold: threshold, dryRun: dryRun, open: open, logger: logger}
}

// Process scans the tag of the file at path and commits all accepted field
// repairs at once. It returns the accepted fixes and whether the file was
// (or, in dry-run mode, would have been) modified. A save failure reports
// the file as not modified; the mutated in-memory tag is discarded.
func (p *Processor) Process(path string) ([]FieldFix, bool, error) {
	container, err := p.open(path)
	if err != nil {
		return nil, false, fmt.Errorf("read tags %s: %w", path, err)
	}
	defer container.Close()

	fields := container.TextFields()

	var fixes []FieldFix
	updated := make(map[string][]string)
	keys := maps.Keys(fields)
	slices.Sort(keys)
	for _, key := range keys {
		values := fields[key]
		next := slices.Clone(values)
		changed := false
		for i, value := range values {
			repaired, ok := mojibake.Repair(value, p.threshold)
			if !ok {
				continue
			}
			fixes = append(fixes, FieldFix{Key: key, Before: value, After: repaired})
			next[i] = repaired
			changed = true
		}
		if changed {
			updated[key] = next
		}
	}

	if len(fixes) == 0 {
		return nil, false, nil
	}
	if p.dryRun {
		return fixes, true, nil
	}

	if err := p.backups.Backup(path); err != nil {
		return nil, false, err
	}
	updatedKeys := maps.Keys(updated)
	slices.Sort(updatedKeys)
	for _, key := range updatedKeys {
		container.SetText(key, updated[key]...)
	}
	if err := container.Save(); err != nil {
		return nil, false, fmt.Errorf("save tags %s: %w", path, err)
	}
	return fixes, true, nil
}
