// Package backup snapshots files before they are mutated.
package backup

import (
	"fmt"
	"path/filepath"

	"cyrfix/internal/fileutil"
)

// Suffix is appended to the original filename to form the backup path.
const Suffix = ".bak"

// Manager copies originals aside before any content mutation. A Manager
// with Disabled set performs no I/O and always succeeds, which keeps the
// call sites uniform: Backup must succeed before the first write to a file.
type Manager struct {
	Disabled bool
}

// NewManager returns a Manager; disabled skips all backup I/O.
func NewManager(disabled bool) *Manager {
	return &Manager{Disabled: disabled}
}

// Backup copies path to a sibling <name>.bak file. An existing backup is
// overwritten; backups are never versioned, read back, or deleted here.
func (m *Manager) Backup(path string) error {
	if m == nil || m.Disabled {
		return nil
	}
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return fmt.Errorf("backup %s: cannot determine file name", path)
	}
	target := filepath.Join(filepath.Dir(path), name+Suffix)
	if err := fileutil.CopyFileVerified(path, target); err != nil {
		return fmt.Errorf("backup %s: %w", path, err)
	}
	return nil
}
