// Package persist stores session data on disk: the extracted rules, the
// knowledge-base snapshot, the change log, and the session metadata. All
// files live under one session directory and every read and write goes
// through a file lock, so several processes can share the directory.
//
// Save and load report (ok, message) pairs instead of errors. Persistence
// failures must never take a session down; the message is shown to the
// user either way.
package persist

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Session file names inside the manager's directory.
const (
	kbFile        = "knowledge_base.json"
	rulesFile     = "extracted_rules.json"
	changeLogFile = "change_log.json"
	metadataFile  = "session_metadata.json"
)

// Change-log component names.
const (
	ComponentKnowledgeBase = "knowledge_base"
	ComponentRules         = "rules"
	ComponentWorkflow      = "workflow"
)

// Manager owns one session data directory, typically <data_dir>/sessions.
type Manager struct {
	dir    string
	logger *slog.Logger
}

// NewManager creates a manager rooted at dir. The directory is created
// lazily on the first write.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, logger: logger}
}

// Dir returns the session data directory.
func (m *Manager) Dir() string {
	return m.dir
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.dir, name)
}

// SessionExists reports whether any session data has been saved. The
// change log and metadata alone do not count; only rules or a knowledge
// base make a session.
func (m *Manager) SessionExists() bool {
	for _, name := range []string{kbFile, rulesFile} {
		if _, err := os.Stat(m.path(name)); err == nil {
			return true
		}
	}
	return false
}

// Clear removes all session files and reports how many existed. Lock
// files are swept alongside but not counted; they are companions, not
// session data.
func (m *Manager) Clear() (bool, string) {
	removed := 0
	for _, name := range []string{kbFile, rulesFile, changeLogFile, metadataFile} {
		path := m.path(name)
		err := os.Remove(path)
		switch {
		case err == nil:
			removed++
		case !os.IsNotExist(err):
			return false, fmt.Sprintf("Error clearing session: %v", err)
		}
		os.Remove(path + ".lock")
	}
	return true, fmt.Sprintf("Session cleared successfully (%d files removed)", removed)
}

// writeFileLocked writes data to path under an exclusive file lock,
// using temp file + rename so readers never observe a partial write.
func writeFileLocked(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquiring file lock: %w", err)
	}
	defer lock.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// mutateFileLocked rewrites path while holding an exclusive lock across
// the read-modify-write: mutate receives the current bytes (nil when the
// file is absent) and returns the replacement, which lands via temp file
// + rename.
func (m *Manager) mutateFileLocked(path string, mutate func(current []byte) ([]byte, error)) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquiring file lock: %w", err)
	}
	defer lock.Unlock()

	current, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		current = nil
	}

	out, err := mutate(current)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// readFileLocked reads path under a shared file lock. A missing file
// surfaces as os.IsNotExist before any lock is taken.
func readFileLocked(path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("acquiring file lock: %w", err)
	}
	defer lock.Unlock()

	return os.ReadFile(path)
}
