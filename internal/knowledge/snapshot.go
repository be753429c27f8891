package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// SaveSnapshot writes the corpus as JSON to path. The write is guarded
// by a file lock and lands atomically via temp file + rename. Returns
// (ok, message) rather than an error because snapshot failures must
// never break a session; the message is shown to the user either way.
func (s *Store) SaveSnapshot(path string) (bool, string) {
	records := s.Records()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return false, fmt.Sprintf("Error saving knowledge base: %v", err)
	}

	if err := writeFileLocked(path, data); err != nil {
		return false, fmt.Sprintf("Error saving knowledge base: %v", err)
	}

	return true, fmt.Sprintf("Knowledge base saved successfully with %d chunks", len(records))
}

// LoadSnapshot replaces the corpus with the records stored at path.
// A missing snapshot is not an error; the store is left untouched and
// the message says nothing was found.
func (s *Store) LoadSnapshot(path string) (bool, string) {
	data, err := readFileLocked(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, "No saved knowledge base found"
		}
		return false, fmt.Sprintf("Error loading knowledge base: %v", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return false, fmt.Sprintf("Error loading knowledge base: %v", err)
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	return true, fmt.Sprintf("Knowledge base loaded successfully with %d chunks", len(records))
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

// readFileLocked reads path under a shared file lock.
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
