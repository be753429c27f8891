package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ChangeEntry is one audit line: which component changed, when, and any
// component-specific details.
type ChangeEntry struct {
	Timestamp   time.Time      `json:"timestamp"`
	Component   string         `json:"component"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

// LogChange appends an entry to the change log. The file lock is held
// across the read-modify-write so concurrent writers do not lose entries.
func (m *Manager) LogChange(component, description string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	entry := ChangeEntry{
		Timestamp:   time.Now(),
		Component:   component,
		Description: description,
		Metadata:    metadata,
	}

	return m.mutateFileLocked(m.path(changeLogFile), func(current []byte) ([]byte, error) {
		var entries []ChangeEntry
		if len(current) > 0 {
			if err := json.Unmarshal(current, &entries); err != nil {
				return nil, fmt.Errorf("decoding change log: %w", err)
			}
		}
		entries = append(entries, entry)
		return json.MarshalIndent(entries, "", "  ")
	})
}

// ChangeLog returns all recorded entries in append order. A missing log
// reads as empty.
func (m *Manager) ChangeLog() ([]ChangeEntry, error) {
	data, err := readFileLocked(m.path(changeLogFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []ChangeEntry{}, nil
		}
		return nil, fmt.Errorf("reading change log: %w", err)
	}

	var entries []ChangeEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding change log: %w", err)
	}
	return entries, nil
}
