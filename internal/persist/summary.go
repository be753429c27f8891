package persist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// SetMetadata updates one session metadata key. The first write also
// seeds the session identity: a creation timestamp and a session_id in
// YYYYMMDD_HHMMSS form. Every write refreshes last_modified.
func (m *Manager) SetMetadata(key string, value any) error {
	now := time.Now()
	return m.mutateFileLocked(m.path(metadataFile), func(current []byte) ([]byte, error) {
		meta := map[string]any{}
		if len(current) > 0 {
			if err := json.Unmarshal(current, &meta); err != nil {
				return nil, fmt.Errorf("decoding session metadata: %w", err)
			}
		}
		if len(meta) == 0 {
			meta["session_created"] = now.Format(time.RFC3339)
			meta["session_id"] = now.Format("20060102_150405")
		}
		meta[key] = value
		meta["last_modified"] = now.Format(time.RFC3339)
		return json.MarshalIndent(meta, "", "  ")
	})
}

// Metadata returns the session metadata. A missing file reads as empty.
func (m *Manager) Metadata() (map[string]any, error) {
	data, err := readFileLocked(m.path(metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("reading session metadata: %w", err)
	}

	meta := map[string]any{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decoding session metadata: %w", err)
	}
	return meta, nil
}

// Summary renders the session state as markdown lines: identity, chunk
// and rule counts, and the change-log size.
func (m *Manager) Summary() string {
	if !m.SessionExists() {
		return "No active session found"
	}

	var parts []string
	if meta, err := m.Metadata(); err == nil && len(meta) > 0 {
		parts = append(parts,
			fmt.Sprintf("**Session ID:** %v", metaValue(meta, "session_id")),
			fmt.Sprintf("**Created:** %v", metaValue(meta, "session_created")))
	}

	if n, ok := m.countArray(kbFile); ok {
		parts = append(parts, fmt.Sprintf("**Knowledge Base:** %d chunks", n))
	} else {
		parts = append(parts, "**Knowledge Base:** Not loaded")
	}

	if n, ok := m.countArray(rulesFile); ok {
		parts = append(parts, fmt.Sprintf("**Rules:** %d rules", n))
	} else {
		parts = append(parts, "**Rules:** Not loaded")
	}

	entries, _ := m.ChangeLog()
	parts = append(parts, fmt.Sprintf("**Changes:** %d logged changes", len(entries)))

	return strings.Join(parts, "\n")
}

func metaValue(meta map[string]any, key string) any {
	if v, ok := meta[key]; ok {
		return v
	}
	return "Unknown"
}

// countArray reports the element count of a stored JSON array without
// decoding the elements. Summary needs counts, not the embeddings.
func (m *Manager) countArray(name string) (int, bool) {
	data, err := readFileLocked(m.path(name))
	if err != nil {
		return 0, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return 0, false
	}
	return len(items), true
}

// stamp records a component refresh time in the session metadata,
// logging rather than failing when the metadata cannot be written.
func (m *Manager) stamp(key string) {
	if err := m.SetMetadata(key, time.Now().Format(time.RFC3339)); err != nil {
		m.logger.Warn("updating session metadata",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}
