package persist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/rulesmith/rulesmith/internal/rules"
)

// Snapshotter is the knowledge-base surface the manager persists. The
// in-memory knowledge store implements it; the pgvector-backed store is
// durable on its own and never passes through here.
type Snapshotter interface {
	SaveSnapshot(path string) (bool, string)
	LoadSnapshot(path string) (bool, string)
	Len() int
}

// SaveKnowledgeBase snapshots kb into the session directory, records the
// change, and stamps the metadata. An empty description gets the stock
// wording.
func (m *Manager) SaveKnowledgeBase(kb Snapshotter, description string) (bool, string) {
	if description == "" {
		description = "Knowledge base updated"
	}
	ok, msg := kb.SaveSnapshot(m.path(kbFile))
	if !ok {
		return ok, msg
	}

	m.record(ComponentKnowledgeBase, description, map[string]any{
		"chunks_count": kb.Len(),
		"file_path":    m.path(kbFile),
	})
	m.stamp("knowledge_base_last_updated")
	return ok, msg
}

// LoadKnowledgeBase hydrates kb from the session directory. Loading is
// not a change, so nothing lands in the change log.
func (m *Manager) LoadKnowledgeBase(kb Snapshotter) (bool, string) {
	return kb.LoadSnapshot(m.path(kbFile))
}

// SaveRules writes the store's rules into the session directory, records
// the change, and stamps the metadata.
func (m *Manager) SaveRules(store *rules.Store, description string) (bool, string) {
	if description == "" {
		description = "Rules updated"
	}

	list := store.List()
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return false, fmt.Sprintf("Error saving rules: %v", err)
	}
	if err := writeFileLocked(m.path(rulesFile), data); err != nil {
		return false, fmt.Sprintf("Error saving rules: %v", err)
	}

	m.record(ComponentRules, description, map[string]any{
		"rules_count": len(list),
		"file_path":   m.path(rulesFile),
	})
	m.stamp("rules_last_updated")
	return true, fmt.Sprintf("Rules saved successfully (%d rules)", len(list))
}

// LoadRules replaces the store's contents with the saved rules. A missing
// file leaves the store untouched.
func (m *Manager) LoadRules(store *rules.Store) (bool, string) {
	data, err := readFileLocked(m.path(rulesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return false, "No saved rules found"
		}
		return false, fmt.Sprintf("Error loading rules: %v", err)
	}

	var list []rules.Rule
	if err := json.Unmarshal(data, &list); err != nil {
		return false, fmt.Sprintf("Error loading rules: %v", err)
	}

	store.SetAll(list)
	return true, fmt.Sprintf("Rules loaded successfully (%d rules)", len(list))
}

// record appends a change-log entry, logging rather than failing when the
// log itself cannot be written.
func (m *Manager) record(component, description string, metadata map[string]any) {
	if err := m.LogChange(component, description, metadata); err != nil {
		m.logger.Warn("recording change log entry",
			slog.String("component", component),
			slog.String("error", err.Error()))
	}
}
