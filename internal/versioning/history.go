package versioning

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/rulesmith/rulesmith/internal/rules"
)

// Summary aggregates a rule's persisted history. The history log holds
// the superseded snapshots, so the fields reflect the latest persisted
// entry rather than the live rule object.
type Summary struct {
	RuleID         string        `json:"rule_id"`
	TotalVersions  int           `json:"total_versions"`
	CurrentVersion int           `json:"current_version"`
	CreatedAt      *time.Time    `json:"created_at"`
	LastModified   *time.Time    `json:"last_modified"`
	ChangeHistory  []ChangeEntry `json:"change_history"`
}

// ChangeEntry is one line of a rule's change history, newest first.
type ChangeEntry struct {
	Version       int        `json:"version"`
	Timestamp     *time.Time `json:"timestamp"`
	ChangeType    string     `json:"change_type"`
	ChangeSummary string     `json:"change_summary"`
	DRLGenerated  bool       `json:"drl_generated"`
}

// History returns the persisted snapshots for ruleID, newest first. A
// missing or unreadable history file reads as empty.
func (m *Manager) History(ruleID string) []rules.Rule {
	history, err := m.readHistory(ruleID)
	if err != nil {
		m.logger.Error("reading rule history",
			slog.String("rule_id", ruleID),
			slog.String("error", err.Error()))
		return nil
	}
	sort.SliceStable(history, func(i, j int) bool {
		return versionOf(history[i]) > versionOf(history[j])
	})
	return history
}

// GetSummary reports version counts and the change log for ruleID. A
// rule with no persisted history yields zero counts and nil times.
func (m *Manager) GetSummary(ruleID string) Summary {
	summary := Summary{RuleID: ruleID, ChangeHistory: []ChangeEntry{}}
	history := m.History(ruleID)
	if len(history) == 0 {
		return summary
	}

	for _, r := range history {
		if r.Version == nil {
			continue
		}
		modified := r.Version.LastModified
		summary.ChangeHistory = append(summary.ChangeHistory, ChangeEntry{
			Version:       r.Version.Version,
			Timestamp:     &modified,
			ChangeType:    r.Version.ChangeType,
			ChangeSummary: r.Version.ChangeSummary,
			DRLGenerated:  r.Version.DRLGenerated,
		})
	}

	summary.TotalVersions = len(history)
	if latest := history[0].Version; latest != nil {
		summary.CurrentVersion = latest.Version
		created := latest.CreatedAt
		modified := latest.LastModified
		summary.CreatedAt = &created
		summary.LastModified = &modified
	}
	return summary
}

// appendSnapshot adds rule to its history file, holding the file lock
// across the read-modify-write so concurrent updates do not lose
// snapshots.
func (m *Manager) appendSnapshot(ruleID string, rule rules.Rule) error {
	path := m.historyPath(ruleID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquiring history lock: %w", err)
	}
	defer lock.Unlock()

	var history []rules.Rule
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &history); err != nil {
			return fmt.Errorf("decoding history: %w", err)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("reading history: %w", err)
	}

	history = append(history, rule)
	out, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return os.Rename(tmp, path)
}

func (m *Manager) readHistory(ruleID string) ([]rules.Rule, error) {
	path := m.historyPath(ruleID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("acquiring history lock: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	var history []rules.Rule
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return history, nil
}

func (m *Manager) historyPath(ruleID string) string {
	return filepath.Join(m.dir, sanitizeID(ruleID)+"_history.json")
}

// sanitizeID keeps history filenames inside the storage directory.
// Anything outside [A-Za-z0-9._-] becomes an underscore.
func sanitizeID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
