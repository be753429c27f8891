// Package versioning tracks business rule version history. Each rule
// ID gets an append-only snapshot file holding the full rule objects
// that were superseded by updates, so a rule at version N has N-1
// persisted snapshots. Versioning is auxiliary bookkeeping: every I/O
// failure is logged and absorbed, and the caller gets the input rule
// back unchanged rather than an error.
package versioning

import (
	"log/slog"
	"time"

	"github.com/rulesmith/rulesmith/internal/rules"
)

// systemUser is recorded on every version. No per-user attribution yet.
const systemUser = "system"

// Change describes one versioned modification of a rule.
type Change struct {
	Type           string  // defaults to create or update per call
	Summary        string  // defaults to "Rule <type>"
	ImpactAnalysis *string // analysis text attached to the version, if any
	DRLGenerated   bool    // honored by UpdateVersioned only
}

func (c Change) typeOr(def string) string {
	if c.Type == "" {
		return def
	}
	return c.Type
}

func (c Change) summaryFor(changeType string) string {
	if c.Summary != "" {
		return c.Summary
	}
	return "Rule " + changeType
}

// Manager tracks rule versions in per-rule history files under dir.
type Manager struct {
	dir    string
	logger *slog.Logger
}

// NewManager creates a Manager storing history under dir. The
// directory is created on first write.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, logger: logger}
}

// CreateVersioned returns rule with first-version metadata attached.
// The version number continues any persisted history for the rule's
// ID, so a re-created rule does not reuse version numbers. On a
// history read failure the rule is returned unchanged.
func (m *Manager) CreateVersioned(rule rules.Rule, change Change) rules.Rule {
	next, err := m.nextVersion(rule.RuleID)
	if err != nil {
		m.logger.Error("reading rule history, leaving rule unversioned",
			slog.String("rule_id", rule.RuleID),
			slog.String("error", err.Error()))
		return rule
	}

	now := time.Now()
	changeType := change.typeOr(rules.ChangeCreate)
	rule.Version = &rules.VersionInfo{
		Version:        next,
		CreatedAt:      now,
		LastModified:   now,
		ChangeType:     changeType,
		ChangeSummary:  change.summaryFor(changeType),
		ImpactAnalysis: change.ImpactAnalysis,
		User:           systemUser,
	}
	return rule
}

// UpdateVersioned snapshots the rule's current version into history,
// then returns the rule with next-version metadata attached. CreatedAt
// is preserved verbatim from the existing metadata; a rule without
// metadata starts at version one without a snapshot. On any history
// I/O failure the rule is returned unchanged.
func (m *Manager) UpdateVersioned(rule rules.Rule, change Change) rules.Rule {
	if rule.Version != nil {
		if err := m.appendSnapshot(rule.RuleID, rule); err != nil {
			m.logger.Error("saving rule version to history, leaving rule unversioned",
				slog.String("rule_id", rule.RuleID),
				slog.String("error", err.Error()))
			return rule
		}
	}

	next, err := m.nextVersion(rule.RuleID)
	if err != nil {
		m.logger.Error("reading rule history, leaving rule unversioned",
			slog.String("rule_id", rule.RuleID),
			slog.String("error", err.Error()))
		return rule
	}

	now := time.Now()
	createdAt := now
	if rule.Version != nil {
		createdAt = rule.Version.CreatedAt
	}
	var drlAt *time.Time
	if change.DRLGenerated {
		drlAt = &now
	}

	changeType := change.typeOr(rules.ChangeUpdate)
	rule.Version = &rules.VersionInfo{
		Version:                next,
		CreatedAt:              createdAt,
		LastModified:           now,
		ChangeType:             changeType,
		ChangeSummary:          change.summaryFor(changeType),
		ImpactAnalysis:         change.ImpactAnalysis,
		User:                   systemUser,
		DRLGenerated:           change.DRLGenerated,
		DRLGenerationTimestamp: drlAt,
	}
	return rule
}

// nextVersion continues the persisted sequence: the highest version in
// history plus one, or 1 for an unseen rule ID.
func (m *Manager) nextVersion(ruleID string) (int, error) {
	history, err := m.readHistory(ruleID)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, r := range history {
		if v := versionOf(r); v > max {
			max = v
		}
	}
	return max + 1, nil
}

func versionOf(r rules.Rule) int {
	if r.Version == nil {
		return 0
	}
	return r.Version.Version
}
