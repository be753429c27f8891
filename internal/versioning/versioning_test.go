package versioning

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/testutil"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), testutil.DiscardLogger())
}

func sampleRule(id string) rules.Rule {
	return rules.Rule{
		RuleID:   id,
		Name:     "Weekend Discount",
		Category: "pricing",
		Priority: rules.PriorityMedium,
		Active:   true,
	}
}

func TestManager_CreateVersioned(t *testing.T) {
	t.Run("attaches first version metadata", func(t *testing.T) {
		mgr := newTestManager(t)

		rule := mgr.CreateVersioned(sampleRule("BR001"), Change{})

		require.NotNil(t, rule.Version)
		assert.Equal(t, 1, rule.Version.Version)
		assert.Equal(t, rules.ChangeCreate, rule.Version.ChangeType)
		assert.Equal(t, "Rule create", rule.Version.ChangeSummary)
		assert.Equal(t, "system", rule.Version.User)
		assert.False(t, rule.Version.DRLGenerated)
		assert.Nil(t, rule.Version.DRLGenerationTimestamp)
		assert.Nil(t, rule.Version.ImpactAnalysis)
		assert.True(t, rule.Version.CreatedAt.Equal(rule.Version.LastModified))
	})

	t.Run("explicit change details win over defaults", func(t *testing.T) {
		mgr := newTestManager(t)

		rule := mgr.CreateVersioned(sampleRule("BR001"), Change{
			Type:    rules.ChangeCreate,
			Summary: "Rule extracted from CSV upload",
		})

		require.NotNil(t, rule.Version)
		assert.Equal(t, "Rule extracted from CSV upload", rule.Version.ChangeSummary)
	})

	t.Run("does not persist a snapshot", func(t *testing.T) {
		mgr := newTestManager(t)

		mgr.CreateVersioned(sampleRule("BR001"), Change{})

		assert.Empty(t, mgr.History("BR001"))
	})

	t.Run("recreated rule continues the persisted sequence", func(t *testing.T) {
		mgr := newTestManager(t)

		rule := mgr.CreateVersioned(sampleRule("BR001"), Change{})
		mgr.UpdateVersioned(rule, Change{})

		fresh := mgr.CreateVersioned(sampleRule("BR001"), Change{})

		require.NotNil(t, fresh.Version)
		assert.Equal(t, 2, fresh.Version.Version)
	})
}

func TestManager_UpdateVersioned(t *testing.T) {
	t.Run("clean history round trip", func(t *testing.T) {
		mgr := newTestManager(t)

		rule := mgr.CreateVersioned(sampleRule("BR001"), Change{})
		rule.Description = "First revision"
		rule = mgr.UpdateVersioned(rule, Change{})
		rule.Description = "Second revision"
		rule = mgr.UpdateVersioned(rule, Change{})

		require.NotNil(t, rule.Version)
		assert.Equal(t, 3, rule.Version.Version)

		history := mgr.History("BR001")
		require.Len(t, history, 2)
		assert.Equal(t, 2, history[0].Version.Version)
		assert.Equal(t, 1, history[1].Version.Version)
		assert.Equal(t, "First revision", history[0].Description)

		summary := mgr.GetSummary("BR001")
		assert.Equal(t, 2, summary.TotalVersions)
		assert.Equal(t, 2, summary.CurrentVersion)
		require.NotNil(t, summary.CreatedAt)
		require.Len(t, summary.ChangeHistory, 2)
		assert.Equal(t, 2, summary.ChangeHistory[0].Version)
		assert.Equal(t, rules.ChangeUpdate, summary.ChangeHistory[0].ChangeType)
	})

	t.Run("preserves the original creation time", func(t *testing.T) {
		mgr := newTestManager(t)

		created := mgr.CreateVersioned(sampleRule("BR001"), Change{})
		updated := mgr.UpdateVersioned(created, Change{})

		require.NotNil(t, updated.Version)
		assert.True(t, updated.Version.CreatedAt.Equal(created.Version.CreatedAt))
		assert.False(t, updated.Version.LastModified.Before(created.Version.LastModified))
	})

	t.Run("rule without metadata starts at version one", func(t *testing.T) {
		mgr := newTestManager(t)

		rule := mgr.UpdateVersioned(sampleRule("BR001"), Change{Type: rules.ChangeModify})

		require.NotNil(t, rule.Version)
		assert.Equal(t, 1, rule.Version.Version)
		assert.Equal(t, rules.ChangeModify, rule.Version.ChangeType)
		assert.Equal(t, "Rule modify", rule.Version.ChangeSummary)
		assert.Empty(t, mgr.History("BR001"), "no snapshot without prior metadata")
	})

	t.Run("drl generation stamps its timestamp", func(t *testing.T) {
		mgr := newTestManager(t)

		rule := mgr.CreateVersioned(sampleRule("BR001"), Change{})
		rule = mgr.UpdateVersioned(rule, Change{
			Type:         rules.ChangeDRLGeneration,
			Summary:      "Generated DRL and GDST files from JSON rule",
			DRLGenerated: true,
		})

		require.NotNil(t, rule.Version)
		assert.True(t, rule.Version.DRLGenerated)
		require.NotNil(t, rule.Version.DRLGenerationTimestamp)
		assert.True(t, rule.Version.DRLGenerationTimestamp.Equal(rule.Version.LastModified))
	})

	t.Run("impact analysis text is carried on the version", func(t *testing.T) {
		mgr := newTestManager(t)
		impact := "High operational impact on kitchen staffing"

		rule := mgr.CreateVersioned(sampleRule("BR001"), Change{})
		rule = mgr.UpdateVersioned(rule, Change{
			Type:           rules.ChangeImpactAnalysis,
			ImpactAnalysis: &impact,
		})

		require.NotNil(t, rule.Version)
		require.NotNil(t, rule.Version.ImpactAnalysis)
		assert.Equal(t, impact, *rule.Version.ImpactAnalysis)
	})

	t.Run("corrupt history leaves the rule untouched", func(t *testing.T) {
		dir := t.TempDir()
		mgr := NewManager(dir, testutil.DiscardLogger())

		rule := mgr.CreateVersioned(sampleRule("BR001"), Change{})
		path := filepath.Join(dir, "BR001_history.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		updated := mgr.UpdateVersioned(rule, Change{})

		require.NotNil(t, updated.Version)
		assert.Equal(t, 1, updated.Version.Version, "failed snapshot must not bump the version")
		assert.Equal(t, rules.ChangeCreate, updated.Version.ChangeType)
	})
}

func TestManager_History(t *testing.T) {
	t.Run("missing file reads as empty", func(t *testing.T) {
		mgr := newTestManager(t)

		assert.Empty(t, mgr.History("BR404"))
	})

	t.Run("orders snapshots newest first", func(t *testing.T) {
		dir := t.TempDir()
		mgr := NewManager(dir, testutil.DiscardLogger())

		scrambled := []rules.Rule{
			versionedSample("BR001", 1),
			versionedSample("BR001", 3),
			versionedSample("BR001", 2),
		}
		data, err := json.Marshal(scrambled)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "BR001_history.json"), data, 0o644))

		history := mgr.History("BR001")
		require.Len(t, history, 3)
		assert.Equal(t, 3, history[0].Version.Version)
		assert.Equal(t, 2, history[1].Version.Version)
		assert.Equal(t, 1, history[2].Version.Version)
	})

	t.Run("rule ids cannot escape the storage directory", func(t *testing.T) {
		mgr := newTestManager(t)

		rule := sampleRule("../outside")
		rule = mgr.CreateVersioned(rule, Change{})
		mgr.UpdateVersioned(rule, Change{})

		history := mgr.History("../outside")
		assert.Len(t, history, 1)
	})
}

func TestManager_GetSummary(t *testing.T) {
	t.Run("empty history yields zero counts", func(t *testing.T) {
		mgr := newTestManager(t)

		summary := mgr.GetSummary("BR404")

		assert.Equal(t, "BR404", summary.RuleID)
		assert.Zero(t, summary.TotalVersions)
		assert.Zero(t, summary.CurrentVersion)
		assert.Nil(t, summary.CreatedAt)
		assert.Nil(t, summary.LastModified)
		assert.NotNil(t, summary.ChangeHistory)
		assert.Empty(t, summary.ChangeHistory)
	})

	t.Run("change history mirrors the snapshots", func(t *testing.T) {
		mgr := newTestManager(t)

		rule := mgr.CreateVersioned(sampleRule("BR001"), Change{})
		rule = mgr.UpdateVersioned(rule, Change{Summary: "Tightened the discount cap"})
		mgr.UpdateVersioned(rule, Change{
			Type:         rules.ChangeDRLGeneration,
			DRLGenerated: true,
		})

		summary := mgr.GetSummary("BR001")
		require.Len(t, summary.ChangeHistory, 2)
		assert.Equal(t, rules.ChangeUpdate, summary.ChangeHistory[0].ChangeType)
		assert.Equal(t, "Tightened the discount cap", summary.ChangeHistory[0].ChangeSummary)
		assert.Equal(t, rules.ChangeCreate, summary.ChangeHistory[1].ChangeType)
		require.NotNil(t, summary.ChangeHistory[0].Timestamp)
		assert.False(t, summary.ChangeHistory[0].Timestamp.IsZero())
	})
}

func versionedSample(id string, version int) rules.Rule {
	rule := sampleRule(id)
	rule.Version = &rules.VersionInfo{
		Version:      version,
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		LastModified: time.Date(2025, 1, version, 0, 0, 0, 0, time.UTC),
		ChangeType:   rules.ChangeUpdate,
	}
	return rule
}
