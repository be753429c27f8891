package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulesmith/rulesmith/internal/knowledge"
	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/testutil"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), testutil.DiscardLogger())
}

func sampleRules() []rules.Rule {
	return []rules.Rule{
		{
			RuleID:   "BR001",
			Name:     "Weekend Discount",
			Category: "Pricing",
			Conditions: []rules.Condition{
				{Field: "order_total", Operator: ">", Value: float64(100)},
			},
			Actions:  []rules.Action{{Type: "apply_discount", Details: "10 percent"}},
			Priority: rules.PriorityMedium,
			Active:   true,
		},
		{
			RuleID:   "BR002",
			Name:     "Loyalty Bonus",
			Category: "Loyalty",
			Priority: rules.PriorityLow,
			Active:   true,
		},
	}
}

// snapshotSpy satisfies Snapshotter without touching disk, so the audit
// hooks can be observed in isolation.
type snapshotSpy struct {
	chunks   int
	failSave bool
	savePath string
	loadPath string
}

func (s *snapshotSpy) SaveSnapshot(path string) (bool, string) {
	if s.failSave {
		return false, "Error saving knowledge base: disk full"
	}
	s.savePath = path
	return true, fmt.Sprintf("Knowledge base saved successfully with %d chunks", s.chunks)
}

func (s *snapshotSpy) LoadSnapshot(path string) (bool, string) {
	s.loadPath = path
	return true, fmt.Sprintf("Knowledge base loaded successfully with %d chunks", s.chunks)
}

func (s *snapshotSpy) Len() int { return s.chunks }

func TestManager_SaveLoadRules(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	src := rules.NewStore()
	src.SetAll(sampleRules())

	ok, msg := m.SaveRules(src, "Initial rules setup")
	require.True(t, ok)
	assert.Equal(t, "Rules saved successfully (2 rules)", msg)

	dst := rules.NewStore()
	ok, msg = m.LoadRules(dst)
	require.True(t, ok)
	assert.Equal(t, "Rules loaded successfully (2 rules)", msg)
	assert.Equal(t, src.List(), dst.List())
}

func TestManager_LoadRules_Missing(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	store := rules.NewStore()
	store.SetAll(sampleRules()[:1])

	ok, msg := m.LoadRules(store)
	assert.False(t, ok)
	assert.Equal(t, "No saved rules found", msg)

	// A miss must not clobber what the store already holds.
	assert.Equal(t, 1, store.Len())
}

func TestManager_LoadRules_Corrupt(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	require.NoError(t, os.MkdirAll(m.Dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), "extracted_rules.json"), []byte("{not json"), 0o644))

	store := rules.NewStore()
	store.SetAll(sampleRules()[:1])

	ok, msg := m.LoadRules(store)
	assert.False(t, ok)
	assert.True(t, strings.HasPrefix(msg, "Error loading rules:"), "msg = %q", msg)
	assert.Equal(t, 1, store.Len())
}

func TestManager_SaveRules_RecordsChange(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	store := rules.NewStore()
	store.SetAll(sampleRules())

	ok, _ := m.SaveRules(store, "Imported from policy document")
	require.True(t, ok)

	entries, err := m.ChangeLog()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ComponentRules, entries[0].Component)
	assert.Equal(t, "Imported from policy document", entries[0].Description)
	assert.EqualValues(t, 2, entries[0].Metadata["rules_count"])
	assert.WithinDuration(t, time.Now(), entries[0].Timestamp, time.Minute)

	meta, err := m.Metadata()
	require.NoError(t, err)
	assert.Contains(t, meta, "rules_last_updated")
	assert.Contains(t, meta, "session_created")
	assert.Contains(t, meta, "last_modified")
}

func TestManager_SaveRules_DefaultDescription(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	store := rules.NewStore()
	store.SetAll(sampleRules())

	ok, _ := m.SaveRules(store, "")
	require.True(t, ok)

	entries, err := m.ChangeLog()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Rules updated", entries[0].Description)
}

func TestManager_SaveKnowledgeBase_RecordsChange(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	spy := &snapshotSpy{chunks: 3}

	ok, msg := m.SaveKnowledgeBase(spy, "")
	require.True(t, ok)
	assert.Equal(t, "Knowledge base saved successfully with 3 chunks", msg)
	assert.Equal(t, filepath.Join(m.Dir(), "knowledge_base.json"), spy.savePath)

	entries, err := m.ChangeLog()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ComponentKnowledgeBase, entries[0].Component)
	assert.Equal(t, "Knowledge base updated", entries[0].Description)
	assert.EqualValues(t, 3, entries[0].Metadata["chunks_count"])

	meta, err := m.Metadata()
	require.NoError(t, err)
	assert.Contains(t, meta, "knowledge_base_last_updated")
}

func TestManager_SaveKnowledgeBase_FailureSkipsAudit(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	spy := &snapshotSpy{failSave: true}

	ok, msg := m.SaveKnowledgeBase(spy, "doomed")
	assert.False(t, ok)
	assert.Equal(t, "Error saving knowledge base: disk full", msg)

	entries, err := m.ChangeLog()
	require.NoError(t, err)
	assert.Empty(t, entries)

	meta, err := m.Metadata()
	require.NoError(t, err)
	assert.Empty(t, meta)
}

func TestManager_LoadKnowledgeBase_NoAudit(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	spy := &snapshotSpy{chunks: 2}

	ok, msg := m.LoadKnowledgeBase(spy)
	require.True(t, ok)
	assert.Equal(t, "Knowledge base loaded successfully with 2 chunks", msg)
	assert.Equal(t, filepath.Join(m.Dir(), "knowledge_base.json"), spy.loadPath)

	entries, err := m.ChangeLog()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestManager_KnowledgeBaseRoundtrip(t *testing.T) {
	t.Parallel()

	records := []knowledge.Record{
		{Source: "pricing.md", Text: "Orders over 100 dollars ship free.", Embedding: []float32{1, 0}},
		{Source: "returns.md", Text: "Returns are accepted within 30 days.", Embedding: []float32{0, 1}},
	}
	seed, err := json.Marshal(records)
	require.NoError(t, err)
	seedPath := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seedPath, seed, 0o644))

	src := knowledge.NewStore(nil, testutil.DiscardLogger())
	ok, msg := src.LoadSnapshot(seedPath)
	require.True(t, ok, "msg = %q", msg)

	m := newTestManager(t)
	ok, msg = m.SaveKnowledgeBase(src, "Initial KB setup")
	require.True(t, ok)
	assert.Equal(t, "Knowledge base saved successfully with 2 chunks", msg)

	dst := knowledge.NewStore(nil, testutil.DiscardLogger())
	ok, msg = m.LoadKnowledgeBase(dst)
	require.True(t, ok)
	assert.Equal(t, "Knowledge base loaded successfully with 2 chunks", msg)
	assert.Equal(t, src.Records(), dst.Records())
}

func TestManager_LogChange_AppendsInOrder(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	require.NoError(t, m.LogChange(ComponentKnowledgeBase, "first", map[string]any{"chunks_count": 1}))
	require.NoError(t, m.LogChange(ComponentRules, "second", nil))
	require.NoError(t, m.LogChange(ComponentWorkflow, "third", map[string]any{"rule_id": "BR001"}))

	entries, err := m.ChangeLog()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Description)
	assert.Equal(t, "second", entries[1].Description)
	assert.Equal(t, "third", entries[2].Description)

	// Nil metadata lands as an empty object, not null.
	assert.NotNil(t, entries[1].Metadata)
	assert.Empty(t, entries[1].Metadata)
	assert.Equal(t, "BR001", entries[2].Metadata["rule_id"])
}

func TestManager_ChangeLog_MissingReadsEmpty(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	entries, err := m.ChangeLog()
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestManager_LogChange_Concurrent(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	const writers = 10

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, m.LogChange(ComponentWorkflow, fmt.Sprintf("run %d", n), nil))
		}(i)
	}
	wg.Wait()

	entries, err := m.ChangeLog()
	require.NoError(t, err)
	assert.Len(t, entries, writers)
}

func TestManager_SetMetadata_SeedsIdentity(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	require.NoError(t, m.SetMetadata("industry", "restaurant"))

	meta, err := m.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "restaurant", meta["industry"])
	assert.Regexp(t, regexp.MustCompile(`^\d{8}_\d{6}$`), meta["session_id"])
	assert.Contains(t, meta, "session_created")
	assert.Contains(t, meta, "last_modified")

	// A later write updates its key but keeps the session identity.
	require.NoError(t, m.SetMetadata("industry", "banking"))
	after, err := m.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "banking", after["industry"])
	assert.Equal(t, meta["session_id"], after["session_id"])
	assert.Equal(t, meta["session_created"], after["session_created"])
}

func TestManager_SessionExists(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	assert.False(t, m.SessionExists())

	// Audit files alone do not make a session.
	require.NoError(t, m.LogChange(ComponentWorkflow, "warm-up", nil))
	assert.False(t, m.SessionExists())

	store := rules.NewStore()
	store.SetAll(sampleRules())
	ok, _ := m.SaveRules(store, "")
	require.True(t, ok)
	assert.True(t, m.SessionExists())
}

func TestManager_Clear(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	store := rules.NewStore()
	store.SetAll(sampleRules())
	ok, _ := m.SaveRules(store, "")
	require.True(t, ok)
	spy := &snapshotSpy{chunks: 1}
	ok, _ = m.SaveKnowledgeBase(spy, "")
	require.True(t, ok)
	// The spy never wrote the KB file, so plant one for the sweep.
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), "knowledge_base.json"), []byte("[]"), 0o644))

	ok, msg := m.Clear()
	require.True(t, ok)
	assert.Equal(t, "Session cleared successfully (4 files removed)", msg)
	assert.False(t, m.SessionExists())

	locks, err := filepath.Glob(filepath.Join(m.Dir(), "*.lock"))
	require.NoError(t, err)
	assert.Empty(t, locks)

	ok, msg = m.Clear()
	require.True(t, ok)
	assert.Equal(t, "Session cleared successfully (0 files removed)", msg)
}

func TestManager_Summary_NoSession(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	assert.Equal(t, "No active session found", m.Summary())
}

func TestManager_Summary(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	store := rules.NewStore()
	store.SetAll(sampleRules())
	ok, _ := m.SaveRules(store, "Initial rules setup")
	require.True(t, ok)

	summary := m.Summary()
	lines := strings.Split(summary, "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "**Session ID:** "), "lines[0] = %q", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "**Created:** "), "lines[1] = %q", lines[1])
	assert.Equal(t, "**Knowledge Base:** Not loaded", lines[2])
	assert.Equal(t, "**Rules:** 2 rules", lines[3])
	assert.Equal(t, "**Changes:** 1 logged changes", lines[4])
}
