package analysis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/testutil"
)

type recordingObserver struct {
	requests []GenerationRequest
}

func (r *recordingObserver) RuleApproved(req GenerationRequest) {
	r.requests = append(r.requests, req)
}

func TestDecide(t *testing.T) {
	t.Parallel()

	proposed := rules.Rule{RuleID: "BR001", Name: "Weekend Discount"}

	t.Run("conflicts block generation", func(t *testing.T) {
		t.Parallel()

		decision := Decide(proposed, []Conflict{{Type: ConflictDuplicateID}})
		assert.False(t, decision.Proceed)
		assert.Equal(t, "Cannot proceed with conflicts. Please resolve them first.", decision.Message)
		assert.Nil(t, decision.Request)
	})

	t.Run("clean rule approves generation", func(t *testing.T) {
		t.Parallel()

		decision := Decide(proposed, nil)
		assert.True(t, decision.Proceed)
		assert.Equal(t, "Proceeding with rule generation...", decision.Message)
		require.NotNil(t, decision.Request)
		assert.Equal(t, ActionGenerate, decision.Request.Action)
		assert.Equal(t, "analysis", decision.Request.Requester)
		assert.Equal(t, "Weekend Discount", decision.Request.RuleData.Name)
		assert.False(t, decision.Request.Timestamp.IsZero())
	})
}

func TestOrchestrator_Orchestrate(t *testing.T) {
	t.Parallel()

	proposed := rules.Rule{RuleID: "BR001", Name: "Weekend Discount"}

	t.Run("proceed family runs the gate", func(t *testing.T) {
		t.Parallel()

		orch := NewOrchestrator(testutil.DiscardLogger())
		for _, phrase := range []string{"proceed", "yes", "confirm", "apply", "  YES  "} {
			decision := orch.Orchestrate(phrase, proposed, nil)
			assert.True(t, decision.Proceed, "phrase %q", phrase)
			assert.NotNil(t, decision.Request, "phrase %q", phrase)
		}
	})

	t.Run("proceed with conflicts is blocked", func(t *testing.T) {
		t.Parallel()

		orch := NewOrchestrator(testutil.DiscardLogger())
		decision := orch.Orchestrate("proceed", proposed, []Conflict{{Type: ConflictDuplicateID}})
		assert.False(t, decision.Proceed)
		assert.Equal(t, "Cannot proceed with conflicts. Please resolve them first.", decision.Message)
	})

	t.Run("modify family asks for the changes", func(t *testing.T) {
		t.Parallel()

		orch := NewOrchestrator(testutil.DiscardLogger())
		for _, phrase := range []string{"modify", "edit", "change"} {
			decision := orch.Orchestrate(phrase, proposed, nil)
			assert.False(t, decision.Proceed, "phrase %q", phrase)
			assert.Equal(t, "Please provide the modifications you'd like to make.", decision.Message)
			assert.Nil(t, decision.Request)
		}
	})

	t.Run("anything else cancels", func(t *testing.T) {
		t.Parallel()

		orch := NewOrchestrator(testutil.DiscardLogger())
		for _, phrase := range []string{"cancel", "no", "stop", "whatever"} {
			decision := orch.Orchestrate(phrase, proposed, nil)
			assert.False(t, decision.Proceed, "phrase %q", phrase)
			assert.Equal(t, "Rule generation cancelled.", decision.Message)
		}
	})
}

func TestOrchestrator_Observers(t *testing.T) {
	t.Parallel()

	proposed := rules.Rule{RuleID: "BR001", Name: "Weekend Discount"}

	t.Run("approval notifies each observer", func(t *testing.T) {
		t.Parallel()

		first := &recordingObserver{}
		second := &recordingObserver{}
		orch := NewOrchestrator(testutil.DiscardLogger(), first, second)

		decision := orch.Decide(proposed, nil)
		require.True(t, decision.Proceed)
		require.Len(t, first.requests, 1)
		require.Len(t, second.requests, 1)
		assert.Equal(t, "Weekend Discount", first.requests[0].RuleData.Name)
	})

	t.Run("blocked decisions stay silent", func(t *testing.T) {
		t.Parallel()

		obs := &recordingObserver{}
		orch := NewOrchestrator(testutil.DiscardLogger(), obs)

		orch.Decide(proposed, []Conflict{{Type: ConflictDuplicateID}})
		orch.Orchestrate("modify", proposed, nil)
		orch.Orchestrate("cancel", proposed, nil)

		assert.Empty(t, obs.requests)
	})
}

func TestFileDecisionLog(t *testing.T) {
	t.Parallel()

	t.Run("appends one line per approval", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "logs", "orchestration.log")
		log := NewFileDecisionLog(path, testutil.DiscardLogger())

		log.RuleApproved(GenerationRequest{
			RuleData:  rules.Rule{Name: "Weekend Discount"},
			Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		})
		log.RuleApproved(GenerationRequest{
			RuleData:  rules.Rule{Name: "Late Fee"},
			Timestamp: time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC),
		})

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "2025-06-01T12:00:00Z - Orchestrating rule: Weekend Discount", lines[0])
		assert.Equal(t, "2025-06-01T12:05:00Z - Orchestrating rule: Late Fee", lines[1])
	})

	t.Run("append failure is swallowed", func(t *testing.T) {
		t.Parallel()

		log := NewFileDecisionLog(t.TempDir(), testutil.DiscardLogger())
		assert.NotPanics(t, func() {
			log.RuleApproved(GenerationRequest{RuleData: rules.Rule{Name: "X"}})
		})
	})
}
