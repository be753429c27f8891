package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rulesmith/rulesmith/internal/llm"
)

func TestWithHistoryContext(t *testing.T) {
	t.Parallel()

	t.Run("no history leaves input untouched", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "add a rule", withHistoryContext("add a rule", nil))
		assert.Equal(t, "add a rule", withHistoryContext("add a rule", []llm.Exchange{}))
	})

	t.Run("single exchange renders the exact block", func(t *testing.T) {
		t.Parallel()

		got := withHistoryContext("Make it 15%", []llm.Exchange{
			{User: "Give 10% off", Assistant: "Done, created the rule."},
		})
		want := "Previous conversation:\n" +
			"User: Give 10% off\n" +
			"Assistant: Done, created the rule.\n\n" +
			"Current request: Make it 15%"
		assert.Equal(t, want, got)
	})

	t.Run("in-flight exchange is skipped", func(t *testing.T) {
		t.Parallel()

		got := withHistoryContext("current", []llm.Exchange{
			{User: "first", Assistant: "answered"},
			{User: "current", Assistant: ""},
		})
		assert.Contains(t, got, "User: first")
		assert.NotContains(t, got, "User: current\n")
	})

	t.Run("whitespace assistant reply counts as incomplete", func(t *testing.T) {
		t.Parallel()

		got := withHistoryContext("now", []llm.Exchange{
			{User: "only", Assistant: "   \n\t"},
		})
		assert.Equal(t, "now", got)
	})

	t.Run("window keeps the last three complete exchanges", func(t *testing.T) {
		t.Parallel()

		got := withHistoryContext("now", []llm.Exchange{
			{User: "one", Assistant: "a1"},
			{User: "two", Assistant: "a2"},
			{User: "three", Assistant: "a3"},
			{User: "four", Assistant: "a4"},
			{User: "five", Assistant: "a5"},
		})
		assert.NotContains(t, got, "User: one")
		assert.NotContains(t, got, "User: two")
		assert.Contains(t, got, "User: three")
		assert.Contains(t, got, "User: four")
		assert.Contains(t, got, "User: five")
	})

	t.Run("incomplete exchanges do not consume the window", func(t *testing.T) {
		t.Parallel()

		got := withHistoryContext("now", []llm.Exchange{
			{User: "keep", Assistant: "kept"},
			{User: "gap one", Assistant: ""},
			{User: "gap two", Assistant: ""},
			{User: "also keep", Assistant: "kept too"},
		})
		assert.Contains(t, got, "User: keep")
		assert.Contains(t, got, "User: also keep")
		assert.NotContains(t, got, "gap one")
		assert.NotContains(t, got, "gap two")
	})
}
