package drools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulesmith/rulesmith/internal/llm"
	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/testutil"
)

func newTestGenerator(t *testing.T, fallback string, opts ...Option) (*Generator, *testutil.MockLLM) {
	t.Helper()

	g := genkit.Init(context.Background())
	mock := testutil.NewMockLLM(fallback)
	mock.Register(g)

	client := llm.New(g, testutil.MockModelName, testutil.DiscardLogger(),
		llm.WithRetryConfig(llm.RetryConfig{
			MaxRetries:      1,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		}))
	return NewGenerator(client, testutil.DiscardLogger(), opts...), mock
}

func sampleRule() rules.Rule {
	return rules.Rule{
		RuleID:   "BR001",
		Name:     "Weekend Discount",
		Category: "Pricing",
		Summary:  "10% off orders above 100 on weekends",
		Conditions: []rules.Condition{
			{Field: "order_total", Operator: ">", Value: 100},
			{Field: "day_of_week", Operator: "in", Value: []string{"Saturday", "Sunday"}},
		},
		Actions: []rules.Action{
			{Type: "apply_discount", Details: "10%"},
		},
		Priority: "Medium",
		Active:   true,
	}
}

func TestGenerator_Generate(t *testing.T) {
	t.Parallel()

	t.Run("splits reply on the delimiter", func(t *testing.T) {
		t.Parallel()

		reply := "rule \"Weekend Discount\"\n" +
			"when\n    $order : Order(total > 100)\n" +
			"then\n    $order.setDiscount(0.10);\nend\n" +
			Delimiter + "\n" +
			"<decision-table52>\n  <tableName>Weekend Discount</tableName>\n</decision-table52>"
		gen, _ := newTestGenerator(t, reply)

		drl, gdst, err := gen.Generate(context.Background(), sampleRule())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(drl, `rule "Weekend Discount"`))
		assert.Contains(t, drl, "when")
		assert.Contains(t, drl, "end")
		assert.True(t, strings.HasPrefix(gdst, "<decision-table52>"))
		assert.NotContains(t, drl, Delimiter)
		assert.NotContains(t, gdst, Delimiter)
	})

	t.Run("strips code fences from both halves", func(t *testing.T) {
		t.Parallel()

		reply := "```drl\nrule \"Fenced\"\nwhen\nthen\nend\n```\n" +
			Delimiter + "\n```gdst\n<table/>\n```"
		gen, _ := newTestGenerator(t, reply)

		drl, gdst, err := gen.Generate(context.Background(), sampleRule())
		require.NoError(t, err)
		assert.Equal(t, "rule \"Fenced\"\nwhen\nthen\nend", drl)
		assert.Equal(t, "<table/>", gdst)
	})

	t.Run("prompt carries the rule JSON and the format contract", func(t *testing.T) {
		t.Parallel()

		gen, mock := newTestGenerator(t, "rule\nwhen\nthen\nend\n"+Delimiter+"\n<t/>")

		_, _, err := gen.Generate(context.Background(), sampleRule())
		require.NoError(t, err)

		calls := mock.Calls()
		require.Len(t, calls, 1)
		prompt := calls[0].UserMessage
		assert.Contains(t, prompt, "Given the following JSON, generate equivalent Drools DRL and GDST file contents.")
		assert.Contains(t, prompt, `"name": "Weekend Discount"`)
		assert.Contains(t, prompt, `"field": "order_total"`)
		assert.Contains(t, prompt, Delimiter)
		assert.Contains(t, prompt, "$order : Order(total > 100, customer != null)")
		assert.Contains(t, prompt, "<decision-table52>")
		assert.Contains(t, prompt, "Do not use package rules, only use package com.")
		assert.Contains(t, prompt, "Never use untyped Map unless explicitly instructed.")
	})

	t.Run("model failure surfaces as error", func(t *testing.T) {
		t.Parallel()

		gen, mock := newTestGenerator(t, "unused")
		mock.FailWith(errors.New("api key not valid"))

		_, _, err := gen.Generate(context.Background(), sampleRule())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "generating rule files")
	})

	t.Run("generation runs at the conservative temperature", func(t *testing.T) {
		t.Parallel()

		gen, mock := newTestGenerator(t, "rule\nwhen\nthen\nend\n"+Delimiter+"\n<t/>")

		_, _, err := gen.Generate(context.Background(), sampleRule())
		require.NoError(t, err)

		calls := mock.Calls()
		require.Len(t, calls, 1)
		require.NotNil(t, calls[0].Temperature)
		assert.Equal(t, float32(defaultTemperature), *calls[0].Temperature)
	})

	t.Run("temperature option overrides the default", func(t *testing.T) {
		t.Parallel()

		gen, mock := newTestGenerator(t, "rule\nwhen\nthen\nend\n"+Delimiter+"\n<t/>",
			WithTemperature(0.9))

		_, _, err := gen.Generate(context.Background(), sampleRule())
		require.NoError(t, err)

		calls := mock.Calls()
		require.Len(t, calls, 1)
		require.NotNil(t, calls[0].Temperature)
		assert.Equal(t, float32(0.9), *calls[0].Temperature)
	})
}

func TestSplitArtifacts(t *testing.T) {
	t.Parallel()

	t.Run("delimiter splits exactly once", func(t *testing.T) {
		t.Parallel()

		drl, gdst := SplitArtifacts("first" + Delimiter + "second" + Delimiter + "third")
		assert.Equal(t, "first", drl)
		assert.Equal(t, "second"+Delimiter+"third", gdst)
	})

	t.Run("missing delimiter bisects by line count", func(t *testing.T) {
		t.Parallel()

		lines := []string{
			`rule "Halved"`,
			"when",
			"then",
			"end",
			"<decision-table52>",
			"</decision-table52>",
		}
		drl, gdst := SplitArtifacts(strings.Join(lines, "\n"))

		assert.NotEmpty(t, drl)
		assert.NotEmpty(t, gdst)
		total := len(strings.Split(drl, "\n")) + len(strings.Split(gdst, "\n"))
		assert.Equal(t, len(lines), total)
		assert.Equal(t, `rule "Halved"`+"\nwhen\nthen", drl)
		assert.Equal(t, "end\n<decision-table52>\n</decision-table52>", gdst)
	})

	t.Run("single line reply lands entirely in the gdst half", func(t *testing.T) {
		t.Parallel()

		drl, gdst := SplitArtifacts("one line only")
		assert.Empty(t, drl)
		assert.Equal(t, "one line only", gdst)
	})

	t.Run("bare fences vanish", func(t *testing.T) {
		t.Parallel()

		drl, gdst := SplitArtifacts("```\nrule x\n```\n" + Delimiter + "\n<t/>")
		assert.Equal(t, "rule x", drl)
		assert.Equal(t, "<t/>", gdst)
	})
}
