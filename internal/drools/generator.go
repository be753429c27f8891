// Package drools turns structured rules into executable Drools
// artifacts: a DRL rule source and a GDST guided decision table. Both
// come back from a single model call whose reply carries the DRL
// first and the GDST second, separated by a delimiter token.
package drools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/rulesmith/rulesmith/internal/llm"
	"github.com/rulesmith/rulesmith/internal/rules"
)

// Delimiter separates the DRL half from the GDST half in a model
// reply.
const Delimiter = "---GDST---"

// generationPrompt is the fixed template for artifact generation. The
// embedded DRL and GDST examples pin down the exact output shape; the
// guidelines keep the model on typed fact classes instead of untyped
// maps, which Drools cannot compile.
const generationPrompt = `Given the following JSON, generate equivalent Drools DRL and GDST file contents. Return DRL first, then GDST, separated by a delimiter '---GDST---'.

JSON:
%s

The DRL content must follow this shape:

rule "High Value Order Discount"
    salience 10
    when
        $order : Order(total > 100, customer != null)
    then
        $order.setDiscount(0.10);
        update($order);
end

The GDST content must follow this shape:

<decision-table52>
  <tableName>High Value Order Discounts</tableName>
  <packageName>com</packageName>
  <imports>
    <imports>
      <type>com.Order</type>
    </imports>
  </imports>
  <rowNumberCol/>
  <descriptionCol/>
  <conditionPatterns>
    <Pattern52>
      <factType>Order</factType>
      <boundName>$order</boundName>
      <conditions>
        <condition-column52>
          <header>Order total above</header>
          <factField>total</factField>
          <operator>&gt;</operator>
        </condition-column52>
      </conditions>
    </Pattern52>
  </conditionPatterns>
  <actionCols>
    <set-field-col52>
      <header>Set discount</header>
      <boundName>$order</boundName>
      <factField>discount</factField>
    </set-field-col52>
  </actionCols>
</decision-table52>

General instructions:
- Use the Drools rule language syntax and conventions.
- Assume all domain objects used in rules are strongly typed Java objects.
- If you are creating a rule, clearly define the object's class name, fields, and package in a comment above the rule (or include a class stub).
- If you are modifying an already existing rule, just import it using its full package name (e.g., com.example.classify_restaurant_size).

DRL file guidelines:
- Use proper type bindings (e.g., $order: Order(...)) and not Map or untyped objects.
- If the object is undefined or new, mention it as a note or include a class definition block in comments.
- Do not include code fences or markdown formatting.
- Do not use package rules, only use package com.

GDST file guidelines:
- Set the correct <factType> and <factTypePackage> for each pattern and action.
- Include all object types used in the imports section.
- If a new rule is created, include the new object's definition or a description of expected fields in a comment.

Never use untyped Map unless explicitly instructed. Always prefer typed fact classes.

Your output must be executable by Drools and help the developer avoid compilation errors due to missing object types.

Do not include any additional text, just return the DRL and GDST contents in the specified format, so I am able to run it with drools directly.`

// defaultTemperature keeps generation conservative. Artifact output
// has to survive a Drools compiler, so sampling variety works against
// it.
const defaultTemperature = 0.3

// Generator is the rule file generator agent. It renders a structured
// rule into the generation template and splits the model reply into
// its two artifacts.
type Generator struct {
	client      *llm.Client
	logger      *slog.Logger
	temperature float32
}

// Option customizes a Generator.
type Option func(*Generator)

// WithTemperature overrides the conservative default sampling
// temperature for generation calls.
func WithTemperature(t float32) Option {
	return func(g *Generator) { g.temperature = t }
}

// NewGenerator creates a Generator. logger may be nil.
func NewGenerator(client *llm.Client, logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{client: client, logger: logger, temperature: defaultTemperature}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate converts rule into DRL and GDST sources with one model
// call. A reply that arrives without the delimiter token is still
// split by SplitArtifacts, so the returned error is non-nil only when
// the model call itself fails.
func (g *Generator) Generate(ctx context.Context, rule rules.Rule) (drl, gdst string, err error) {
	data, err := json.MarshalIndent(rule, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encoding rule for generation: %w", err)
	}

	raw, err := g.client.Generate(ctx, fmt.Sprintf(generationPrompt, data),
		llm.WithTemperature(g.temperature))
	if err != nil {
		return "", "", fmt.Errorf("generating rule files: %w", err)
	}

	drl, gdst = SplitArtifacts(raw)
	g.logger.Info("generated rule artifacts",
		slog.String("rule", rule.Name),
		slog.Int("drl_len", len(drl)),
		slog.Int("gdst_len", len(gdst)))
	return drl, gdst, nil
}

// SplitArtifacts separates a raw model reply into its DRL and GDST
// halves. The delimiter token is the primary strategy; a reply
// without it is bisected by line count with the first half taken as
// the DRL. Both halves are stripped of code fences and surrounding
// whitespace.
func SplitArtifacts(response string) (drl, gdst string) {
	drlRaw, gdstRaw, found := strings.Cut(response, Delimiter)
	if !found {
		lines := strings.Split(response, "\n")
		mid := len(lines) / 2
		drlRaw = strings.Join(lines[:mid], "\n")
		gdstRaw = strings.Join(lines[mid:], "\n")
	}
	return cleanArtifact(drlRaw), cleanArtifact(gdstRaw)
}

// fenceMarkers matches the markdown code fences models sometimes wrap
// artifacts in despite the template forbidding them.
var fenceMarkers = regexp.MustCompile("```(?:drl|gdst)?")

func cleanArtifact(s string) string {
	return strings.TrimSpace(fenceMarkers.ReplaceAllString(s, ""))
}
