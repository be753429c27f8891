package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rulesmith/rulesmith/internal/jsonrepair"
	"github.com/rulesmith/rulesmith/internal/knowledge"
	"github.com/rulesmith/rulesmith/internal/llm"
)

// DefaultTopK is how many knowledge-base chunks are folded into the
// parser prompt as retrieval context.
const DefaultTopK = 3

// parserPrompt is the system prompt for the rule parser agent. The
// JSON key list mirrors the Rule wire format exactly.
const parserPrompt = `You are an expert in translating business rules into structured logic.
Your task is to extract the key logic (conditions and actions) from the user's sentence.

Respond strictly in JSON format with these keys:
- "name": a name for the rule.
- "category": the business category the rule belongs to.
- "description": the rule restated in plain language.
- "summary": a brief natural language summary of the rule.
- "conditions": a list of {"field", "operator", "value"} objects that must be met.
- "actions": a list of {"type", "details"} objects taken when the conditions are met.
- "priority": "Low", "Medium" or "High".
- "active": whether the rule is currently in force.

Return a single JSON object only (not a list).`

// Parser is the rule parser agent. It folds retrieved knowledge-base
// context and prior conversation into a model call and decodes the
// model's JSON reply into a Rule.
type Parser struct {
	client *llm.Client
	kb     knowledge.Base
	logger *slog.Logger
	topK   int
}

// ParserOption customizes a Parser.
type ParserOption func(*Parser)

// WithTopK overrides how many knowledge-base chunks are retrieved into
// the prompt context.
func WithTopK(k int) ParserOption {
	return func(p *Parser) { p.topK = k }
}

// NewParser creates a Parser. kb may be nil when no knowledge base is
// configured; parsing then runs without retrieval context.
func NewParser(client *llm.Client, kb knowledge.Base, logger *slog.Logger, opts ...ParserOption) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Parser{
		client: client,
		kb:     kb,
		logger: logger,
		topK:   DefaultTopK,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse turns userText into a structured rule. History is replayed as
// prior turns, skipping incomplete exchanges. A model reply that fails
// JSON decoding even after repair yields the parse-error sentinel rule
// with a nil error, so a malformed reply never breaks the
// conversation; the returned error is non-nil only when the model call
// itself fails.
func (p *Parser) Parse(ctx context.Context, userText string, history []llm.Exchange) (Rule, error) {
	contextBlock, _ := knowledge.PromptContext(ctx, p.kb, userText, p.topK, p.logger)
	prompt := llm.EnhanceJSONPrompt(parserPrompt)
	full := fmt.Sprintf("%s\n\n%sUser Query: %s", prompt, contextBlock, userText)

	raw, err := p.client.Generate(ctx, full,
		llm.WithHistory(llm.TurnsFromExchanges(history)),
		llm.WithJSONResponse(),
	)
	if err != nil {
		return Rule{}, fmt.Errorf("parsing rule: %w", err)
	}

	var rule Rule
	if err := jsonrepair.Parse(raw, &rule); err != nil {
		p.logger.Warn("model reply failed JSON decoding, returning sentinel rule",
			slog.Int("response_len", len(raw)))
		return parseErrorRule(raw), nil
	}
	return rule, nil
}

// parseErrorRule is the sentinel returned when the model's reply could
// not be decoded as a rule. It is itself a valid Rule so downstream
// code never needs nil checks; the summary carries the start of the
// raw reply for the user to see what came back.
func parseErrorRule(raw string) Rule {
	const excerptLen = 150
	excerpt := raw
	if r := []rune(raw); len(r) > excerptLen {
		excerpt = string(r[:excerptLen])
	}
	return Rule{
		Name:        "LLM Response Parse Error",
		Summary:     "The AI returned a response, but it wasn't valid JSON. Raw response start: " + excerpt + "...",
		Description: "Response was not in expected JSON format.",
	}
}
