package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rulesmith/rulesmith/internal/jsonrepair"
	"github.com/rulesmith/rulesmith/internal/knowledge"
	"github.com/rulesmith/rulesmith/internal/llm"
	"github.com/rulesmith/rulesmith/internal/rules"
)

// assistantPrompt primes the model for the analysis agent's
// conversational role.
const assistantPrompt = `You are Agent 3, an intelligent business rules management assistant specializing in conversational interaction, conflict detection, impact analysis, and orchestration. You help users manage business rules across various industries through intuitive dialogue.

Your primary responsibilities:
1. **Conversational Interaction**: Engage users in clear, helpful dialogue about business rules
2. **Conflict Detection**: Identify potential conflicts between existing and proposed rules
3. **Impact Analysis**: Evaluate operational and business impacts of rule modifications
4. **Decision Support**: Help users make informed decisions about rule changes
5. **Orchestration**: Coordinate with Agent 1 and Agent 2 when rule generation is needed

Context Analysis Guidelines:
- Consider industry-specific parameters (staffing, operational hours, scale, regulations)
- Evaluate rule interactions and dependencies
- Assess potential business impacts (cost, efficiency, compliance)
- Provide clear explanations and recommendations

Response Format:
Provide conversational responses that include:
- Clear explanations of findings
- Specific conflict details if any
- Impact assessment summary
- Actionable recommendations
- Next steps for the user

Be adaptable to different industries and maintain a helpful, professional tone.`

// conversationalTemperature keeps narrative output measured without
// making it robotic.
const conversationalTemperature = 0.3

// respondTopK is how many knowledge-base chunks ground the
// conversational reply.
const respondTopK = 3

// Impact is the model's structured impact assessment. The requested
// shape names operational_impact, financial_impact and risk_level, but
// the model may add detail fields, so the object stays open.
type Impact map[string]any

// RiskLevel returns the assessment's risk_level field, or "Unknown"
// when the model omitted it.
func (i Impact) RiskLevel() string {
	if v, ok := i["risk_level"].(string); ok && v != "" {
		return v
	}
	return "Unknown"
}

// ResponseContext is the accumulated workflow state the assistant
// grounds its conversational reply in.
type ResponseContext struct {
	Rule      *rules.Rule `json:"structured_rule"`
	Conflicts []Conflict  `json:"conflicts,omitempty"`
	Impact    Impact      `json:"impact_analysis,omitempty"`
}

// Analyzer is the conflict and impact analysis agent.
type Analyzer struct {
	client *llm.Client
	kb     knowledge.Base
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer. kb may be nil when no knowledge
// base is configured; conversational replies then skip retrieval.
func NewAnalyzer(client *llm.Client, kb knowledge.Base, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{client: client, kb: kb, logger: logger}
}

// AnalyzeConflicts runs structural conflict detection against the
// existing collection, annotates each hit with an industry impact
// phrase, and asks the model for a conversational resolution
// narrative. The conflict list is always valid; a failed model call
// degrades the narrative to an error description.
func (a *Analyzer) AnalyzeConflicts(ctx context.Context, proposed rules.Rule, existing []rules.Rule, industry string) ([]Conflict, string) {
	config := LookupIndustry(industry)

	conflicts := DetectConflicts(proposed, existing)
	for i := range conflicts {
		conflicts[i].IndustryImpact = industryImpact(conflicts[i].Type, config)
	}

	return conflicts, a.conflictNarrative(ctx, proposed, conflicts, config)
}

func (a *Analyzer) conflictNarrative(ctx context.Context, proposed rules.Rule, conflicts []Conflict, config IndustryConfig) string {
	prompt := fmt.Sprintf(`Analyze the following rule conflicts in the context of the %s industry:

Proposed Rule: %s

Detected Conflicts: %s

Key Industry Parameters: %s

Provide a clear, conversational analysis of these conflicts and recommend resolution strategies.`,
		config.Name, indentJSON(proposed), indentJSON(conflicts),
		strings.Join(config.KeyParameters, ", "))

	narrative, err := a.client.Generate(ctx, prompt, llm.WithTemperature(conversationalTemperature))
	if err != nil {
		a.logger.Warn("conflict narrative generation failed",
			slog.String("error", err.Error()))
		return fmt.Sprintf("Error analyzing conflicts: %v", err)
	}
	return narrative
}

// AssessImpact asks the model for a structured business impact
// assessment of the proposed rule. Failure never blocks the workflow:
// a failed call or unrepairable reply yields a fixed error object with
// risk_level Medium as the conservative default.
func (a *Analyzer) AssessImpact(ctx context.Context, proposed rules.Rule, industry string) Impact {
	config := LookupIndustry(industry)

	prompt := fmt.Sprintf(`Analyze the business impact of this proposed rule:

Proposed Rule: %s

Industry Context: %s

Assess impact on: %s

Provide structured analysis including:
- Operational impact
- Financial implications
- Risk assessment
- Implementation considerations

Format as JSON with clear impact ratings (High/Medium/Low).`,
		indentJSON(proposed), indentJSON(config),
		strings.Join(config.ImpactAreas, ", "))

	raw, err := a.client.Generate(ctx, prompt, llm.WithJSONResponse())
	if err != nil {
		a.logger.Warn("impact assessment failed", slog.String("error", err.Error()))
		return impactFallback(err)
	}

	var impact Impact
	if err := jsonrepair.Parse(raw, &impact); err != nil {
		a.logger.Warn("impact assessment reply failed JSON decoding",
			slog.Int("response_len", len(raw)))
		return impactFallback(err)
	}
	return impact
}

func impactFallback(err error) Impact {
	return Impact{
		"error":              fmt.Sprintf("Impact analysis failed: %v", err),
		"operational_impact": "Unknown",
		"financial_impact":   "Unknown",
		"risk_level":         "Medium",
	}
}

// Respond generates the assistant's conversational reply to query,
// grounded in the knowledge base when one is loaded and in the current
// workflow state. It always returns user-facing text; a failed model
// call degrades to an apology.
func (a *Analyzer) Respond(ctx context.Context, query string, rctx ResponseContext, industry string) string {
	config := LookupIndustry(industry)

	enhanced := fmt.Sprintf(`Industry Context: %s

Current Context: %s

User Query: %s

Please provide a helpful, conversational response that considers the industry context and current state.`,
		indentJSON(config), indentJSON(rctx), query)

	full := assistantPrompt + "\n\n" + enhanced
	if block, ok := knowledge.PromptContext(ctx, a.kb, enhanced, respondTopK, a.logger); ok {
		full = fmt.Sprintf("%s\n\n%sUser Query: %s", assistantPrompt, block, enhanced)
	}

	reply, err := a.client.Generate(ctx, full, llm.WithTemperature(conversationalTemperature))
	if err != nil {
		a.logger.Warn("conversational response failed", slog.String("error", err.Error()))
		return fmt.Sprintf("I apologize, but I encountered an error processing your request: %v", err)
	}
	return reply
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
