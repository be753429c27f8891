// Package workflow sequences the three agents into one directed run:
// parse, conflict analysis, impact analysis, orchestration decision,
// then either file generation plus verification or a response-only
// path. Node failures land in the state's error message and route to
// the terminal response node, so every run ends with user-facing text
// rather than a stack trace.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rulesmith/rulesmith/internal/analysis"
	"github.com/rulesmith/rulesmith/internal/drools"
	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/versioning"
)

// Config contains the collaborators a workflow Engine drives.
type Config struct {
	Parser    *rules.Parser
	Analyzer  *analysis.Analyzer
	Generator *drools.Generator
	Decider   *analysis.Orchestrator
	Store     *rules.Store
	Versions  *versioning.Manager
	Logger    *slog.Logger
}

func (cfg Config) validate() error {
	if cfg.Parser == nil {
		return errors.New("parser is required")
	}
	if cfg.Analyzer == nil {
		return errors.New("analyzer is required")
	}
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.Decider == nil {
		return errors.New("decider is required")
	}
	if cfg.Store == nil {
		return errors.New("rule store is required")
	}
	if cfg.Versions == nil {
		return errors.New("version manager is required")
	}
	return nil
}

// Engine runs the fixed workflow topology over injected agents.
type Engine struct {
	parser    *rules.Parser
	analyzer  *analysis.Analyzer
	generator *drools.Generator
	decider   *analysis.Orchestrator
	store     *rules.Store
	versions  *versioning.Manager
	logger    *slog.Logger
}

// New creates an Engine after validating that every collaborator is
// present. Logger may be nil.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		parser:    cfg.Parser,
		analyzer:  cfg.Analyzer,
		generator: cfg.Generator,
		decider:   cfg.Decider,
		store:     cfg.Store,
		versions:  cfg.Versions,
		logger:    cfg.Logger,
	}, nil
}

// Run drives one request through the workflow. The returned Result
// always carries a response string; a panic anywhere in the graph is
// absorbed into a failure response so a conversation never crashes.
func (e *Engine) Run(ctx context.Context, input Input) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("workflow run panicked", slog.Any("panic", r))
			result = Result{
				Response: fmt.Sprintf("Workflow execution failed: %v", r),
				Error:    fmt.Sprintf("%v", r),
			}
		}
	}()

	industry := input.Industry
	if industry == "" {
		industry = analysis.DefaultIndustry
	}
	userInput := withHistoryContext(input.UserText, input.History)

	st := State{
		UserInput: userInput,
		Industry:  industry,
		Conflicts: []analysis.Conflict{},
		Messages:  []string{userInput},
	}

	e.logger.Info("workflow starting",
		slog.String("industry", industry),
		slog.String("input", preview(userInput)))

	for step := StepParseRule; step != stepDone; {
		step = e.advance(ctx, step, &st)
	}

	return resultFrom(&st)
}

// advance runs one node and picks the successor per the fixed
// topology. The response node is reachable from every path so a run
// always ends with a reply.
func (e *Engine) advance(ctx context.Context, step Step, st *State) Step {
	switch step {
	case StepParseRule:
		e.parseRule(ctx, st)
		if st.ErrorMessage != "" || st.Rule == nil {
			return StepError
		}
		return StepConflictAnalysis

	case StepConflictAnalysis:
		e.conflictAnalysis(ctx, st)
		return StepImpactAnalysis

	case StepImpactAnalysis:
		e.impactAnalysis(ctx, st)
		return StepOrchestration

	case StepOrchestration:
		e.orchestrationDecision(st)
		switch {
		case st.ErrorMessage != "":
			return StepError
		case st.ShouldGenerate:
			return StepGenerateFiles
		default:
			return StepRespond
		}

	case StepGenerateFiles:
		e.generateFiles(ctx, st)
		return StepVerifyFiles

	case StepVerifyFiles:
		e.verifyFiles(st)
		return StepRespond

	case StepError:
		e.handleError(st)
		return StepRespond

	case StepRespond:
		e.generateResponse(ctx, st)
		return stepDone

	default:
		st.ErrorMessage = fmt.Sprintf("unknown workflow step: %s", step)
		return StepError
	}
}

func (e *Engine) parseRule(ctx context.Context, st *State) {
	rule, err := e.parser.Parse(ctx, st.UserInput, nil)
	if err != nil {
		st.ErrorMessage = fmt.Sprintf("Agent 1 failed to parse rule: %v", err)
		return
	}

	versioned := e.versions.CreateVersioned(rule, versioning.Change{})
	st.Rule = &versioned
	st.addMessage("Agent 1: Parsed rule structure: " + nameOrDefault(versioned.Name))

	e.logger.Info("rule parsed", slog.String("name", nameOrDefault(versioned.Name)))
}

func (e *Engine) conflictAnalysis(ctx context.Context, st *State) {
	if st.Rule == nil {
		st.ErrorMessage = "No structured rule available for conflict analysis"
		return
	}

	conflicts, _ := e.analyzer.AnalyzeConflicts(ctx, *st.Rule, e.store.List(), st.Industry)
	st.Conflicts = conflicts
	st.addMessage(fmt.Sprintf("Agent 3: Found %d potential conflicts", len(conflicts)))

	e.logger.Info("conflict analysis done", slog.Int("conflicts", len(conflicts)))
}

func (e *Engine) impactAnalysis(ctx context.Context, st *State) {
	if st.Rule == nil {
		st.ErrorMessage = "No structured rule available for impact analysis"
		return
	}

	st.Impact = e.analyzer.AssessImpact(ctx, *st.Rule, st.Industry)
	st.addMessage("Agent 3: Impact analysis completed - Risk level: " + st.Impact.RiskLevel())
}

func (e *Engine) orchestrationDecision(st *State) {
	if st.Rule == nil {
		st.ErrorMessage = "No structured rule available for orchestration"
		return
	}

	decision := e.decider.Decide(*st.Rule, st.Conflicts)
	st.ShouldGenerate = decision.Proceed
	st.addMessage("Agent 3: " + decision.Message)

	e.logger.Info("orchestration decided", slog.Bool("generate", decision.Proceed))
}

func (e *Engine) generateFiles(ctx context.Context, st *State) {
	if st.Rule == nil {
		st.ErrorMessage = "No structured rule available for file generation"
		return
	}

	drl, gdst, err := e.generator.Generate(ctx, *st.Rule)
	if err != nil {
		st.ErrorMessage = fmt.Sprintf("Agent 2 file generation failed: %v", err)
		return
	}

	st.DRL = drl
	st.GDST = gdst
	st.addMessage("Agent 2: Generated DRL and GDST files")

	e.recordGeneration(st)
}

// recordGeneration stamps DRL generation onto the rule's version
// history and mirrors the updated rule into the store. A rule that
// was never stored just keeps its new version metadata.
func (e *Engine) recordGeneration(st *State) {
	if st.Rule.RuleID == "" {
		return
	}

	updated := e.versions.UpdateVersioned(*st.Rule, versioning.Change{
		Type:         rules.ChangeDRLGeneration,
		Summary:      "Generated DRL and GDST files from JSON rule",
		DRLGenerated: true,
	})
	st.Rule = &updated

	if err := e.store.Replace(updated); err != nil {
		e.logger.Debug("generated rule not in store, version kept on state only",
			slog.String("rule_id", updated.RuleID))
	}
}

func (e *Engine) verifyFiles(st *State) {
	if st.DRL == "" || st.GDST == "" {
		// Keep the generation failure visible instead of masking it
		// with a missing-files message.
		if st.ErrorMessage == "" {
			st.ErrorMessage = "No files available for verification"
		}
		return
	}

	res := drools.Verify(st.DRL, st.GDST)
	st.Verification = &res
	st.addMessage("Verification: " + res.Detail)
}

func (e *Engine) generateResponse(ctx context.Context, st *State) {
	var response string
	if st.ErrorMessage != "" {
		response = "I encountered an error: " + st.ErrorMessage
	} else {
		response = e.analyzer.Respond(ctx, st.UserInput, analysis.ResponseContext{
			Rule:      st.Rule,
			Conflicts: st.Conflicts,
			Impact:    st.Impact,
		}, st.Industry)
	}

	st.FinalResponse = response
	st.addMessage(response)
}

func (e *Engine) handleError(st *State) {
	if st.ErrorMessage == "" {
		st.ErrorMessage = "An unexpected error occurred in the workflow"
	}
	e.logger.Warn("workflow error absorbed", slog.String("error", st.ErrorMessage))
}

func nameOrDefault(name string) string {
	if name == "" {
		return "Unnamed Rule"
	}
	return name
}

// preview keeps log lines short for long conversational inputs.
func preview(s string) string {
	const max = 100
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
