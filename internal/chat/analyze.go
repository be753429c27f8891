package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rulesmith/rulesmith/internal/analysis"
	"github.com/rulesmith/rulesmith/internal/drools"
	"github.com/rulesmith/rulesmith/internal/persist"
	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/session"
	"github.com/rulesmith/rulesmith/internal/versioning"
)

// Analysis is an impact-only review of the session's last parsed
// rule. Text is the formatted report; the remaining fields carry the
// raw findings for structured clients.
type Analysis struct {
	Text      string              `json:"text"`
	Conflicts []analysis.Conflict `json:"conflicts"`
	Narrative string              `json:"narrative"`
	Impact    analysis.Impact     `json:"impact"`
}

// AnalyzeImpact runs conflict detection and impact assessment on the
// session's last rule without generating anything. A session that has
// not parsed a rule yet gets a prompt to chat first.
func (s *Service) AnalyzeImpact(ctx context.Context, sessionID uuid.UUID) (Analysis, error) {
	sn, ok := s.sessions.Get(sessionID)
	if !ok {
		return Analysis{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if sn.LastRule == nil {
		return Analysis{Text: noRuleReply}, nil
	}

	industry := industryOrDefault(sn.Industry)
	conflicts, narrative := s.analyzer.AnalyzeConflicts(ctx, *sn.LastRule, s.store.List(), industry)
	impact := s.analyzer.AssessImpact(ctx, *sn.LastRule, industry)

	return Analysis{
		Text:      impactReport(conflicts, narrative, impact),
		Conflicts: conflicts,
		Narrative: narrative,
		Impact:    impact,
	}, nil
}

// impactReport renders the analysis for the decision-support surface.
// Conflicts get the full breakdown with the impact assessment JSON; a
// clean rule gets the narrative and a go-ahead.
func impactReport(conflicts []analysis.Conflict, narrative string, impact analysis.Impact) string {
	if len(conflicts) == 0 {
		return "Detailed Analysis:\n" + narrative +
			"\n\nRule is ready for implementation. Use the Decision Support section below to proceed."
	}

	lines := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		info := c.IndustryImpact
		if info == "" {
			info = "No impact analysis available"
		}
		lines = append(lines, fmt.Sprintf("%s: %s\n   Industry Impact: %s", c.Type, c.Message, info))
	}

	impactJSON, err := json.MarshalIndent(impact, "", "  ")
	if err != nil {
		impactJSON = []byte("{}")
	}

	return "Conflicts Detected by Agent 3:\n\n" +
		strings.Join(lines, "\n\n") +
		"\n\nDetailed Analysis:\n" + narrative +
		"\n\nImpact Assessment:\n" + string(impactJSON) +
		"\n\nPlease use the Decision Support section below to proceed, modify, or cancel."
}

// GenerationOutcome reports one decision-support generation attempt.
// Artifacts is non-nil only when files were written to disk.
type GenerationOutcome struct {
	Message   string            `json:"message"`
	Artifacts *drools.Artifacts `json:"artifacts,omitempty"`
}

// GenerateFiles applies the user's go/no-go decision to the session's
// last rule. Approval of a conflict-free rule generates the DRL/GDST
// pair, verifies it, and saves it under the artifacts directory;
// every other outcome reports the orchestration message. Generation
// failures come back as messages, not errors, so callers can show
// them directly.
func (s *Service) GenerateFiles(ctx context.Context, sessionID uuid.UUID, decision string) (GenerationOutcome, error) {
	sn, ok := s.sessions.Get(sessionID)
	if !ok {
		return GenerationOutcome{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if sn.LastRule == nil {
		return GenerationOutcome{}, ErrNoRule
	}

	conflicts := analysis.DetectConflicts(*sn.LastRule, s.store.List())
	return s.generate(ctx, sn.ID, *sn.LastRule, conflicts, decision), nil
}

// GenerateForRule runs the decision-support generation flow against a
// rule already in the store, keyed by rule ID instead of a session.
// The rule is excluded from its own conflict scan.
func (s *Service) GenerateForRule(ctx context.Context, ruleID, decision string) (GenerationOutcome, error) {
	rule, ok := s.store.FindByID(ruleID)
	if !ok {
		return GenerationOutcome{}, fmt.Errorf("%w: %s", rules.ErrRuleNotFound, ruleID)
	}

	others := make([]rules.Rule, 0, s.store.Len())
	for _, existing := range s.store.List() {
		if existing.RuleID != rule.RuleID {
			others = append(others, existing)
		}
	}

	conflicts := analysis.DetectConflicts(rule, others)
	return s.generate(ctx, uuid.Nil, rule, conflicts, decision), nil
}

// generate applies the orchestration gate and, on approval, produces,
// verifies, and saves the artifact pair. A zero session ID means the
// rule came from the store rather than a chat session.
func (s *Service) generate(ctx context.Context, sessionID uuid.UUID, candidate rules.Rule, conflicts []analysis.Conflict, decision string) GenerationOutcome {
	outcome := s.decider.Orchestrate(decision, candidate, conflicts)
	if !outcome.Proceed {
		return GenerationOutcome{Message: "### Status Update\n\n" + outcome.Message}
	}

	rule := outcome.Request.RuleData
	drl, gdst, err := s.generator.Generate(ctx, rule)
	if err != nil {
		s.logger.Error("rule generation failed", slog.String("error", err.Error()))
		return GenerationOutcome{Message: generationErrorMessage(err)}
	}

	if verification := drools.Verify(drl, gdst); !verification.Valid {
		return GenerationOutcome{
			Message: "### Generation Issue\n\nRule syntax verified, but execution verification failed.",
		}
	}

	artifacts, err := drools.SaveArtifacts(s.artifactsDir, rule, drl, gdst)
	if err != nil {
		s.logger.Error("saving rule artifacts", slog.String("error", err.Error()))
		return GenerationOutcome{Message: generationErrorMessage(err)}
	}

	rule = s.recordGeneration(sessionID, rule)
	s.auditGeneration(sessionID, rule, artifacts)

	message := fmt.Sprintf(
		"### Rule Generation Successful\n\n**Rule:** %s\n\n**Files have been created:**\n- **DRL**: %s\n- **GDST**: %s\n\nYou can download the files below.",
		nameOrUnnamed(rule), artifacts.DRLPath, artifacts.GDSTPath)
	return GenerationOutcome{Message: message, Artifacts: &artifacts}
}

// recordGeneration stamps DRL generation onto the rule's version
// history and mirrors the update into the store and the originating
// session when either holds the rule.
func (s *Service) recordGeneration(id uuid.UUID, rule rules.Rule) rules.Rule {
	if rule.RuleID != "" {
		rule = s.versions.UpdateVersioned(rule, versioning.Change{
			Type:         rules.ChangeDRLGeneration,
			Summary:      "Generated DRL and GDST files from JSON rule",
			DRLGenerated: true,
		})
		if err := s.store.Replace(rule); err != nil {
			s.logger.Debug("generated rule not in store, version kept on session only",
				slog.String("rule_id", rule.RuleID))
		}
	}

	if id == uuid.Nil {
		return rule
	}
	if err := s.sessions.Update(id, func(sn *session.Session) {
		sn.LastRule = &rule
	}); err != nil {
		s.logger.Warn("updating session after generation",
			slog.String("session", id.String()),
			slog.String("error", err.Error()))
	}
	return rule
}

func (s *Service) auditGeneration(id uuid.UUID, rule rules.Rule, artifacts drools.Artifacts) {
	meta := map[string]any{
		"rule_name": rule.Name,
		"drl_path":  artifacts.DRLPath,
		"gdst_path": artifacts.GDSTPath,
	}
	if id != uuid.Nil {
		meta["session_id"] = id.String()
	}
	if rule.RuleID != "" {
		meta["rule_id"] = rule.RuleID
	}
	if err := s.persist.LogChange(persist.ComponentWorkflow, "Rule files generated", meta); err != nil {
		s.logger.Warn("recording generation change log entry",
			slog.String("error", err.Error()))
	}
}

func generationErrorMessage(err error) string {
	return fmt.Sprintf("### Generation Error\n\nAn error occurred during rule generation:\n\n```\n%v\n```", err)
}

func nameOrUnnamed(rule rules.Rule) string {
	if rule.Name == "" {
		return "Unnamed Rule"
	}
	return rule.Name
}

func industryOrDefault(industry string) string {
	if industry == "" {
		return analysis.DefaultIndustry
	}
	return industry
}
