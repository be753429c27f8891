package analysis

import (
	"fmt"
	"strings"

	"github.com/rulesmith/rulesmith/internal/rules"
)

// Conflict types, ordered by severity of what they catch.
const (
	ConflictDuplicateID   = "duplicate_id"
	ConflictDuplicateRule = "duplicate_rule"
	ConflictLogical       = "logical_conflict"
)

// Conflict severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Conflict is one detected clash between a proposed rule and an
// existing one. Conflicts are computed per analysis call and never
// persisted on their own; they gate orchestration and feed the
// narrative.
type Conflict struct {
	Type            string `json:"type"`
	Message         string `json:"message"`
	ConflictingRule string `json:"conflicting_rule"`
	Severity        string `json:"severity"`
	IndustryImpact  string `json:"industry_impact,omitempty"`
}

// DetectConflicts compares a proposed rule against the existing
// collection. Detection is purely structural: duplicate IDs, duplicate
// name within a category, and overlapping condition shapes. No model
// call, deterministic for identical inputs.
func DetectConflicts(proposed rules.Rule, existing []rules.Rule) []Conflict {
	conflicts := make([]Conflict, 0)
	for _, rule := range existing {
		if proposed.RuleID != "" && rule.RuleID != "" && proposed.RuleID == rule.RuleID {
			conflicts = append(conflicts, Conflict{
				Type:            ConflictDuplicateID,
				Message:         fmt.Sprintf("Rule ID '%s' already exists", proposed.RuleID),
				ConflictingRule: nameOrUnknown(rule),
				Severity:        SeverityHigh,
			})
		}
		if sameNameAndCategory(proposed, rule) {
			conflicts = append(conflicts, Conflict{
				Type:            ConflictDuplicateRule,
				Message:         fmt.Sprintf("Similar rule already exists: %s", rule.Name),
				ConflictingRule: nameOrUnknown(rule),
				Severity:        SeverityMedium,
			})
		}
		if conditionsOverlap(proposed.Conditions, rule.Conditions) {
			conflicts = append(conflicts, Conflict{
				Type:            ConflictLogical,
				Message:         fmt.Sprintf("Conditions may overlap with existing rule: %s", rule.Name),
				ConflictingRule: nameOrUnknown(rule),
				Severity:        SeverityLow,
			})
		}
	}
	return conflicts
}

func sameNameAndCategory(a, b rules.Rule) bool {
	if a.Name == "" || b.Name == "" {
		return false
	}
	return strings.EqualFold(a.Name, b.Name) && strings.EqualFold(a.Category, b.Category)
}

// conditionsOverlap reports whether any condition pair shares both
// field and operator. Values are deliberately ignored: two rules
// keying on the same field with the same comparison are flagged for a
// human to review, even if their thresholds differ.
func conditionsOverlap(a, b []rules.Condition) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	for _, ca := range a {
		for _, cb := range b {
			if ca.Field == cb.Field && ca.Operator == cb.Operator {
				return true
			}
		}
	}
	return false
}

func nameOrUnknown(r rules.Rule) string {
	if r.Name == "" {
		return "Unknown"
	}
	return r.Name
}

// industryImpact phrases what a conflict touches in the given
// industry. The built-in configs always carry four impact areas, which
// the index pairs below rely on.
func industryImpact(conflictType string, config IndustryConfig) string {
	areas := config.ImpactAreas
	switch conflictType {
	case ConflictDuplicateID:
		return fmt.Sprintf("May affect %s and %s", areas[0], areas[1])
	case ConflictDuplicateRule:
		return fmt.Sprintf("Could impact %s and %s", areas[1], areas[2])
	case ConflictLogical:
		return fmt.Sprintf("Risk to %s and %s", areas[0], areas[3])
	default:
		return fmt.Sprintf("General impact on %s", areas[0])
	}
}
