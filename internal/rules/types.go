// Package rules defines the structured business rule model and the
// parser agent that turns natural-language rule descriptions into it.
// The Rule type is the shared currency of the analysis, generation,
// versioning, and workflow layers; JSON field names follow the wire
// format those layers persist and exchange.
package rules

import "time"

// Priority levels a rule may carry.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Change types recorded in a rule's version metadata.
const (
	ChangeCreate         = "create"
	ChangeUpdate         = "update"
	ChangeModify         = "modify"
	ChangeDRLGeneration  = "drl_generation"
	ChangeImpactAnalysis = "impact_analysis"
)

// Rule is a structured business rule. RuleID stays empty until assigned;
// AssignID fills it deterministically and the store guarantees it is
// unique within a collection.
type Rule struct {
	RuleID      string       `json:"rule_id,omitempty"`
	Name        string       `json:"name"`
	Category    string       `json:"category,omitempty"`
	Description string       `json:"description,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	Conditions  []Condition  `json:"conditions,omitempty"`
	Actions     []Action     `json:"actions,omitempty"`
	Priority    string       `json:"priority,omitempty"`
	Active      bool         `json:"active"`
	Version     *VersionInfo `json:"version_info,omitempty"`
}

// Condition is one structured predicate of a rule. Value is left
// untyped because models emit strings, numbers, and booleans here
// interchangeably; conflict detection compares only Field and Operator.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Action is one structured consequence of a rule.
type Action struct {
	Type    string `json:"type"`
	Details any    `json:"details"`
}

// VersionInfo is the version envelope attached to a rule. Version
// increases by exactly one per update of the same rule ID; CreatedAt is
// preserved verbatim from the first version onward. It lives beside
// Rule so the version manager can depend on this package one-way.
type VersionInfo struct {
	Version                int        `json:"version"`
	CreatedAt              time.Time  `json:"created_at"`
	LastModified           time.Time  `json:"last_modified"`
	ChangeType             string     `json:"change_type"`
	ChangeSummary          string     `json:"change_summary"`
	ImpactAnalysis         *string    `json:"impact_analysis"`
	User                   string     `json:"user"`
	DRLGenerated           bool       `json:"drl_generated"`
	DRLGenerationTimestamp *time.Time `json:"drl_generation_timestamp"`
}
