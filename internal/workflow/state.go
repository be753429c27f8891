package workflow

import (
	"github.com/rulesmith/rulesmith/internal/analysis"
	"github.com/rulesmith/rulesmith/internal/drools"
	"github.com/rulesmith/rulesmith/internal/llm"
	"github.com/rulesmith/rulesmith/internal/rules"
)

// Step identifies one workflow node.
type Step string

const (
	StepParseRule        Step = "parse_rule"
	StepConflictAnalysis Step = "conflict_analysis"
	StepImpactAnalysis   Step = "impact_analysis"
	StepOrchestration    Step = "orchestration"
	StepGenerateFiles    Step = "generate_files"
	StepVerifyFiles      Step = "verify_files"
	StepRespond          Step = "generate_response"
	StepError            Step = "handle_error"

	stepDone Step = ""
)

// Input is one conversational request into the workflow.
type Input struct {
	UserText string
	Industry string
	History  []llm.Exchange
}

// State is the blackboard a run threads through every node. Nodes
// write their outputs and the first failure into it; the terminal
// response node reads whatever accumulated.
type State struct {
	UserInput      string
	Industry       string
	Rule           *rules.Rule
	Conflicts      []analysis.Conflict
	Impact         analysis.Impact
	DRL            string
	GDST           string
	Verification   *drools.Result
	ShouldGenerate bool
	ErrorMessage   string
	Messages       []string
	FinalResponse  string
}

func (st *State) addMessage(msg string) {
	st.Messages = append(st.Messages, msg)
}

// Result is what a run returns to its caller. The json tags are the
// wire shape the chat and HTTP surfaces expose.
type Result struct {
	Response     string              `json:"response"`
	Rule         *rules.Rule         `json:"structured_rule,omitempty"`
	Conflicts    []analysis.Conflict `json:"conflicts"`
	Impact       analysis.Impact     `json:"impact_analysis,omitempty"`
	DRL          string              `json:"drl_content,omitempty"`
	GDST         string              `json:"gdst_content,omitempty"`
	Verification *drools.Result      `json:"verification_result,omitempty"`
	Messages     []string            `json:"messages"`
	Error        string              `json:"error,omitempty"`
}

func resultFrom(st *State) Result {
	return Result{
		Response:     st.FinalResponse,
		Rule:         st.Rule,
		Conflicts:    st.Conflicts,
		Impact:       st.Impact,
		DRL:          st.DRL,
		GDST:         st.GDST,
		Verification: st.Verification,
		Messages:     st.Messages,
		Error:        st.ErrorMessage,
	}
}
