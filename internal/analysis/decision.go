package analysis

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rulesmith/rulesmith/internal/rules"
)

// ActionGenerate marks a generation request for the rule-language
// generator.
const ActionGenerate = "generate_drl_gdst"

// requesterName identifies this agent in generation requests.
const requesterName = "analysis"

// GenerationRequest is the envelope handed to the rule-language
// generator when orchestration approves a rule.
type GenerationRequest struct {
	Action    string     `json:"action"`
	RuleData  rules.Rule `json:"rule_data"`
	Timestamp time.Time  `json:"timestamp"`
	Requester string     `json:"requester"`
}

// Decision is the orchestration gate outcome. Request is non-nil
// exactly when Proceed is true.
type Decision struct {
	Proceed bool
	Message string
	Request *GenerationRequest
}

// Decide gates rule generation on the conflict list: any conflict
// blocks, a clean rule yields a generation request. Deterministic, no
// model call, no I/O.
func Decide(proposed rules.Rule, conflicts []Conflict) Decision {
	if len(conflicts) > 0 {
		return Decision{Message: "Cannot proceed with conflicts. Please resolve them first."}
	}
	return Decision{
		Proceed: true,
		Message: "Proceeding with rule generation...",
		Request: &GenerationRequest{
			Action:    ActionGenerate,
			RuleData:  proposed,
			Timestamp: time.Now(),
			Requester: requesterName,
		},
	}
}

// DecisionObserver is notified after orchestration approves a rule for
// generation. Observer failures stay the observer's own; the decision
// itself never depends on one.
type DecisionObserver interface {
	RuleApproved(req GenerationRequest)
}

// Orchestrator runs the decision gate and fans approvals out to
// observers.
type Orchestrator struct {
	logger    *slog.Logger
	observers []DecisionObserver
}

// NewOrchestrator creates an Orchestrator notifying the given
// observers on every approval.
func NewOrchestrator(logger *slog.Logger, observers ...DecisionObserver) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{logger: logger, observers: observers}
}

// Decide runs the conflict gate and notifies observers when the rule
// is approved.
func (o *Orchestrator) Decide(proposed rules.Rule, conflicts []Conflict) Decision {
	decision := Decide(proposed, conflicts)
	if decision.Proceed && decision.Request != nil {
		for _, obs := range o.observers {
			obs.RuleApproved(*decision.Request)
		}
	}
	return decision
}

// Orchestrate applies a user's go/no-go phrase to a proposed rule.
// Proceed-family phrases run the conflict gate, modify-family phrases
// ask for the modifications, anything else cancels.
func (o *Orchestrator) Orchestrate(userDecision string, proposed rules.Rule, conflicts []Conflict) Decision {
	phrase := strings.ToLower(strings.TrimSpace(userDecision))

	o.logger.Info("orchestration request",
		slog.String("decision", phrase),
		slog.String("rule", proposed.Name),
		slog.Int("conflicts", len(conflicts)))

	switch phrase {
	case "proceed", "yes", "confirm", "apply":
		return o.Decide(proposed, conflicts)
	case "modify", "edit", "change":
		return Decision{Message: "Please provide the modifications you'd like to make."}
	default:
		return Decision{Message: "Rule generation cancelled."}
	}
}

// FileDecisionLog appends one line per approved rule to an audit log
// file. Append failures are logged and swallowed.
type FileDecisionLog struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewFileDecisionLog creates a FileDecisionLog writing to path. Parent
// directories are created on first append.
func NewFileDecisionLog(path string, logger *slog.Logger) *FileDecisionLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileDecisionLog{path: path, logger: logger}
}

// RuleApproved implements DecisionObserver.
func (l *FileDecisionLog) RuleApproved(req GenerationRequest) {
	if err := l.append(req); err != nil {
		l.logger.Warn("could not log orchestration",
			slog.String("path", l.path),
			slog.String("error", err.Error()))
	}
}

func (l *FileDecisionLog) append(req GenerationRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s - Orchestrating rule: %s\n",
		req.Timestamp.Format(time.RFC3339), req.RuleData.Name)
	return err
}
