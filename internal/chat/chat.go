// Package chat is the conversational service in front of the rule
// workflow. It owns the per-session state, formats the replies the CLI
// and HTTP surfaces show, forwards audit entries to the persistence
// layer, and carries the two follow-up flows that run outside the
// workflow: impact-only analysis and user-confirmed file generation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rulesmith/rulesmith/internal/analysis"
	"github.com/rulesmith/rulesmith/internal/drools"
	"github.com/rulesmith/rulesmith/internal/knowledge"
	"github.com/rulesmith/rulesmith/internal/llm"
	"github.com/rulesmith/rulesmith/internal/persist"
	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/session"
	"github.com/rulesmith/rulesmith/internal/versioning"
	"github.com/rulesmith/rulesmith/internal/workflow"
)

// Replies for requests the service refuses before reaching a model.
const (
	emptyMessageReply = "Please enter a message."
	noRuleReply       = "No rule to analyze. Please interact with the chat first."
)

// ErrSessionNotFound reports a chat request against an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// ErrNoRule reports a follow-up flow invoked before any rule was parsed
// in the session.
var ErrNoRule = errors.New("no rule available in this session")

// Config contains all required parameters for the chat service.
type Config struct {
	Engine    *workflow.Engine
	Sessions  *session.Store
	Parser    *rules.Parser
	Extractor *rules.TableExtractor
	Analyzer  *analysis.Analyzer
	Decider   *analysis.Orchestrator
	Generator *drools.Generator
	Store     *rules.Store
	Versions  *versioning.Manager
	Persist   *persist.Manager
	KB        knowledge.Base // nil when no knowledge base is configured
	Logger    *slog.Logger

	// ArtifactsDir is where confirmed generation writes the DRL/GDST
	// pair, typically <data_dir>/artifacts.
	ArtifactsDir string
}

func (cfg Config) validate() error {
	if cfg.Engine == nil {
		return errors.New("workflow engine is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.Parser == nil {
		return errors.New("parser is required")
	}
	if cfg.Extractor == nil {
		return errors.New("table extractor is required")
	}
	if cfg.Analyzer == nil {
		return errors.New("analyzer is required")
	}
	if cfg.Decider == nil {
		return errors.New("decider is required")
	}
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.Store == nil {
		return errors.New("rule store is required")
	}
	if cfg.Versions == nil {
		return errors.New("version manager is required")
	}
	if cfg.Persist == nil {
		return errors.New("persistence manager is required")
	}
	if cfg.ArtifactsDir == "" {
		return errors.New("artifacts directory is required")
	}
	return nil
}

// Service runs chat turns and their follow-up flows. All dependencies
// are captured at construction; Service itself holds no mutable state,
// so it is safe for concurrent use.
type Service struct {
	engine    *workflow.Engine
	sessions  *session.Store
	parser    *rules.Parser
	extractor *rules.TableExtractor
	analyzer  *analysis.Analyzer
	decider   *analysis.Orchestrator
	generator *drools.Generator
	store     *rules.Store
	versions  *versioning.Manager
	persist   *persist.Manager
	kb        knowledge.Base
	logger    *slog.Logger

	artifactsDir string
}

// New creates the chat service.
func New(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:       cfg.Engine,
		sessions:     cfg.Sessions,
		parser:       cfg.Parser,
		extractor:    cfg.Extractor,
		analyzer:     cfg.Analyzer,
		decider:      cfg.Decider,
		generator:    cfg.Generator,
		store:        cfg.Store,
		versions:     cfg.Versions,
		persist:      cfg.Persist,
		kb:           cfg.KB,
		logger:       logger,
		artifactsDir: cfg.ArtifactsDir,
	}, nil
}

// Request is one inbound chat message. A zero SessionID starts a new
// session; Industry overrides the session's stored industry when set.
type Request struct {
	SessionID uuid.UUID
	Message   string
	Industry  string
}

// Reply is one chat turn's outcome. Text is the formatted reply with
// the workflow status block; Result carries the raw workflow output
// for API clients that want structure instead of prose.
type Reply struct {
	SessionID uuid.UUID
	Text      string
	Rule      *rules.Rule
	Result    workflow.Result
}

// Chat runs one message through the full workflow: parse, conflict and
// impact analysis, orchestration, and generation when the rule is
// clean. The reply text ends with a workflow status block; a workflow
// error replaces the reply entirely.
func (s *Service) Chat(ctx context.Context, req Request) (Reply, error) {
	sn, err := s.resolveSession(req)
	if err != nil {
		return Reply{}, err
	}

	if strings.TrimSpace(req.Message) == "" {
		return Reply{SessionID: sn.ID, Text: emptyMessageReply}, nil
	}

	result := s.engine.Run(ctx, workflow.Input{
		UserText: req.Message,
		Industry: industryOrDefault(sn.Industry),
		History:  sn.History,
	})

	if result.Error != "" {
		text := fmt.Sprintf(
			"**Workflow encountered an error.**\n\nError: %s\n\nPlease try again or check your configuration.",
			result.Error)
		s.recordTurn(sn.ID, req.Message, text, result.Rule)
		return Reply{SessionID: sn.ID, Text: text, Rule: result.Rule, Result: result}, nil
	}

	text := result.Response + statusBlock(result)
	s.recordTurn(sn.ID, req.Message, text, result.Rule)
	s.auditRun(sn.ID, result)

	return Reply{SessionID: sn.ID, Text: text, Rule: result.Rule, Result: result}, nil
}

// resolveSession loads the request's session, creating one when the ID
// is zero, and applies an industry override.
func (s *Service) resolveSession(req Request) (session.Session, error) {
	if req.SessionID == uuid.Nil {
		return s.sessions.Create(req.Industry), nil
	}

	sn, ok := s.sessions.Get(req.SessionID)
	if !ok {
		return session.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, req.SessionID)
	}
	if req.Industry != "" && req.Industry != sn.Industry {
		if err := s.sessions.Update(sn.ID, func(u *session.Session) {
			u.Industry = req.Industry
		}); err != nil {
			return session.Session{}, err
		}
		sn.Industry = req.Industry
	}
	return sn, nil
}

// recordTurn appends the exchange to the session and remembers the
// parsed rule for the follow-up flows.
func (s *Service) recordTurn(id uuid.UUID, userText, replyText string, rule *rules.Rule) {
	err := s.sessions.Update(id, func(sn *session.Session) {
		sn.History = append(sn.History, llm.Exchange{User: userText, Assistant: replyText})
		if rule != nil {
			sn.LastRule = rule
		}
	})
	if err != nil {
		s.logger.Warn("recording chat turn",
			slog.String("session", id.String()),
			slog.String("error", err.Error()))
	}
}

// auditRun forwards a workflow milestone to the persistent change log.
func (s *Service) auditRun(id uuid.UUID, result workflow.Result) {
	meta := map[string]any{
		"session_id":      id.String(),
		"conflicts_count": len(result.Conflicts),
		"files_generated": result.DRL != "",
	}
	if result.Rule != nil {
		meta["rule_name"] = result.Rule.Name
		if result.Rule.RuleID != "" {
			meta["rule_id"] = result.Rule.RuleID
		}
	}
	if err := s.persist.LogChange(persist.ComponentWorkflow, "Chat workflow run", meta); err != nil {
		s.logger.Warn("recording workflow change log entry",
			slog.String("error", err.Error()))
	}
}

// statusBlock renders the workflow status trailer appended to every
// successful reply.
func statusBlock(result workflow.Result) string {
	var b strings.Builder
	b.WriteString("\n\n---\n**Workflow Status:**\n")

	if result.Rule == nil {
		b.WriteString("Processed via workflow orchestration\n")
		return b.String()
	}

	b.WriteString("Agent 1: Rule parsed successfully\n")
	fmt.Fprintf(&b, "Agent 3: Analyzed %d conflicts\n", len(result.Conflicts))
	if result.DRL != "" {
		b.WriteString("Agent 2: Generated DRL/GDST files\n")
	}
	if result.Verification != nil {
		fmt.Fprintf(&b, "Files verified: %s\n", result.Verification.Detail)
	}
	return b.String()
}
