package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rulesmith/rulesmith/internal/app"
	"github.com/rulesmith/rulesmith/internal/chat"
	"github.com/rulesmith/rulesmith/internal/config"
	"github.com/rulesmith/rulesmith/internal/persist"
	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start interactive chat mode",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = checkRequiredEnv(); err != nil {
		return err
	}

	ctx := cmd.Context()

	a, err := app.Setup(ctx, cfg, app.Options{Logger: slog.Default()})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	industry := industryFlag
	if industry == "" {
		industry = cfg.DefaultIndustry
	}

	r := &repl{
		svc:      a.Chat,
		sessions: a.Sessions,
		store:    a.Rules,
		persist:  a.Persist,
		in:       os.Stdin,
		out:      os.Stdout,
		industry: industry,
	}
	return r.run(ctx)
}

// repl is the interactive chat loop. Input and output are injected so
// tests can drive it with buffers.
type repl struct {
	svc      *chat.Service
	sessions *session.Store
	store    *rules.Store
	persist  *persist.Manager
	in       io.Reader
	out      io.Writer
	industry string
	session  uuid.UUID
}

func (r *repl) run(ctx context.Context) error {
	sn := r.sessions.Create(r.industry)
	r.session = sn.ID

	fmt.Fprintf(r.out, "Rulesmith %s - business rules assistant\n", Version)
	fmt.Fprintln(r.out, "Describe a business rule in plain language, or type /help for commands.")
	fmt.Fprintf(r.out, "Industry: %s | Session: %s\n\n", r.industry, r.session)

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "> ")

		if !scanner.Scan() {
			// EOF (Ctrl+D)
			fmt.Fprintln(r.out, "\nGoodbye!")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if r.handleCommand(ctx, input) {
				break
			}
			continue
		}

		reply, err := r.svc.Chat(ctx, chat.Request{
			SessionID: r.session,
			Message:   input,
			Industry:  r.industry,
		})
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n\n", err)
			continue
		}
		r.session = reply.SessionID

		fmt.Fprintf(r.out, "\n%s\n\n", reply.Text)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// handleCommand runs one slash command. Returns true when the loop
// should exit.
func (r *repl) handleCommand(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case "/help":
		r.printHelp()

	case "/rules":
		r.printRules()

	case "/analyze":
		an, err := r.svc.AnalyzeImpact(ctx, r.session)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n\n", err)
			return false
		}
		fmt.Fprintf(r.out, "\n%s\n\n", an.Text)

	case "/proceed", "/modify", "/cancel":
		r.decide(ctx, strings.TrimPrefix(parts[0], "/"))

	case "/kb":
		r.handleKB(ctx, parts[1:])

	case "/session":
		fmt.Fprintf(r.out, "\n%s\n\n", r.persist.Summary())

	case "/clear":
		sn := r.sessions.Create(r.industry)
		r.session = sn.ID
		fmt.Fprintf(r.out, "Started a new session: %s\n\n", r.session)

	case "/exit", "/quit":
		fmt.Fprintln(r.out, "Goodbye!")
		return true

	default:
		fmt.Fprintf(r.out, "Unknown command: %s\n", parts[0])
		fmt.Fprintln(r.out, "Type /help to see available commands")
		fmt.Fprintln(r.out)
	}

	return false
}

// decide applies a go/no-go decision to the session's last parsed rule.
func (r *repl) decide(ctx context.Context, decision string) {
	outcome, err := r.svc.GenerateFiles(ctx, r.session, decision)
	if errors.Is(err, chat.ErrNoRule) {
		fmt.Fprintln(r.out, "No rule to decide on yet. Describe one in the chat first.")
		fmt.Fprintln(r.out)
		return
	}
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n\n", err)
		return
	}

	fmt.Fprintf(r.out, "\n%s\n", outcome.Message)
	if outcome.Artifacts != nil {
		fmt.Fprintf(r.out, "DRL:  %s\nGDST: %s\n", outcome.Artifacts.DRLPath, outcome.Artifacts.GDSTPath)
	}
	fmt.Fprintln(r.out)
}

// handleKB shows knowledge-base status, or indexes documents when
// called as `/kb add <path> [path...]`.
func (r *repl) handleKB(ctx context.Context, args []string) {
	if len(args) > 0 && args[0] == "add" {
		if len(args) < 2 {
			fmt.Fprintln(r.out, "Usage: /kb add <path> [path...]")
			fmt.Fprintln(r.out)
			return
		}
		result := r.svc.BuildKnowledgeBase(ctx, args[1:])
		fmt.Fprintf(r.out, "\n%s\n\n", result.Status)
		return
	}

	stats, err := r.svc.KnowledgeStats(ctx)
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n\n", err)
		return
	}
	fmt.Fprintf(r.out, "\nKnowledge base: %d chunk(s) from %d source(s)\n", stats.Chunks, len(stats.Sources))
	for _, src := range stats.Sources {
		fmt.Fprintf(r.out, "  - %s\n", src)
	}
	fmt.Fprintln(r.out)
}

func (r *repl) printRules() {
	list := r.store.List()
	if len(list) == 0 {
		fmt.Fprintln(r.out, "No rules stored yet.")
		fmt.Fprintln(r.out)
		return
	}

	fmt.Fprintf(r.out, "\n%d rule(s):\n", len(list))
	for _, rule := range list {
		fmt.Fprintf(r.out, "  %s\n", ruleLine(rule))
	}
	fmt.Fprintln(r.out)
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.out, "Available commands:")
	fmt.Fprintln(r.out, "  /help                Show this help")
	fmt.Fprintln(r.out, "  /rules               List stored rules")
	fmt.Fprintln(r.out, "  /analyze             Analyze the impact of the last parsed rule")
	fmt.Fprintln(r.out, "  /proceed             Approve the last rule and generate DRL/GDST files")
	fmt.Fprintln(r.out, "  /modify              Hold generation and describe changes instead")
	fmt.Fprintln(r.out, "  /cancel              Cancel generation for the last rule")
	fmt.Fprintln(r.out, "  /kb [add <path>...]  Show knowledge-base status or index documents")
	fmt.Fprintln(r.out, "  /session             Show the persisted session summary")
	fmt.Fprintln(r.out, "  /clear               Start a new session")
	fmt.Fprintln(r.out, "  /exit, /quit         Exit rulesmith")
	fmt.Fprintln(r.out, "  Ctrl+D               Exit rulesmith")
	fmt.Fprintln(r.out)
}
