package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rulesmith/rulesmith/internal/app"
	"github.com/rulesmith/rulesmith/internal/config"
	"github.com/rulesmith/rulesmith/internal/persist"
	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/versioning"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and manage stored business rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rules",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <rule-id>",
	Short: "Show one rule as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesShow,
}

var rulesHistoryCmd = &cobra.Command{
	Use:   "history <rule-id>",
	Short: "Show a rule's version history",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesHistory,
}

var rulesGenerateCmd = &cobra.Command{
	Use:   "generate <rule-id>",
	Short: "Generate DRL/GDST files for a stored rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesGenerate,
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Extract rules from a CSV file into the store",
	Long: `Import reads a CSV file whose first row is the header, extracts one
structured rule per data row, stores the new ones, and indexes them
into the knowledge base. Rows whose rule IDs already exist are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesImport,
}

// generateDecision is the go/no-go decision applied by rules generate.
var generateDecision string

func init() {
	rulesGenerateCmd.Flags().StringVar(&generateDecision, "decision", "proceed",
		"decision to apply: proceed, modify, or cancel")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesHistoryCmd)
	rulesCmd.AddCommand(rulesGenerateCmd)
	rulesCmd.AddCommand(rulesImportCmd)
	rootCmd.AddCommand(rulesCmd)
}

// openStores hydrates the persisted rule store and version manager
// without touching the model stack, so listing and history work
// offline and without an API key. Anything that parses or generates
// goes through withApp instead.
func openStores(cfg *config.Config) (*rules.Store, *versioning.Manager) {
	logger := slog.Default()
	store := rules.NewStore()
	pm := persist.NewManager(filepath.Join(cfg.DataDir, "sessions"), logger)
	if loaded, msg := pm.LoadRules(store); !loaded {
		logger.Debug("no persisted rules", slog.String("status", msg))
	}
	return store, versioning.NewManager(filepath.Join(cfg.DataDir, "versions"), logger)
}

func runRulesList(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, _ := openStores(cfg)
	list := store.List()
	if len(list) == 0 {
		fmt.Println("No rules stored yet.")
		return nil
	}

	fmt.Printf("%d rule(s):\n", len(list))
	for _, rule := range list {
		fmt.Println("  " + ruleLine(rule))
	}
	return nil
}

func runRulesShow(_ *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, _ := openStores(cfg)
	rule, ok := store.FindByID(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", rules.ErrRuleNotFound, args[0])
	}

	data, err := json.MarshalIndent(rule, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding rule: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runRulesHistory(_ *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	_, versions := openStores(cfg)
	summary := versions.GetSummary(args[0])
	if summary.TotalVersions == 0 {
		fmt.Printf("No version history for %s.\n", args[0])
		return nil
	}

	fmt.Print(formatSummary(summary))
	return nil
}

func runRulesGenerate(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		outcome, err := a.Chat.GenerateForRule(ctx, args[0], generateDecision)
		if err != nil {
			return err
		}

		fmt.Println(outcome.Message)
		if outcome.Artifacts != nil {
			fmt.Printf("DRL:  %s\nGDST: %s\n", outcome.Artifacts.DRLPath, outcome.Artifacts.GDSTPath)
		}
		return nil
	})
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	header, rows, err := readCSV(args[0])
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		outcome, err := a.Chat.ImportRules(ctx, filepath.Base(args[0]), header, rows)
		if err != nil {
			return fmt.Errorf("importing rules: %w", err)
		}

		fmt.Println(outcome.Status)
		for _, rule := range outcome.Rules {
			fmt.Println("  " + ruleLine(rule))
		}
		return nil
	})
}

// readCSV reads path and splits it into a header row and data rows.
// Ragged rows are tolerated; the extractor pads or truncates against
// the header.
func readCSV(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening CSV file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading CSV file: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

// ruleLine renders one rule as a single listing line.
func ruleLine(rule rules.Rule) string {
	version := 1
	if rule.Version != nil {
		version = rule.Version.Version
	}
	state := "active"
	if !rule.Active {
		state = "inactive"
	}
	priority := rule.Priority
	if priority == "" {
		priority = "-"
	}
	return fmt.Sprintf("%-8s v%-3d %-8s %-8s %s", rule.RuleID, version, state, priority, rule.Name)
}

// formatSummary renders a rule's version summary for the terminal,
// change log newest first.
func formatSummary(summary versioning.Summary) string {
	out := fmt.Sprintf("Rule %s: %d version(s), current v%d\n",
		summary.RuleID, summary.TotalVersions, summary.CurrentVersion)
	if summary.CreatedAt != nil {
		out += fmt.Sprintf("Created:       %s\n", summary.CreatedAt.Format(time.RFC3339))
	}
	if summary.LastModified != nil {
		out += fmt.Sprintf("Last modified: %s\n", summary.LastModified.Format(time.RFC3339))
	}

	if len(summary.ChangeHistory) > 0 {
		out += "\nChange history:\n"
	}
	for _, entry := range summary.ChangeHistory {
		when := "unknown"
		if entry.Timestamp != nil {
			when = entry.Timestamp.Format("2006-01-02 15:04:05")
		}
		line := fmt.Sprintf("  v%-3d %s  %-16s %s", entry.Version, when, entry.ChangeType, entry.ChangeSummary)
		if entry.DRLGenerated {
			line += " [drl]"
		}
		out += line + "\n"
	}
	return out
}
