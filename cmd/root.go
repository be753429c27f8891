// Package cmd provides the rulesmith CLI commands.
//
// Commands:
//   - (default) / chat: interactive REPL over the rule workflow
//   - kb: knowledge-base builds and status
//   - rules: stored-rule listing, history, generation, CSV import
//   - serve: JSON HTTP API server with graceful shutdown
//   - version: build and configuration information
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rulesmith/rulesmith/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "rulesmith",
	Short: "Rulesmith - conversational business rules assistant",
	Long: `Rulesmith turns plain-language business rule descriptions into structured
rules, checks them against the rules you already have, and generates
Drools DRL and GDST files for the clean ones.

Running rulesmith with no arguments starts the interactive chat mode.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// industryFlag overrides the configured default industry for analysis.
// Persistent so both the bare root invocation and `rulesmith chat`
// accept it.
var industryFlag string

func init() {
	rootCmd.PersistentFlags().StringVar(&industryFlag, "industry", "",
		"industry profile for conflict and impact analysis (default from config)")
}

// Execute runs the root command. The logger is installed once here so
// every command inherits it.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	return rootCmd.Execute()
}

// checkRequiredEnv verifies the environment the model client needs.
// Genkit reads GEMINI_API_KEY directly, so a missing key would
// otherwise surface as an opaque init failure.
func checkRequiredEnv() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Rulesmith needs a Gemini API key for parsing, analysis, and generation.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "To set your API key:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Get your API key at: https://ai.google.dev/")

		return fmt.Errorf("GEMINI_API_KEY not set")
	}
	return nil
}
