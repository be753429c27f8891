package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rulesmith/rulesmith/internal/app"
	"github.com/rulesmith/rulesmith/internal/config"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the knowledge base",
}

var kbBuildCmd = &cobra.Command{
	Use:   "build <path> [path...]",
	Short: "Index documents into the knowledge base",
	Long: `Build reads the given text or markdown files (directories are walked),
chunks them, embeds the chunks, and merges them into the knowledge base.
Re-indexing a file replaces its previous chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKBBuild,
}

var kbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge-base chunk and source counts",
	Args:  cobra.NoArgs,
	RunE:  runKBStatus,
}

func init() {
	kbCmd.AddCommand(kbBuildCmd)
	kbCmd.AddCommand(kbStatusCmd)
	rootCmd.AddCommand(kbCmd)
}

func runKBBuild(cmd *cobra.Command, args []string) error {
	// Embedding large documents can take a while; Ctrl+C cancels the
	// in-flight batch instead of killing the process mid-write.
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		result := a.Chat.BuildKnowledgeBase(ctx, args)
		fmt.Println(result.Status)
		if !result.OK {
			return fmt.Errorf("no documents were indexed")
		}
		return nil
	})
}

func runKBStatus(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		stats, err := a.Chat.KnowledgeStats(ctx)
		if err != nil {
			return fmt.Errorf("reading knowledge base: %w", err)
		}

		fmt.Printf("Knowledge base: %d chunk(s) from %d source(s)\n", stats.Chunks, len(stats.Sources))
		for _, src := range stats.Sources {
			fmt.Printf("  - %s\n", src)
		}
		return nil
	})
}

// withApp loads configuration, checks the environment, runs fn against
// a fully wired application, and tears it down afterwards.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = checkRequiredEnv(); err != nil {
		return err
	}

	a, err := app.Setup(ctx, cfg, app.Options{Logger: slog.Default()})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	return fn(ctx, a)
}
