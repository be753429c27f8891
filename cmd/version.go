package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rulesmith/rulesmith/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runVersion(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(out io.Writer) error {
	fmt.Fprintf(out, "Rulesmith %s\n", Version)
	fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
	fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
	fmt.Fprintln(out)

	// Load fails fast on a missing key, so that case is reported as key
	// status rather than a config failure.
	cfg, err := config.Load()
	if errors.Is(err, config.ErrMissingAPIKey) {
		fmt.Fprintln(out, "Configuration:")
		fmt.Fprintln(out, "  GEMINI_API_KEY: Not set")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Hint: Please set GEMINI_API_KEY environment variable")
		fmt.Fprintln(out, "  export GEMINI_API_KEY=your-api-key")
		return nil
	}
	if err != nil {
		fmt.Fprintf(out, "Configuration: unavailable (%v)\n", err)
		return nil
	}

	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Model: %s\n", cfg.ModelName)
	fmt.Fprintf(out, "  Embedder: %s\n", cfg.EmbedderModel)
	fmt.Fprintf(out, "  Industry: %s\n", cfg.DefaultIndustry)
	fmt.Fprintf(out, "  Storage: %s\n", cfg.StorageBackend)
	fmt.Fprintf(out, "  Data dir: %s\n", cfg.DataDir)
	fmt.Fprintf(out, "  GEMINI_API_KEY: %s (configured)\n", maskKey(os.Getenv("GEMINI_API_KEY")))

	return nil
}

// maskKey shortens a secret to its first and last four characters.
// Keys too short to mask meaningfully are fully hidden.
func maskKey(key string) string {
	if len(key) < 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
