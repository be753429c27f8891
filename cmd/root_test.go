package cmd

import (
	"testing"

	"github.com/spf13/cobra"
)

func hasSubcommand(parent *cobra.Command, name string) bool {
	for _, sub := range parent.Commands() {
		if sub.Name() == name {
			return true
		}
	}
	return false
}

func TestCommandRegistration(t *testing.T) {
	if rootCmd.Use != "rulesmith" {
		t.Errorf("root command Use = %q, want %q", rootCmd.Use, "rulesmith")
	}
	if !rootCmd.HasSubCommands() {
		t.Fatal("root command has no subcommands")
	}

	for _, name := range []string{"chat", "kb", "rules", "serve", "version"} {
		if !hasSubcommand(rootCmd, name) {
			t.Errorf("root command missing %q subcommand", name)
		}
	}
}

func TestKBSubcommands(t *testing.T) {
	for _, name := range []string{"build", "status"} {
		if !hasSubcommand(kbCmd, name) {
			t.Errorf("kb command missing %q subcommand", name)
		}
	}
}

func TestRulesSubcommands(t *testing.T) {
	for _, name := range []string{"list", "show", "history", "generate", "import"} {
		if !hasSubcommand(rulesCmd, name) {
			t.Errorf("rules command missing %q subcommand", name)
		}
	}
}

func TestIndustryFlagRegistered(t *testing.T) {
	if rootCmd.PersistentFlags().Lookup("industry") == nil {
		t.Error("root command missing persistent --industry flag")
	}
}
