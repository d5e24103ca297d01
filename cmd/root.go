// Package cmd wires the CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/hiveclaw/cmd.Version=v1.0.0"
var Version = "dev"

var (
	agentName string
	homeDir   string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "hiveclaw",
	Short: "HiveClaw — multi-agent chat-bot runtime",
	Long: "HiveClaw runs cooperating chat-bot agents on one host: each agent process " +
		"connects its own channels, shares a group transcript and relay with its " +
		"siblings, and decides per message whether to respond.",
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&agentName, "agent", "", "agent name (default: \"default\" or $HIVECLAW_AGENT)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "data directory (default: ~/.hiveclaw or $HIVECLAW_HOME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(onboardCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(cronCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hiveclaw %s\n", Version)
		},
	}
}

func resolveAgentName() string {
	if agentName != "" {
		return agentName
	}
	if v := os.Getenv("HIVECLAW_AGENT"); v != "" {
		return v
	}
	return "default"
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
