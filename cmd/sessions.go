package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/hiveclaw/internal/config"
	"github.com/nextlevelbuilder/hiveclaw/internal/sessions"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored sessions",
	}
	cmd.AddCommand(sessionsListCmd(), sessionsClearCmd())
	return cmd
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List session keys",
		Run: func(cmd *cobra.Command, args []string) {
			paths := config.NewPaths(homeDir, resolveAgentName())
			mgr := sessions.NewManager(paths.SessionsDir())
			keys, err := mgr.List()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to list sessions: %v\n", err)
				os.Exit(1)
			}
			if len(keys) == 0 {
				fmt.Println("No sessions.")
				return
			}
			for _, key := range keys {
				s := mgr.GetOrCreate(key)
				fmt.Printf("%s  (%d messages, updated %s)\n",
					key, len(s.Messages), s.UpdatedAt.Format("2006-01-02 15:04"))
			}
		},
	}
}

func sessionsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <key>",
		Short: "Delete one session",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			paths := config.NewPaths(homeDir, resolveAgentName())
			mgr := sessions.NewManager(paths.SessionsDir())
			if err := mgr.Delete(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to delete session: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Deleted %s\n", args[0])
		},
	}
}
