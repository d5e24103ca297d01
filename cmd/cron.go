package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/hiveclaw/internal/config"
	"github.com/nextlevelbuilder/hiveclaw/internal/cron"
)

func cronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Inspect scheduled jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		Run: func(cmd *cobra.Command, args []string) {
			paths := config.NewPaths(homeDir, resolveAgentName())
			svc := cron.NewService(filepath.Join(paths.CronDir(), "jobs.json"), nil)
			jobs := svc.List()
			if len(jobs) == 0 {
				fmt.Println("No scheduled jobs.")
				return
			}
			for _, j := range jobs {
				when := j.Schedule
				if j.At > 0 {
					when = "once at " + time.UnixMilli(j.At).Format(time.RFC3339)
				}
				fmt.Printf("%s  [%s]  %s  (%s:%s)\n", j.ID, when, j.Message, j.Channel, j.ChatID)
			}
		},
	})
	return cmd
}
