package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/hiveclaw/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactive first-time setup",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runOnboard(); err != nil {
				fmt.Fprintf(os.Stderr, "Onboarding failed: %v\n", err)
				os.Exit(1)
			}
		},
	}
}

func runOnboard() error {
	paths := config.NewPaths(homeDir, resolveAgentName())
	if err := paths.EnsureLayout(); err != nil {
		return err
	}

	cfg, err := config.Load(paths.ConfigPath())
	if err != nil {
		return err
	}

	apiKey := cfg.Provider.APIKey
	apiBase := cfg.Provider.APIBase
	model := cfg.Provider.Model
	enableFeishu := cfg.Channels.Feishu.Enabled
	feishuAppID := cfg.Channels.Feishu.AppID
	feishuSecret := cfg.Channels.Feishu.AppSecret

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API key").
				Description("Key for your OpenAI-compatible provider").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("api key is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("API base URL").
				Description("Leave as-is for OpenAI").
				Value(&apiBase),
			huh.NewInput().
				Title("Model").
				Value(&model),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable Feishu/Lark channel?").
				Value(&enableFeishu),
			huh.NewInput().
				Title("Feishu App ID").
				Value(&feishuAppID),
			huh.NewInput().
				Title("Feishu App Secret").
				EchoMode(huh.EchoModePassword).
				Value(&feishuSecret),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	cfg.AgentName = paths.AgentName
	cfg.Provider.APIKey = strings.TrimSpace(apiKey)
	cfg.Provider.APIBase = strings.TrimSpace(apiBase)
	cfg.Provider.Model = strings.TrimSpace(model)
	cfg.Channels.Feishu.Enabled = enableFeishu
	cfg.Channels.Feishu.AppID = strings.TrimSpace(feishuAppID)
	cfg.Channels.Feishu.AppSecret = strings.TrimSpace(feishuSecret)

	if err := config.Save(cfg, paths.ConfigPath()); err != nil {
		return err
	}

	seedWorkspace(paths)

	fmt.Printf("Config written to %s\n", paths.ConfigPath())
	fmt.Println("Start the agent with: hiveclaw run")
	return nil
}

// seedWorkspace drops a starter persona file so the agent has an identity
// before the user customizes anything.
func seedWorkspace(paths config.Paths) {
	agentsPath := filepath.Join(paths.WorkspaceDir(), "AGENTS.md")
	if _, err := os.Stat(agentsPath); err == nil {
		return
	}
	starter := fmt.Sprintf("# %s\n\nYou are %s, a helpful assistant.\n",
		paths.AgentName, paths.AgentName)
	_ = os.WriteFile(agentsPath, []byte(starter), 0o644)
}
