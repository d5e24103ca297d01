package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/hiveclaw/internal/agent"
	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
	"github.com/nextlevelbuilder/hiveclaw/internal/channels"
	"github.com/nextlevelbuilder/hiveclaw/internal/channels/cli"
	"github.com/nextlevelbuilder/hiveclaw/internal/channels/feishu"
	"github.com/nextlevelbuilder/hiveclaw/internal/config"
	"github.com/nextlevelbuilder/hiveclaw/internal/cron"
	"github.com/nextlevelbuilder/hiveclaw/internal/providers"
	"github.com/nextlevelbuilder/hiveclaw/internal/relay"
	"github.com/nextlevelbuilder/hiveclaw/internal/routing"
	"github.com/nextlevelbuilder/hiveclaw/internal/sessions"
	"github.com/nextlevelbuilder/hiveclaw/internal/tools"
	"github.com/nextlevelbuilder/hiveclaw/internal/tracing"
	"github.com/nextlevelbuilder/hiveclaw/internal/transcript"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent",
		Run: func(cmd *cobra.Command, args []string) {
			runAgent()
		},
	}
}

func runAgent() {
	setupLogging()

	paths := config.NewPaths(homeDir, resolveAgentName())
	if err := paths.EnsureLayout(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prepare %s: %v\n", paths.AgentDir(), err)
		os.Exit(1)
	}

	cfg, err := config.Load(paths.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Provider.APIKey == "" {
		fmt.Fprintln(os.Stderr, "No API key configured. Run 'hiveclaw onboard' first.")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, paths.AgentName,
		cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.TracesEnabled)
	if err != nil {
		slog.Warn("tracing init failed, continuing without", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	provider := providers.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model)
	model := cfg.Provider.Model
	if model == "" {
		model = provider.DefaultModel()
	}

	msgBus := bus.NewMessageBus()
	registry := config.NewGroupRegistry(paths.GroupsPath())
	sessionMgr := sessions.NewManager(paths.SessionsDir())
	transcripts := transcript.NewStore(paths.TranscriptsDir())
	rly := relay.New(paths.RelayDir(), paths.AgentName)
	cronSvc := cron.NewService(filepath.Join(paths.CronDir(), "jobs.json"), msgBus)

	// Channels. Feishu is probed first so the bot identity is known to
	// routing and the relay subscriber.
	sendRate := float64(cfg.Channels.Feishu.SendRate)
	if sendRate <= 0 {
		sendRate = 5
	}
	chanMgr := channels.NewManager(msgBus, sendRate)

	selfBotID := ""
	if cfg.Channels.Feishu.Enabled {
		fc, err := feishu.New(cfg.Channels.Feishu, msgBus, registry, transcripts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Feishu channel setup failed: %v\n", err)
			os.Exit(1)
		}
		probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if id, err := fc.ProbeBotID(probeCtx); err != nil {
			slog.Warn("feishu bot probe failed, self-detection degraded", "error", err)
		} else {
			selfBotID = id
		}
		cancel()
		chanMgr.Register(fc)
	}
	if cfg.Channels.CLI.Enabled {
		chanMgr.Register(cli.New(msgBus))
	}

	// Tools.
	subagents := agent.NewSubagentManager(provider, model, paths.WorkspaceDir(), msgBus)
	messageTool := tools.NewSendMessageTool(msgBus)
	cronTool := tools.NewCronTool(cronSvc)
	registryTools := tools.NewRegistry()
	registryTools.Register(messageTool)
	registryTools.Register(tools.NewSpawnTool(subagents))
	registryTools.Register(cronTool)

	// Routing.
	router := routing.NewRouter()
	router.AddFilter(routing.NewGroupChatFilter(provider, model, paths.WorkspaceDir(),
		registry, selfBotID, routing.GroupChatOptions{
			MaxBotReplyDepth:     cfg.Agent.MaxBotReplyDepthOrDefault(),
			BotReplyLLMThreshold: cfg.Agent.BotReplyLLMThresholdOrDefault(),
			BotReplyLLMCheck:     cfg.Agent.BotReplyLLMCheckEnabled(),
		}))

	loop := agent.NewLoop(agent.Options{
		Bus:           msgBus,
		Provider:      provider,
		Model:         model,
		Workspace:     paths.WorkspaceDir(),
		Sessions:      sessionMgr,
		Transcripts:   transcripts,
		Relay:         rly,
		Router:        router,
		Registry:      registryTools,
		Subagents:     subagents,
		MessageTool:   messageTool,
		CronTool:      cronTool,
		AgentName:     paths.AgentName,
		SelfBotID:     selfBotID,
		MaxIterations: cfg.Agent.MaxIterationsOrDefault(),
	})

	subscriber := relay.NewSubscriber(rly, msgBus, registry, transcripts,
		paths.AgentName, selfBotID)

	if err := chanMgr.StartAll(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Channel startup failed: %v\n", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return subscriber.Run(gctx) })
	g.Go(func() error { return cronSvc.Run(gctx) })
	g.Go(func() error { return chanMgr.DispatchOutbound(gctx) })
	g.Go(func() error { return registry.Watch(gctx) })

	slog.Info("hiveclaw running", "agent", paths.AgentName, "home", paths.Home)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("runtime stopped with error", "error", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	chanMgr.StopAll(stopCtx)
	subagents.Wait()
	if err := shutdownTracing(stopCtx); err != nil {
		slog.Warn("tracing shutdown failed", "error", err)
	}
}
