// Package agent implements the core processing loop: consume inbound
// messages, route them, drive the LLM with tools, and publish replies.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
	"github.com/nextlevelbuilder/hiveclaw/internal/providers"
	"github.com/nextlevelbuilder/hiveclaw/internal/relay"
	"github.com/nextlevelbuilder/hiveclaw/internal/routing"
	"github.com/nextlevelbuilder/hiveclaw/internal/sessions"
	"github.com/nextlevelbuilder/hiveclaw/internal/tools"
	"github.com/nextlevelbuilder/hiveclaw/internal/tracing"
	"github.com/nextlevelbuilder/hiveclaw/internal/transcript"
)

const consumeTimeout = 1 * time.Second

const noResponseFallback = "I've completed processing but have no response to give."

// Loop is the single consumer of the inbound bus.
type Loop struct {
	msgBus      *bus.MessageBus
	provider    providers.Provider
	model       string
	sessions    *sessions.Manager
	transcripts *transcript.Store
	relay       *relay.Relay
	router      *routing.Router
	registry    *tools.Registry
	context     *ContextBuilder
	subagents   *SubagentManager

	messageTool *tools.SendMessageTool
	cronTool    *tools.CronTool

	agentName     string
	selfBotID     string
	maxIterations int
}

// Options carries the loop's dependencies.
type Options struct {
	Bus         *bus.MessageBus
	Provider    providers.Provider
	Model       string
	Workspace   string
	Sessions    *sessions.Manager
	Transcripts *transcript.Store
	Relay       *relay.Relay
	Router      *routing.Router
	Registry    *tools.Registry
	Subagents   *SubagentManager

	MessageTool *tools.SendMessageTool
	CronTool    *tools.CronTool

	AgentName     string
	SelfBotID     string
	MaxIterations int
}

// NewLoop wires a loop from its options.
func NewLoop(opts Options) *Loop {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 20
	}
	return &Loop{
		msgBus:        opts.Bus,
		provider:      opts.Provider,
		model:         opts.Model,
		sessions:      opts.Sessions,
		transcripts:   opts.Transcripts,
		relay:         opts.Relay,
		router:        opts.Router,
		registry:      opts.Registry,
		context:       NewContextBuilder(opts.Workspace),
		subagents:     opts.Subagents,
		messageTool:   opts.MessageTool,
		cronTool:      opts.CronTool,
		agentName:     opts.AgentName,
		selfBotID:     opts.SelfBotID,
		maxIterations: opts.MaxIterations,
	}
}

// Run consumes the inbound bus until the context is cancelled. Processing
// errors are reported back to the originating chat, never fatal.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("agent loop started", "agent", l.agentName, "model", l.model)

	for {
		msg, ok := l.msgBus.ConsumeInbound(ctx, consumeTimeout)
		if !ok {
			if ctx.Err() != nil {
				slog.Info("agent loop stopping")
				return ctx.Err()
			}
			continue
		}

		response, err := l.ProcessMessage(ctx, msg)
		if err != nil {
			slog.Error("message processing failed", "channel", msg.Channel,
				"chat", msg.ChatID, "error", err)
			l.msgBus.PublishOutbound(bus.OutboundMessage{
				Channel: msg.Channel,
				ChatID:  msg.ChatID,
				Content: fmt.Sprintf("Sorry, I encountered an error: %v", err),
			})
			continue
		}
		if response != nil {
			l.msgBus.PublishOutbound(*response)
		}
	}
}

// ProcessMessage handles one inbound message end to end. A nil response
// with nil error means the message was skipped by routing.
func (l *Loop) ProcessMessage(ctx context.Context, msg bus.InboundMessage) (*bus.OutboundMessage, error) {
	// Subagent announces and cron fires arrive on the synthetic "system"
	// channel; the chat_id embeds the real destination.
	if msg.Channel == "system" {
		return l.processSystemMessage(ctx, msg)
	}

	session := l.sessions.GetOrCreate(msg.SessionKey())

	if !l.router.ShouldRespond(ctx, msg, session) {
		slog.Info("skipping message", "channel", msg.Channel, "sender", msg.SenderID)
		return nil, nil
	}

	slog.Info("processing message", "channel", msg.Channel, "sender", msg.SenderID,
		"preview", preview(msg.Content, 80))

	ctx, span := tracing.Tracer().Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.name", l.agentName),
		attribute.String("chat.channel", msg.Channel),
		attribute.String("chat.id", msg.ChatID),
	))
	defer span.End()

	l.setToolContext(msg.Channel, msg.ChatID)

	extras := l.router.CollectPromptExtras(msg, session)
	reminders := l.router.CollectUserReminders(msg, session)
	messages := l.context.BuildMessages(session.History(0), msg.Content, extras, reminders)

	final, err := l.runIterations(ctx, messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Tag the user turn so trailing-bot depth accounting works.
	if msg.FromBot() {
		sender := msg.Metadata[bus.MetaSenderAgentName]
		if sender == "" {
			sender = msg.SenderID
		}
		session.AddFrom("user", msg.Content, sessions.SenderBot, sender)
	} else {
		session.AddFrom("user", msg.Content, sessions.SenderHuman, "")
	}
	session.Add("assistant", final)
	if err := l.sessions.Save(session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	// Only group chats carry a shared transcript; DM replies stay in the
	// private session log.
	if msg.IsGroup() {
		if err := l.transcripts.Append(msg.SessionKey(), "assistant", final,
			l.agentName, "", 0); err != nil {
			slog.Warn("transcript append failed", "error", err)
		}
	}

	// Group replies fan out to sibling agents on this host.
	if msg.IsGroup() && l.relay != nil {
		relayMeta := map[string]string{
			bus.MetaChatType:    bus.ChatTypeGroup,
			bus.MetaGroupPolicy: msg.GroupPolicy(),
		}
		if err := l.relay.Publish(msg.Channel, msg.ChatID, final, l.selfBotID, relayMeta); err != nil {
			slog.Warn("relay publish failed", "error", err)
		}
	}

	return &bus.OutboundMessage{
		Channel:  msg.Channel,
		ChatID:   msg.ChatID,
		Content:  final,
		Metadata: msg.Metadata,
	}, nil
}

// processSystemMessage handles announces addressed as "channel:chat_id".
// They bypass routing: the agent always digests its own background results.
func (l *Loop) processSystemMessage(ctx context.Context, msg bus.InboundMessage) (*bus.OutboundMessage, error) {
	originChannel, originChatID, found := strings.Cut(msg.ChatID, ":")
	if !found {
		originChannel, originChatID = "cli", msg.ChatID
	}
	slog.Info("processing system message", "sender", msg.SenderID,
		"origin", originChannel+":"+originChatID)

	ctx, span := tracing.Tracer().Start(ctx, "agent.system", trace.WithAttributes(
		attribute.String("agent.name", l.agentName),
		attribute.String("system.sender", msg.SenderID),
	))
	defer span.End()

	sessionKey := originChannel + ":" + originChatID
	session := l.sessions.GetOrCreate(sessionKey)

	l.setToolContext(originChannel, originChatID)

	messages := l.context.BuildMessages(session.History(0), msg.Content, nil, nil)
	final, err := l.runIterations(ctx, messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if final == noResponseFallback {
		final = "Background task completed."
	}

	session.AddFrom("user", fmt.Sprintf("[System: %s] %s", msg.SenderID, msg.Content),
		sessions.SenderSystem, "")
	session.Add("assistant", final)
	if err := l.sessions.Save(session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return &bus.OutboundMessage{
		Channel: originChannel,
		ChatID:  originChatID,
		Content: final,
	}, nil
}

// runIterations drives the LLM/tool cycle until the model stops calling
// tools or the iteration cap is reached.
func (l *Loop) runIterations(ctx context.Context, messages []providers.Message) (string, error) {
	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		resp, err := l.chat(ctx, iteration, messages)
		if err != nil {
			return "", err
		}

		if !resp.HasToolCalls() {
			if resp.Content == "" {
				break
			}
			return resp.Content, nil
		}

		messages = AddAssistantMessage(messages, resp.Content, resp.ToolCalls)
		for _, tc := range resp.ToolCalls {
			result := l.executeTool(ctx, tc)
			messages = AddToolResult(messages, tc.ID, result)
		}
	}
	return noResponseFallback, nil
}

func (l *Loop) chat(ctx context.Context, iteration int, messages []providers.Message) (*providers.ChatResponse, error) {
	ctx, span := tracing.Tracer().Start(ctx, "llm.chat", trace.WithAttributes(
		attribute.String("llm.model", l.model),
		attribute.Int("llm.iteration", iteration),
	))
	defer span.End()

	resp, err := l.provider.Chat(ctx, providers.ChatRequest{
		Messages: messages,
		Tools:    l.registry.Definitions(),
		Model:    l.model,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("llm call: %w", err)
	}
	if resp.Usage != nil {
		span.SetAttributes(
			attribute.Int("llm.prompt_tokens", resp.Usage.PromptTokens),
			attribute.Int("llm.completion_tokens", resp.Usage.CompletionTokens),
		)
	}
	span.SetAttributes(attribute.String("llm.finish_reason", resp.FinishReason))
	return resp, nil
}

func (l *Loop) executeTool(ctx context.Context, tc providers.ToolCall) *tools.Result {
	argsJSON, _ := json.Marshal(tc.Arguments)
	slog.Info("tool call", "tool", tc.Name, "args", preview(string(argsJSON), 200))

	ctx, span := tracing.Tracer().Start(ctx, "tool."+tc.Name, trace.WithAttributes(
		attribute.String("tool.name", tc.Name),
	))
	defer span.End()

	result := l.registry.Execute(ctx, tc.Name, tc.Arguments)
	if result.IsError {
		span.SetStatus(codes.Error, preview(result.ForLLM, 200))
	}
	return result
}

func (l *Loop) setToolContext(channel, chatID string) {
	if l.messageTool != nil {
		l.messageTool.SetContext(channel, chatID)
	}
	if l.cronTool != nil {
		l.cronTool.SetContext(channel, chatID)
	}
	if l.subagents != nil {
		l.subagents.SetOrigin(channel, chatID)
	}
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
