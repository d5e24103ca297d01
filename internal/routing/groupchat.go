package routing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
	"github.com/nextlevelbuilder/hiveclaw/internal/config"
	"github.com/nextlevelbuilder/hiveclaw/internal/providers"
	"github.com/nextlevelbuilder/hiveclaw/internal/sessions"
)

// GroupChatFilter gates group-chat messages. It enforces the room policy,
// limits bot-to-bot reply chains by depth, and falls back to a cheap LLM
// relevance call when static rules cannot decide. Non-group messages
// abstain so DM traffic is unaffected.
type GroupChatFilter struct {
	provider  providers.Provider
	model     string
	workspace string
	registry  *config.GroupRegistry
	selfBotID string

	maxBotReplyDepth     int
	botReplyLLMThreshold int
	botReplyLLMCheck     bool
}

// GroupChatOptions carries the tunables for NewGroupChatFilter.
type GroupChatOptions struct {
	MaxBotReplyDepth     int  // chain length at which bot replies hard-stop
	BotReplyLLMThreshold int  // depth up to which a mention auto-responds
	BotReplyLLMCheck     bool // consult the LLM beyond the threshold
}

// NewGroupChatFilter builds the filter. registry may be nil when no
// groups.json exists; self-description then falls back to workspace files.
func NewGroupChatFilter(provider providers.Provider, model, workspace string,
	registry *config.GroupRegistry, selfBotID string, opts GroupChatOptions) *GroupChatFilter {
	if opts.MaxBotReplyDepth <= 0 {
		opts.MaxBotReplyDepth = 8
	}
	if opts.BotReplyLLMThreshold <= 0 {
		opts.BotReplyLLMThreshold = 3
	}
	return &GroupChatFilter{
		provider:             provider,
		model:                model,
		workspace:            workspace,
		registry:             registry,
		selfBotID:            selfBotID,
		maxBotReplyDepth:     opts.MaxBotReplyDepth,
		botReplyLLMThreshold: opts.BotReplyLLMThreshold,
		botReplyLLMCheck:     opts.BotReplyLLMCheck,
	}
}

// ShouldRespond applies the group gating rules.
func (f *GroupChatFilter) ShouldRespond(ctx context.Context, msg bus.InboundMessage, session *sessions.Session) Decision {
	if !msg.IsGroup() {
		return Abstain
	}

	fromBot := msg.FromBot()
	mentioned := msg.IsMentioned()
	policy := msg.GroupPolicy()

	if fromBot {
		depth := 1
		if session != nil {
			depth = session.CountTrailingBots(0) + 1
		}
		slog.Debug("group filter: bot message", "depth", depth, "mentioned", mentioned)
		if depth >= f.maxBotReplyDepth {
			slog.Debug("group filter: depth limit reached", "depth", depth, "max", f.maxBotReplyDepth)
			return Skip
		}
		if !mentioned {
			return Skip
		}
		if depth <= f.botReplyLLMThreshold || !f.botReplyLLMCheck {
			return Respond
		}
	} else {
		if policy == bus.GroupPolicyOpen || mentioned {
			return Respond
		}
	}

	if f.llmShouldRespond(ctx, msg, session, fromBot) {
		return Respond
	}
	return Skip
}

// UserReminder injects the group discipline note for group messages.
func (f *GroupChatFilter) UserReminder(msg bus.InboundMessage, session *sessions.Session) string {
	if !msg.IsGroup() {
		return ""
	}
	return userReminderGroup
}

// PromptExtras injects the member list and mention rules into the system
// prompt. Mention rules vary by source: strict for human-originated
// messages, task-focused for bot relays.
func (f *GroupChatFilter) PromptExtras(msg bus.InboundMessage, session *sessions.Session) string {
	if !msg.IsGroup() {
		return ""
	}
	members := msg.GroupMembers()
	if len(members) == 0 {
		return ""
	}

	var lines []string
	firstBot := ""
	for _, m := range members {
		label := "@" + m.Name
		if m.Type != "human" {
			label += " (bot)"
			if firstBot == "" {
				firstBot = m.Name
			}
		}
		if m.Description != "" {
			label += " - " + m.Description
		}
		lines = append(lines, "- "+label)
	}

	mentionHint := ""
	if firstBot != "" {
		mentionHint = " (e.g. @" + firstBot + ")"
	}

	rulesTemplate := mentionRulesFromUser
	if msg.FromBot() {
		rulesTemplate = mentionRulesFromBot
	}

	return fmt.Sprintf("\n\n%s\nOther members in this group chat:\n%s\n\n%s",
		groupMembersHeader,
		strings.Join(lines, "\n"),
		fmt.Sprintf(rulesTemplate, mentionHint))
}

// llmShouldRespond makes a single cheap relevance call. The answer is the
// last YES/NO in the combined reasoning+content text; an unusable answer
// or a failed call falls back to responding for humans and staying quiet
// for bots.
func (f *GroupChatFilter) llmShouldRespond(ctx context.Context, msg bus.InboundMessage,
	session *sessions.Session, fromBot bool) bool {

	defaultRespond := !fromBot

	senderHint := "A user (did NOT @mention you)"
	if fromBot {
		senderHint = "Another bot"
	}

	prompt := fmt.Sprintf(groupRoutingPrompt,
		f.selfDescription(msg.GroupMembers()),
		f.peersDescription(msg.GroupMembers()),
		senderHint,
		truncate(msg.Content, 300),
		historyBlurb(session),
		groupRoutingRules)

	temp := 0.0
	resp, err := f.provider.Chat(ctx, providers.ChatRequest{
		Messages:    []providers.Message{{Role: "user", Content: prompt}},
		Model:       f.model,
		MaxTokens:   64,
		Temperature: &temp,
	})
	if err != nil {
		slog.Warn("group filter: relevance call failed", "error", err, "default", defaultRespond)
		return defaultRespond
	}

	combined := strings.TrimSpace(strings.TrimSpace(resp.ReasoningContent) + "\n" + strings.TrimSpace(resp.Content))
	answer := strings.ToUpper(combined)
	if answer == "" {
		return defaultRespond
	}
	should := strings.Contains(answer, "YES") &&
		(!strings.Contains(answer, "NO") ||
			strings.LastIndex(answer, "YES") > strings.LastIndex(answer, "NO"))
	slog.Debug("group filter: relevance verdict", "from_bot", fromBot,
		"answer", truncate(answer, 60), "respond", should)
	return should
}

// selfDescription describes this agent for the relevance prompt, from the
// shared registry when possible, else from the workspace persona files.
func (f *GroupChatFilter) selfDescription(peers []bus.MemberRef) string {
	if f.registry != nil {
		if m, ok := f.registry.FindByID(f.selfBotID); ok {
			if m.Description != "" {
				return m.Name + ": " + m.Description
			}
			if m.Name != "" {
				return m.Name
			}
		}
		// Registry entry without a matching id: the self entry is whichever
		// bot is absent from the peer list.
		peerNames := make(map[string]bool, len(peers))
		for _, p := range peers {
			peerNames[p.Name] = true
		}
		for _, m := range f.registry.Members() {
			if m.Type == "bot" && !peerNames[m.Name] {
				if m.Description != "" {
					return m.Name + ": " + m.Description
				}
				return m.Name
			}
		}
	}

	var parts []string
	for _, name := range []string{"AGENTS.md", "SOUL.md"} {
		data, err := os.ReadFile(filepath.Join(f.workspace, name))
		if err != nil {
			continue
		}
		parts = append(parts, truncate(string(data), 300))
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}
	return "a helpful AI assistant"
}

func (f *GroupChatFilter) peersDescription(peers []bus.MemberRef) string {
	if len(peers) == 0 {
		return ""
	}
	var lines []string
	for _, m := range peers {
		mtype := m.Type
		if mtype == "" {
			mtype = "bot"
		}
		entry := fmt.Sprintf("- %s (%s)", m.Name, mtype)
		if m.Description != "" {
			entry += ": " + m.Description
		}
		lines = append(lines, entry)
	}
	return "\nOther members in this group:\n" + strings.Join(lines, "\n")
}

func historyBlurb(session *sessions.Session) string {
	if session == nil {
		return ""
	}
	recent := session.RecentForPrompt(20)
	if len(recent) == 0 {
		return ""
	}
	if len(recent) > 8 {
		recent = recent[len(recent)-8:]
	}
	var lines []string
	for _, e := range recent {
		label := e.Role
		if e.Sender != "" {
			label += " (" + e.Sender + ")"
		}
		lines = append(lines, "  "+label+": "+truncate(e.Content, 100))
	}
	return "\nRecent:\n" + strings.Join(lines, "\n") + "\n\n"
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
