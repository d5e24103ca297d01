// Package feishu implements the Feishu/Lark channel over native HTTP plus
// the event long connection. It carries the group-routing metadata the
// agent loop relies on: chat type, mention state, room policy, and the
// peer registry.
package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
	"github.com/nextlevelbuilder/hiveclaw/internal/channels"
	"github.com/nextlevelbuilder/hiveclaw/internal/config"
	"github.com/nextlevelbuilder/hiveclaw/internal/transcript"
)

// replayBufferMillis tolerates clock skew when dropping events replayed
// from before the agent started.
const replayBufferMillis = 60_000

// Channel connects one agent to Feishu/Lark.
type Channel struct {
	*channels.BaseChannel
	cfg         config.FeishuConfig
	client      *LarkClient
	registry    *config.GroupRegistry
	transcripts *transcript.Store

	botOpenID   string
	dedup       *channels.DedupCache
	startedAtMS int64
	wsClient    *WSClient
}

// New creates the channel. registry and transcripts may be nil; group
// metadata and shared transcripts are then skipped.
func New(cfg config.FeishuConfig, msgBus *bus.MessageBus,
	registry *config.GroupRegistry, transcripts *transcript.Store) (*Channel, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("feishu app_id and app_secret are required")
	}

	domain := resolveDomain(cfg.Domain)
	return &Channel{
		BaseChannel: channels.NewBaseChannel("feishu", msgBus),
		cfg:         cfg,
		client:      NewLarkClient(cfg.AppID, cfg.AppSecret, domain),
		registry:    registry,
		transcripts: transcripts,
		dedup:       channels.NewDedupCache(500, 1000),
	}, nil
}

// ProbeBotID fetches and caches this bot's open_id. Safe to call before
// Start; later calls return the cached value.
func (c *Channel) ProbeBotID(ctx context.Context) (string, error) {
	if c.botOpenID != "" {
		return c.botOpenID, nil
	}
	openID, err := c.client.GetBotInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch bot info: %w", err)
	}
	c.botOpenID = openID
	return openID, nil
}

// Start connects the event long connection.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting feishu/lark bot")

	if _, err := c.ProbeBotID(ctx); err != nil {
		slog.Warn("feishu bot probe failed (mention detection degraded)", "error", err)
	} else {
		slog.Info("feishu bot connected", "bot_open_id", c.botOpenID)
	}

	c.startedAtMS = time.Now().UnixMilli()
	c.SetRunning(true)

	c.wsClient = NewWSClient(c.cfg.AppID, c.cfg.AppSecret, resolveDomain(c.cfg.Domain),
		&wsEventAdapter{ch: c})
	go func() {
		if err := c.wsClient.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("feishu websocket error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the channel down.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping feishu/lark bot")
	if c.wsClient != nil {
		c.wsClient.Stop()
	}
	c.SetRunning(false)
	return nil
}

// Send delivers an outbound message as a markdown card, converting @Name
// tokens to platform mentions first.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("feishu bot not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("empty chat ID for feishu send")
	}
	if msg.Content == "" {
		return nil
	}

	content := c.resolveOutboundMentions(msg.Content)
	card, err := json.Marshal(buildMarkdownCard(content))
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}

	_, err = c.client.SendMessage(ctx, resolveReceiveIDType(msg.ChatID),
		msg.ChatID, "interactive", string(card))
	if err != nil {
		return fmt.Errorf("feishu send: %w", err)
	}
	return nil
}

// wsEventAdapter funnels long-connection payloads into the channel.
type wsEventAdapter struct {
	ch *Channel
}

func (a *wsEventAdapter) HandleEvent(ctx context.Context, payload []byte) error {
	var event MessageEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		slog.Debug("feishu ws: parse event failed", "error", err)
		return nil
	}
	if event.Header.EventType == "im.message.receive_v1" {
		a.ch.handleMessageEvent(ctx, &event)
	}
	return nil
}

func (c *Channel) handleMessageEvent(ctx context.Context, event *MessageEvent) {
	msg := &event.Event.Message
	if msg.MessageID == "" {
		return
	}
	if c.dedup.SeenOrRecord(msg.MessageID) {
		slog.Debug("feishu message deduplicated", "message_id", msg.MessageID)
		return
	}

	senderID := event.Event.Sender.SenderID.OpenID

	// The platform echoes this bot's own sends back as events.
	if c.botOpenID != "" && senderID == c.botOpenID {
		return
	}

	// The long connection replays recent history on reconnect.
	if createMS, err := strconv.ParseInt(msg.CreateTime, 10, 64); err == nil &&
		c.startedAtMS > 0 && createMS < c.startedAtMS-replayBufferMillis {
		slog.Debug("feishu skipping replayed message", "message_id", msg.MessageID)
		return
	}

	isMentioned := false
	for _, m := range msg.Mentions {
		if c.botOpenID != "" && m.ID.OpenID == c.botOpenID {
			isMentioned = true
			break
		}
	}

	policy := c.cfg.GroupPolicy
	if policy == "" {
		policy = bus.GroupPolicyAuto
	}
	if msg.ChatType == "group" && !isMentioned && policy == bus.GroupPolicyMention {
		slog.Debug("feishu skipping non-mentioned group message", "message_id", msg.MessageID)
		return
	}

	content := resolveMentionPlaceholders(parseMessageContent(msg.Content, msg.MessageType), msg.Mentions)
	if content == "" {
		return
	}

	// Mark the message seen; failures here are cosmetic.
	go func() {
		rctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.client.AddReaction(rctx, msg.MessageID, "THUMBSUP"); err != nil {
			slog.Debug("feishu reaction failed", "error", err)
		}
	}()

	if msg.ChatType == "group" && c.transcripts != nil {
		sessionKey := "feishu:" + msg.ChatID
		if err := c.transcripts.Append(sessionKey, "user", content, senderID, msg.MessageID, 0); err != nil {
			slog.Debug("feishu transcript append failed", "error", err)
		}
	}

	metadata := map[string]string{
		bus.MetaMessageID:   msg.MessageID,
		bus.MetaChatType:    msg.ChatType,
		bus.MetaIsMentioned: strconv.FormatBool(isMentioned),
		bus.MetaGroupPolicy: policy,
	}
	if c.registry != nil {
		peers := c.registry.PeersExcluding(c.botOpenID)
		if len(peers) > 0 {
			refs := make([]bus.MemberRef, 0, len(peers))
			for _, p := range peers {
				refs = append(refs, bus.MemberRef{Name: p.Name, Type: p.Type, Description: p.Description})
			}
			if encoded := bus.EncodeMembers(refs); encoded != "" {
				metadata[bus.MetaGroupMembers] = encoded
			}
		}
	}

	// DMs reply to the sender; groups reply to the room.
	replyTo := msg.ChatID
	if msg.ChatType != "group" {
		replyTo = senderID
	}

	slog.Debug("feishu message received",
		"sender_id", senderID,
		"chat_id", msg.ChatID,
		"chat_type", msg.ChatType,
		"mentioned", isMentioned,
		"preview", channels.Truncate(content, 50))

	c.HandleMessage(senderID, replyTo, content, metadata)
}

// resolveOutboundMentions converts "@Name" tokens to the platform's
// mention markup for every registry member with a known open_id.
func (c *Channel) resolveOutboundMentions(text string) string {
	if c.registry == nil {
		return text
	}
	for _, m := range c.registry.Members() {
		if m.Name == "" || m.ID() == "" {
			continue
		}
		pattern, err := regexp.Compile("(?i)@" + regexp.QuoteMeta(m.Name))
		if err != nil {
			continue
		}
		text = pattern.ReplaceAllString(text, fmt.Sprintf("<at id=%s></at>", m.ID()))
	}
	return text
}

var _ channels.Channel = (*Channel)(nil)
