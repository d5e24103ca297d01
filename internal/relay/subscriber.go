package relay

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
	"github.com/nextlevelbuilder/hiveclaw/internal/config"
	"github.com/nextlevelbuilder/hiveclaw/internal/transcript"
)

const pollInterval = 500 * time.Millisecond

// Subscriber polls the relay directory and feeds sibling-agent messages
// into the inbound bus as bot-originated group traffic.
type Subscriber struct {
	relay       *Relay
	msgBus      *bus.MessageBus
	registry    *config.GroupRegistry
	transcripts *transcript.Store
	agentName   string
	selfBotID   string // this agent's channel identity (open_id)
	processed   *processedSet
}

// NewSubscriber wires a subscriber for one agent.
func NewSubscriber(r *Relay, msgBus *bus.MessageBus, registry *config.GroupRegistry,
	transcripts *transcript.Store, agentName, selfBotID string) *Subscriber {
	return &Subscriber{
		relay:       r,
		msgBus:      msgBus,
		registry:    registry,
		transcripts: transcripts,
		agentName:   agentName,
		selfBotID:   selfBotID,
		processed:   newProcessedSet(5000),
	}
}

// Run polls until the context is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	slog.Info("relay subscriber started", "agent", s.agentName)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			envs, err := s.relay.ReadNew(s.agentName)
			if err != nil {
				slog.Warn("relay poll failed", "error", err)
				continue
			}
			for _, env := range envs {
				s.handle(env)
			}
		}
	}
}

func (s *Subscriber) handle(env Envelope) {
	// An id-less envelope cannot be deduplicated; marking "" would make
	// the dedup set swallow every later one too.
	if env.RelayMsgID == "" {
		return
	}
	if s.processed.Seen(env.RelayMsgID) {
		return
	}
	// Skip our own publishes; they were already recorded at send time.
	if env.SenderAgentName == s.agentName ||
		(env.SenderBotOpenID != "" && env.SenderBotOpenID == s.selfBotID) {
		s.processed.Mark(env.RelayMsgID)
		return
	}
	s.processed.Mark(env.RelayMsgID)

	sessionKey := env.Channel + ":" + env.ChatID
	if err := s.transcripts.Append(sessionKey, "assistant", env.Content,
		env.SenderAgentName, env.RelayMsgID, env.Timestamp); err != nil {
		slog.Warn("transcript append failed for relayed message", "error", err)
	}

	msg := bus.InboundMessage{
		Channel:  env.Channel,
		SenderID: env.SenderBotOpenID,
		ChatID:   env.ChatID,
		Content:  env.Content,
		Metadata: s.buildMetadata(env),
	}
	s.msgBus.PublishInbound(msg)
}

// buildMetadata reconstructs routing metadata for a relayed message. The
// publisher's own metadata is advisory only: mention state is always
// recomputed from the content against this agent's identity, since the
// sender could not know who it was mentioning from another process's
// perspective.
func (s *Subscriber) buildMetadata(env Envelope) map[string]string {
	md := map[string]string{
		bus.MetaFromBot:         "true",
		bus.MetaSenderAgentName: env.SenderAgentName,
		bus.MetaMessageID:       env.RelayMsgID,
		bus.MetaChatType:        bus.ChatTypeGroup,
		bus.MetaGroupPolicy:     bus.GroupPolicyAuto,
	}
	if v := env.Metadata[bus.MetaChatType]; v != "" {
		md[bus.MetaChatType] = v
	}
	if v := env.Metadata[bus.MetaGroupPolicy]; v != "" {
		md[bus.MetaGroupPolicy] = v
	}

	if s.mentionsSelf(env.Content) {
		md[bus.MetaIsMentioned] = "true"
	} else {
		md[bus.MetaIsMentioned] = "false"
	}

	peers := s.registry.PeersExcluding(s.selfBotID)
	if len(peers) > 0 {
		refs := make([]bus.MemberRef, 0, len(peers))
		for _, p := range peers {
			refs = append(refs, bus.MemberRef{
				Name:        p.Name,
				Type:        p.Type,
				Description: p.Description,
			})
		}
		if encoded := bus.EncodeMembers(refs); encoded != "" {
			md[bus.MetaGroupMembers] = encoded
		}
	}
	return md
}

// mentionsSelf checks the relayed content for a mention of this agent,
// either a textual "@Name" or a channel mention marker carrying our
// bot identity.
func (s *Subscriber) mentionsSelf(content string) bool {
	name := s.agentName
	if m, ok := s.registry.FindByID(s.selfBotID); ok && m.Name != "" {
		name = m.Name
	}
	if name != "" && strings.Contains(content, "@"+name) {
		return true
	}
	if s.selfBotID != "" && strings.Contains(content, "<at id=\""+s.selfBotID+"\"") {
		return true
	}
	return false
}
