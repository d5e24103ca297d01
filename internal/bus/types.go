package bus

import "encoding/json"

// InboundMessage represents a message received from a channel (Feishu, CLI, etc.)
// or injected by the relay subscriber on behalf of a peer agent.
type InboundMessage struct {
	Channel  string            `json:"channel"`
	SenderID string            `json:"sender_id"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Media    []string          `json:"media,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage represents a message to be delivered by a channel.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Recognised metadata keys. Channels populate these on inbound messages;
// unknown keys pass through untouched.
const (
	MetaChatType        = "chat_type"         // "p2p" or "group"; absent = DM
	MetaIsMentioned     = "is_mentioned"      // "true" when this agent was @mentioned
	MetaGroupPolicy     = "group_policy"      // "mention" | "auto" | "open"
	MetaFromBot         = "from_bot"          // "true" when relay-injected from a peer bot
	MetaSenderAgentName = "sender_agent_name" // display name of the originating bot
	MetaGroupMembers    = "group_members"     // JSON array of MemberRef, excluding self
	MetaMessageID       = "message_id"        // channel-native id for boundary dedup
)

// ChatTypeGroup is the chat_type value for group conversations.
const ChatTypeGroup = "group"

// Group policy values, in escalation order.
const (
	GroupPolicyMention = "mention"
	GroupPolicyAuto    = "auto"
	GroupPolicyOpen    = "open"
)

// MemberRef is the wire form of a group peer inside metadata.
type MemberRef struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "bot" or "human"
	Description string `json:"description,omitempty"`
}

// SessionKey returns the conversation key "<channel>:<chat_id>".
func (m InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// IsGroup reports whether the message came from a group conversation.
// Absent chat_type is treated as DM.
func (m InboundMessage) IsGroup() bool {
	return m.Metadata[MetaChatType] == ChatTypeGroup
}

// FromBot reports whether the message originates from a peer bot.
func (m InboundMessage) FromBot() bool {
	return m.Metadata[MetaFromBot] == "true"
}

// IsMentioned reports whether this agent was explicitly addressed.
// Defaults to false when the key is absent.
func (m InboundMessage) IsMentioned() bool {
	return m.Metadata[MetaIsMentioned] == "true"
}

// GroupPolicy returns the room-level escalation policy, defaulting to "open".
func (m InboundMessage) GroupPolicy() string {
	if p := m.Metadata[MetaGroupPolicy]; p != "" {
		return p
	}
	return GroupPolicyOpen
}

// GroupMembers decodes the group_members metadata entry.
// Returns nil when absent or malformed.
func (m InboundMessage) GroupMembers() []MemberRef {
	raw := m.Metadata[MetaGroupMembers]
	if raw == "" {
		return nil
	}
	var members []MemberRef
	if err := json.Unmarshal([]byte(raw), &members); err != nil {
		return nil
	}
	return members
}

// EncodeMembers serialises peer refs for the group_members metadata entry.
func EncodeMembers(members []MemberRef) string {
	if len(members) == 0 {
		return ""
	}
	data, err := json.Marshal(members)
	if err != nil {
		return ""
	}
	return string(data)
}
