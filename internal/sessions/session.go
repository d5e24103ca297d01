// Package sessions stores per-conversation message logs, including the
// bot-origin tags that drive bot-to-bot depth accounting.
package sessions

import (
	"time"

	"github.com/nextlevelbuilder/hiveclaw/internal/providers"
)

// Sender types recorded on user entries. Absent means human.
const (
	SenderHuman  = "human"
	SenderBot    = "bot"
	SenderSystem = "system"
)

const defaultTrailingScan = 30

// Message is one session entry. Role is "user" or "assistant"; assistant
// entries are always this agent's own replies and carry no sender tag.
type Message struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	SenderType string    `json:"sender_type,omitempty"`
	Sender     string    `json:"sender,omitempty"`
}

// PromptEntry is the richer history view used by the routing LLM prompt.
type PromptEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Sender  string `json:"sender,omitempty"`
}

// Session is a conversation log keyed by "<channel>:<chat_id>".
// Owned by one Manager in one process; the agent loop is the only
// mutator, so no lock lives here.
type Session struct {
	Key       string         `json:"key"`
	Messages  []Message      `json:"messages"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewSession creates an empty session.
func NewSession(key string) *Session {
	now := time.Now()
	return &Session{
		Key:       key,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]any{},
	}
}

// Add appends an entry with no sender tag (assistant turns, plain user turns).
func (s *Session) Add(role, content string) {
	s.AddFrom(role, content, "", "")
}

// AddFrom appends an entry with a fresh timestamp. Timestamps within a
// session never decrease, even if the wall clock steps backwards.
func (s *Session) AddFrom(role, content, senderType, sender string) {
	ts := time.Now()
	if n := len(s.Messages); n > 0 && ts.Before(s.Messages[n-1].Timestamp) {
		ts = s.Messages[n-1].Timestamp
	}
	s.Messages = append(s.Messages, Message{
		Role:       role,
		Content:    content,
		Timestamp:  ts,
		SenderType: senderType,
		Sender:     sender,
	})
	s.UpdatedAt = ts
}

// CountTrailingBots counts consecutive bot-originated entries at the tail:
// each assistant entry plus each user entry tagged sender_type="bot".
// Scanning stops at the first entry that is neither (human or system user
// turns reset the chain). maxScan <= 0 scans the default 30 entries.
func (s *Session) CountTrailingBots(maxScan int) int {
	if maxScan <= 0 {
		maxScan = defaultTrailingScan
	}
	recent := s.Messages
	if len(recent) > maxScan {
		recent = recent[len(recent)-maxScan:]
	}

	count := 0
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		switch {
		case m.Role == "assistant":
			count++
		case m.Role == "user" && m.SenderType == SenderBot:
			count++
		default:
			return count
		}
	}
	return count
}

// History returns the most recent n entries in LLM format (role + content
// only). n <= 0 uses 50.
func (s *Session) History(n int) []providers.Message {
	if n <= 0 {
		n = 50
	}
	recent := s.Messages
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	out := make([]providers.Message, 0, len(recent))
	for _, m := range recent {
		out = append(out, providers.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// RecentForPrompt returns the most recent n entries in the transcript-like
// shape the routing prompt wants:
//
//	assistant           → role=assistant, sender="self"
//	user + bot sender   → role=assistant, sender=<agent name>
//	user (human/system) → role=user, sender=""
//
// n <= 0 uses 20.
func (s *Session) RecentForPrompt(n int) []PromptEntry {
	if n <= 0 {
		n = 20
	}
	recent := s.Messages
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	out := make([]PromptEntry, 0, len(recent))
	for _, m := range recent {
		switch {
		case m.Role == "assistant":
			out = append(out, PromptEntry{Role: "assistant", Content: m.Content, Sender: "self"})
		case m.Role == "user" && m.SenderType == SenderBot:
			out = append(out, PromptEntry{Role: "assistant", Content: m.Content, Sender: m.Sender})
		default:
			out = append(out, PromptEntry{Role: "user", Content: m.Content})
		}
	}
	return out
}

// Clear drops all messages.
func (s *Session) Clear() {
	s.Messages = []Message{}
	s.UpdatedAt = time.Now()
}
