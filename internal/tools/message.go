package tools

import (
	"context"
	"sync"

	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
)

// SendMessageTool lets the LLM push an extra message to the current chat
// mid-run, before the final reply.
type SendMessageTool struct {
	msgBus *bus.MessageBus

	mu      sync.Mutex
	channel string
	chatID  string
}

// NewSendMessageTool creates the tool. Context (channel, chat) is set by
// the agent loop per message.
func NewSendMessageTool(msgBus *bus.MessageBus) *SendMessageTool {
	return &SendMessageTool{msgBus: msgBus}
}

// SetContext points the tool at the conversation being processed.
func (t *SendMessageTool) SetContext(channel, chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channel = channel
	t.chatID = chatID
}

func (t *SendMessageTool) Name() string { return "message" }
func (t *SendMessageTool) Description() string {
	return "Send a message to the current chat immediately, before your final reply"
}

func (t *SendMessageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "The message text to send",
			},
		},
		"required": []string{"content"},
	}
}

func (t *SendMessageTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	content, _ := args["content"].(string)
	if content == "" {
		return ErrorResult("content is required")
	}

	t.mu.Lock()
	channel, chatID := t.channel, t.chatID
	t.mu.Unlock()
	if channel == "" || chatID == "" {
		return ErrorResult("no active conversation to send to")
	}

	t.msgBus.PublishOutbound(bus.OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: content,
	})
	return NewResult("message sent")
}
