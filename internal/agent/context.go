package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/hiveclaw/internal/providers"
	"github.com/nextlevelbuilder/hiveclaw/internal/tools"
)

// ContextBuilder assembles the message list for each LLM call: persona
// files from the workspace, routing extras, history, and the current
// message with any reminders in front of it.
type ContextBuilder struct {
	workspace string
}

// NewContextBuilder creates a builder over the agent's workspace.
func NewContextBuilder(workspace string) *ContextBuilder {
	return &ContextBuilder{workspace: workspace}
}

// personaFiles are read from the workspace into the system prompt, in order.
var personaFiles = []string{"AGENTS.md", "SOUL.md", "USER.md"}

// BuildSystemPrompt concatenates workspace persona files, the current
// time, and routing extras.
func (c *ContextBuilder) BuildSystemPrompt(extras []string) string {
	var parts []string
	for _, name := range personaFiles {
		data, err := os.ReadFile(filepath.Join(c.workspace, name))
		if err != nil {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "You are a helpful AI assistant.")
	}

	parts = append(parts, fmt.Sprintf("Current time: %s", time.Now().Format("2006-01-02 15:04 MST")))
	parts = append(parts, fmt.Sprintf("Workspace: %s", c.workspace))

	prompt := strings.Join(parts, "\n\n")
	for _, extra := range extras {
		prompt += extra
	}
	return prompt
}

// BuildMessages produces the full message list for the first LLM call of
// a run. Reminders are prepended to the current message so they occupy
// the highest-attention position.
func (c *ContextBuilder) BuildMessages(history []providers.Message, current string,
	extras, reminders []string) []providers.Message {

	messages := make([]providers.Message, 0, len(history)+2)
	messages = append(messages, providers.Message{
		Role:    "system",
		Content: c.BuildSystemPrompt(extras),
	})
	messages = append(messages, history...)

	content := current
	if len(reminders) > 0 {
		content = strings.Join(reminders, "\n") + "\n\n" + current
	}
	messages = append(messages, providers.Message{Role: "user", Content: content})
	return messages
}

// AddAssistantMessage appends the assistant turn that requested tools.
func AddAssistantMessage(messages []providers.Message, content string,
	toolCalls []providers.ToolCall) []providers.Message {
	return append(messages, providers.Message{
		Role:      "assistant",
		Content:   content,
		ToolCalls: toolCalls,
	})
}

// AddToolResult appends a tool result turn.
func AddToolResult(messages []providers.Message, toolCallID string,
	result *tools.Result) []providers.Message {
	return append(messages, providers.Message{
		Role:       "tool",
		Content:    result.ForLLM,
		ToolCallID: toolCallID,
	})
}
