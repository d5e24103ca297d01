package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/hiveclaw/internal/providers"
	"github.com/nextlevelbuilder/hiveclaw/internal/tools"
)

func TestBuildSystemPrompt(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "AGENTS.md"), []byte("# Alice\nResearch agent."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "SOUL.md"), []byte("Calm and precise."), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewContextBuilder(ws)
	prompt := c.BuildSystemPrompt([]string{"\n\nEXTRA SECTION"})

	if !strings.Contains(prompt, "Research agent.") {
		t.Error("prompt missing AGENTS.md content")
	}
	if !strings.Contains(prompt, "Calm and precise.") {
		t.Error("prompt missing SOUL.md content")
	}
	if strings.Index(prompt, "Research agent.") > strings.Index(prompt, "Calm and precise.") {
		t.Error("persona files out of order")
	}
	if !strings.Contains(prompt, "Current time:") {
		t.Error("prompt missing the current time")
	}
	if !strings.HasSuffix(prompt, "EXTRA SECTION") {
		t.Error("extras not appended at the end")
	}
}

func TestBuildSystemPromptFallback(t *testing.T) {
	c := NewContextBuilder(t.TempDir())
	prompt := c.BuildSystemPrompt(nil)
	if !strings.Contains(prompt, "You are a helpful AI assistant.") {
		t.Errorf("empty workspace prompt = %q", prompt)
	}
}

func TestBuildMessages(t *testing.T) {
	c := NewContextBuilder(t.TempDir())
	history := []providers.Message{
		{Role: "user", Content: "earlier"},
		{Role: "assistant", Content: "noted"},
	}
	msgs := c.BuildMessages(history, "current question",
		nil, []string{"[System] group reminder"})

	if len(msgs) != 4 {
		t.Fatalf("BuildMessages returned %d messages, want 4", len(msgs))
	}
	if msgs[0].Role != "system" {
		t.Errorf("first message role = %q", msgs[0].Role)
	}
	if msgs[1].Content != "earlier" || msgs[2].Content != "noted" {
		t.Error("history not threaded through")
	}
	last := msgs[3]
	if last.Role != "user" {
		t.Errorf("last message role = %q", last.Role)
	}
	if !strings.HasPrefix(last.Content, "[System] group reminder\n\n") {
		t.Errorf("reminder not prepended: %q", last.Content)
	}
	if !strings.HasSuffix(last.Content, "current question") {
		t.Errorf("current message missing: %q", last.Content)
	}
}

func TestAddToolResult(t *testing.T) {
	msgs := AddAssistantMessage(nil, "thinking", []providers.ToolCall{{ID: "t1", Name: "echo"}})
	msgs = AddToolResult(msgs, "t1", tools.NewResult("echoed"))

	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].Role != "assistant" || len(msgs[0].ToolCalls) != 1 {
		t.Errorf("assistant turn = %+v", msgs[0])
	}
	if msgs[1].Role != "tool" || msgs[1].ToolCallID != "t1" || msgs[1].Content != "echoed" {
		t.Errorf("tool turn = %+v", msgs[1])
	}
}
