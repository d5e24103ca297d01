package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
	"github.com/nextlevelbuilder/hiveclaw/internal/providers"
)

// SubagentManager runs background tasks spawned by the LLM. Each run is a
// plain provider conversation (no tools) whose result is announced back to
// the origin chat through a system inbound message, so the main loop can
// summarize it in context.
type SubagentManager struct {
	provider  providers.Provider
	model     string
	workspace string
	msgBus    *bus.MessageBus

	mu      sync.Mutex
	channel string
	chatID  string
	active  sync.WaitGroup
}

// NewSubagentManager creates the manager.
func NewSubagentManager(provider providers.Provider, model, workspace string,
	msgBus *bus.MessageBus) *SubagentManager {
	return &SubagentManager{
		provider:  provider,
		model:     model,
		workspace: workspace,
		msgBus:    msgBus,
	}
}

// SetOrigin records where spawn results should be announced.
func (m *SubagentManager) SetOrigin(channel, chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channel = channel
	m.chatID = chatID
}

// Spawn starts a background run and returns its id immediately.
func (m *SubagentManager) Spawn(ctx context.Context, task, label string) (string, error) {
	if task == "" {
		return "", fmt.Errorf("subagent: empty task")
	}

	m.mu.Lock()
	channel, chatID := m.channel, m.chatID
	m.mu.Unlock()
	if channel == "" || chatID == "" {
		return "", fmt.Errorf("subagent: no origin chat set")
	}

	id := uuid.NewString()[:8]
	if label == "" {
		label = id
	}

	m.active.Add(1)
	go func() {
		defer m.active.Done()
		// Detached from the triggering request so the run survives it.
		m.run(context.WithoutCancel(ctx), id, label, task, channel, chatID)
	}()
	return id, nil
}

// Wait blocks until all background runs finish. Used on shutdown.
func (m *SubagentManager) Wait() { m.active.Wait() }

func (m *SubagentManager) run(ctx context.Context, id, label, task, channel, chatID string) {
	slog.Info("subagent started", "id", id, "label", label)

	resp, err := m.provider.Chat(ctx, providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: "You are a background task runner. Complete the task and report the result concisely."},
			{Role: "user", Content: task},
		},
		Model: m.model,
	})

	var report string
	if err != nil {
		slog.Warn("subagent failed", "id", id, "error", err)
		report = fmt.Sprintf("Subagent '%s' failed: %v", label, err)
	} else {
		report = fmt.Sprintf("Subagent '%s' finished. Result:\n%s", label, resp.Content)
	}

	m.msgBus.PublishInbound(bus.InboundMessage{
		Channel:  "system",
		SenderID: "subagent:" + label,
		ChatID:   channel + ":" + chatID,
		Content:  report,
	})
}
