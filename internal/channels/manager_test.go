package channels

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
)

// recordingChannel captures sent messages.
type recordingChannel struct {
	name string

	mu      sync.Mutex
	sent    []bus.OutboundMessage
	started bool
}

func (c *recordingChannel) Name() string                    { return c.name }
func (c *recordingChannel) Start(ctx context.Context) error { c.started = true; return nil }
func (c *recordingChannel) Stop(ctx context.Context) error  { return nil }
func (c *recordingChannel) IsRunning() bool                 { return c.started }
func (c *recordingChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *recordingChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestManagerRegisterGet(t *testing.T) {
	m := NewManager(bus.NewMessageBus(), 0)
	ch := &recordingChannel{name: "rec"}
	m.Register(ch)

	if got, ok := m.Get("rec"); !ok || got != Channel(ch) {
		t.Errorf("Get(rec) = %v, %v", got, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get found an unregistered channel")
	}
}

func TestManagerStartAll(t *testing.T) {
	m := NewManager(bus.NewMessageBus(), 0)
	ch := &recordingChannel{name: "rec"}
	m.Register(ch)

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if !ch.started {
		t.Error("channel not started")
	}
}

func TestDispatchOutbound(t *testing.T) {
	msgBus := bus.NewMessageBus()
	m := NewManager(msgBus, 0)
	ch := &recordingChannel{name: "rec"}
	m.Register(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.DispatchOutbound(ctx)

	// One real message, one for the synthetic system channel (skipped),
	// one for a channel nobody registered (logged and dropped).
	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "system", ChatID: "x", Content: "internal"})
	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "ghost", ChatID: "x", Content: "nowhere"})
	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "rec", ChatID: "chat1", Content: "deliver me"})

	deadline := time.Now().Add(5 * time.Second)
	for ch.sentCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if got := ch.sentCount(); got != 1 {
		t.Fatalf("channel received %d messages, want 1", got)
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.sent[0].Content != "deliver me" {
		t.Errorf("delivered = %+v", ch.sent[0])
	}
}
