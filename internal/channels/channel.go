// Package channels connects external chat platforms to the agent runtime
// through the message bus.
package channels

import (
	"context"
	"sync"

	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
)

// InternalChannels are synthetic channels excluded from outbound dispatch.
var InternalChannels = map[string]bool{
	"system": true,
}

// IsInternalChannel checks if a channel name is internal.
func IsInternalChannel(name string) bool {
	return InternalChannels[name]
}

// Channel is the interface every platform implementation satisfies.
type Channel interface {
	// Name returns the channel identifier (e.g. "feishu", "cli").
	Name() string

	// Start begins listening for messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning reports whether the channel is actively processing.
	IsRunning() bool
}

// BaseChannel provides the shared plumbing channel implementations embed.
type BaseChannel struct {
	name string
	bus  *bus.MessageBus

	mu      sync.Mutex
	running bool
}

// NewBaseChannel creates a BaseChannel.
func NewBaseChannel(name string, msgBus *bus.MessageBus) *BaseChannel {
	return &BaseChannel{name: name, bus: msgBus}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning reports whether the channel is running.
func (c *BaseChannel) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) {
	c.mu.Lock()
	c.running = running
	c.mu.Unlock()
}

// Bus returns the message bus reference.
func (c *BaseChannel) Bus() *bus.MessageBus { return c.bus }

// HandleMessage publishes an inbound message on behalf of the channel.
func (c *BaseChannel) HandleMessage(senderID, chatID, content string, metadata map[string]string) {
	c.bus.PublishInbound(bus.InboundMessage{
		Channel:  c.name,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
		Metadata: metadata,
	})
}

// Truncate shortens a string to maxLen bytes, appending "..." if cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// DedupCache is a bounded insertion-ordered set of message IDs. When the
// cache grows past high it is trimmed back to low, dropping the oldest.
type DedupCache struct {
	mu    sync.Mutex
	low   int
	high  int
	order []string
	seen  map[string]bool
}

// NewDedupCache creates a cache trimmed to low entries once high is hit.
func NewDedupCache(low, high int) *DedupCache {
	if low <= 0 {
		low = 500
	}
	if high <= low {
		high = low * 2
	}
	return &DedupCache{low: low, high: high, seen: make(map[string]bool)}
}

// SeenOrRecord returns true if id was already recorded, recording it if not.
func (d *DedupCache) SeenOrRecord(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[id] {
		return true
	}
	d.seen[id] = true
	d.order = append(d.order, id)
	if len(d.order) > d.high {
		drop := d.order[:len(d.order)-d.low]
		for _, old := range drop {
			delete(d.seen, old)
		}
		d.order = append([]string(nil), d.order[len(d.order)-d.low:]...)
	}
	return false
}
