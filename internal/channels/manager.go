package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
)

// Manager owns the registered channels: lifecycle plus outbound dispatch.
type Manager struct {
	msgBus   *bus.MessageBus
	limiter  *rate.Limiter
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewManager creates a manager. sendRate caps outbound messages per second
// across all channels; <= 0 disables limiting.
func NewManager(msgBus *bus.MessageBus, sendRate float64) *Manager {
	var limiter *rate.Limiter
	if sendRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(sendRate), 1)
	}
	return &Manager{
		msgBus:   msgBus,
		limiter:  limiter,
		channels: make(map[string]Channel),
	}
}

// Register adds a channel. Later registrations with the same name replace
// earlier ones.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// Get returns a channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// StartAll starts every registered channel. The first failure aborts.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("start channel %s: %w", name, err)
		}
		slog.Info("channel started", "channel", name)
	}
	return nil
}

// StopAll stops every channel, logging failures rather than aborting.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			slog.Warn("channel stop failed", "channel", name, "error", err)
		}
	}
}

// DispatchOutbound consumes the outbound queue and fans messages out to
// their channels until the context is cancelled.
func (m *Manager) DispatchOutbound(ctx context.Context) error {
	for {
		msg, ok := m.msgBus.ConsumeOutbound(ctx)
		if !ok {
			return ctx.Err()
		}
		if IsInternalChannel(msg.Channel) {
			continue
		}

		ch, found := m.Get(msg.Channel)
		if !found {
			slog.Warn("outbound for unknown channel", "channel", msg.Channel)
			continue
		}

		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := ch.Send(ctx, msg); err != nil {
			slog.Error("outbound send failed", "channel", msg.Channel,
				"chat", msg.ChatID, "error", err)
		}
	}
}
