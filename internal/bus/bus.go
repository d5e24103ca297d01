// Package bus provides the in-process message bus connecting channels
// to the agent loop. Two bounded FIFO queues: many producers, one consumer.
package bus

import (
	"context"
	"time"
)

const defaultQueueSize = 100

// MessageBus carries inbound and outbound messages between the channel
// layer and the agent runtime.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
}

// NewMessageBus creates a bus with bounded queues.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, defaultQueueSize),
		outbound: make(chan OutboundMessage, defaultQueueSize),
	}
}

// PublishInbound enqueues a message from a channel (or the relay subscriber).
// Blocks when the queue is full so producers apply backpressure rather than drop.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	b.inbound <- msg
}

// ConsumeInbound blocks until a message is available, the timeout elapses,
// or the context is cancelled. The second return is false on timeout/cancel,
// letting the consumer re-check its stop condition.
func (b *MessageBus) ConsumeInbound(ctx context.Context, timeout time.Duration) (InboundMessage, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-b.inbound:
		return msg, true
	case <-timer.C:
		return InboundMessage{}, false
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// PublishOutbound enqueues a reply for channel delivery.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	b.outbound <- msg
}

// ConsumeOutbound blocks until an outbound message is available or the
// context is cancelled.
func (b *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

// InboundLen reports the current inbound queue depth. Used by tests and
// the doctor command.
func (b *MessageBus) InboundLen() int { return len(b.inbound) }
