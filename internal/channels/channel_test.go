package channels

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
)

func TestBaseChannelHandleMessage(t *testing.T) {
	msgBus := bus.NewMessageBus()
	c := NewBaseChannel("testchan", msgBus)

	c.HandleMessage("sender1", "chat1", "hello", map[string]string{"k": "v"})

	msg, ok := msgBus.ConsumeInbound(context.Background(), time.Second)
	if !ok {
		t.Fatal("no inbound message published")
	}
	if msg.Channel != "testchan" || msg.SenderID != "sender1" || msg.ChatID != "chat1" {
		t.Errorf("inbound = %+v", msg)
	}
	if msg.Metadata["k"] != "v" {
		t.Errorf("metadata not passed through: %+v", msg.Metadata)
	}
}

func TestBaseChannelRunningState(t *testing.T) {
	c := NewBaseChannel("testchan", nil)
	if c.IsRunning() {
		t.Error("new channel reports running")
	}
	c.SetRunning(true)
	if !c.IsRunning() {
		t.Error("SetRunning(true) not reflected")
	}
}

func TestIsInternalChannel(t *testing.T) {
	if !IsInternalChannel("system") {
		t.Error("system should be internal")
	}
	if IsInternalChannel("feishu") {
		t.Error("feishu should not be internal")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 7, "this is..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestDedupCache(t *testing.T) {
	d := NewDedupCache(2, 4)

	if d.SeenOrRecord("a") {
		t.Error("first sighting reported as seen")
	}
	if !d.SeenOrRecord("a") {
		t.Error("second sighting not reported as seen")
	}
}

func TestDedupCacheTrimsOldest(t *testing.T) {
	d := NewDedupCache(2, 4)
	for i := 0; i < 5; i++ {
		d.SeenOrRecord(fmt.Sprintf("id%d", i))
	}

	// After exceeding high=4, the cache keeps the newest low=2 entries.
	if d.SeenOrRecord("id0") {
		t.Error("oldest entry survived the trim")
	}
	if !d.SeenOrRecord("id4") {
		t.Error("newest entry was trimmed")
	}
}
