package cron

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
)

func newTestService(t *testing.T) (*Service, *bus.MessageBus, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.json")
	msgBus := bus.NewMessageBus()
	return NewService(path, msgBus), msgBus, path
}

func TestAddValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		name string
		job  Job
	}{
		{"missing message", Job{Channel: "cli", ChatID: "direct", Schedule: "* * * * *"}},
		{"missing target", Job{Message: "x", Schedule: "* * * * *"}},
		{"no schedule or at", Job{Message: "x", Channel: "cli", ChatID: "direct"}},
		{"invalid schedule", Job{Message: "x", Channel: "cli", ChatID: "direct", Schedule: "bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Add(tt.job); err == nil {
				t.Errorf("Add(%+v) succeeded, want error", tt.job)
			}
		})
	}
}

func TestAddPersists(t *testing.T) {
	svc, _, path := newTestService(t)

	added, err := svc.Add(Job{
		Message:  "standup",
		Channel:  "feishu",
		ChatID:   "oc_1",
		Schedule: "0 9 * * 1-5",
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added.ID == "" || added.CreatedAt == 0 {
		t.Errorf("added job missing identity: %+v", added)
	}

	// Restarted service loads the same job from disk.
	reloaded := NewService(path, bus.NewMessageBus())
	jobs := reloaded.List()
	if len(jobs) != 1 || jobs[0].ID != added.ID {
		t.Errorf("reloaded jobs = %+v", jobs)
	}
}

func TestRemove(t *testing.T) {
	svc, _, _ := newTestService(t)
	added, err := svc.Add(Job{Message: "x", Channel: "cli", ChatID: "direct", Schedule: "* * * * *"})
	if err != nil {
		t.Fatal(err)
	}

	removed, err := svc.Remove(added.ID)
	if err != nil || !removed {
		t.Errorf("Remove = %v, %v", removed, err)
	}
	removed, err = svc.Remove("missing")
	if err != nil || removed {
		t.Errorf("Remove missing = %v, %v", removed, err)
	}
}

func TestFireDueOneShot(t *testing.T) {
	svc, msgBus, _ := newTestService(t)
	_, err := svc.Add(Job{
		Name:    "reminder",
		Message: "ping",
		Channel: "feishu",
		ChatID:  "oc_1",
		At:      time.Now().Add(-time.Minute).UnixMilli(),
	})
	if err != nil {
		t.Fatal(err)
	}

	svc.fireDue(time.Now())

	msg, ok := msgBus.ConsumeInbound(context.Background(), time.Second)
	if !ok {
		t.Fatal("due one-shot job did not publish")
	}
	if msg.Channel != "system" {
		t.Errorf("channel = %q, want system", msg.Channel)
	}
	if msg.ChatID != "feishu:oc_1" {
		t.Errorf("chat id = %q, want origin-qualified", msg.ChatID)
	}
	if !strings.HasPrefix(msg.SenderID, "cron:") {
		t.Errorf("sender id = %q", msg.SenderID)
	}
	if msg.Metadata[bus.MetaSenderAgentName] != "reminder" {
		t.Errorf("sender name = %q", msg.Metadata[bus.MetaSenderAgentName])
	}

	// One-shot jobs are removed after firing.
	if jobs := svc.List(); len(jobs) != 0 {
		t.Errorf("one-shot job survived firing: %+v", jobs)
	}
}

func TestFireDueFutureOneShot(t *testing.T) {
	svc, msgBus, _ := newTestService(t)
	if _, err := svc.Add(Job{
		Message: "later",
		Channel: "cli",
		ChatID:  "direct",
		At:      time.Now().Add(time.Hour).UnixMilli(),
	}); err != nil {
		t.Fatal(err)
	}

	svc.fireDue(time.Now())
	if n := msgBus.InboundLen(); n != 0 {
		t.Errorf("future job fired early, %d messages", n)
	}
	if jobs := svc.List(); len(jobs) != 1 {
		t.Errorf("future job dropped: %+v", jobs)
	}
}

func TestRecurringFiresOncePerMinute(t *testing.T) {
	svc, msgBus, _ := newTestService(t)
	if _, err := svc.Add(Job{
		Message:  "tick",
		Channel:  "cli",
		ChatID:   "direct",
		Schedule: "* * * * *",
	}); err != nil {
		t.Fatal(err)
	}

	// Anchor early in a minute so both ticks land in the same one.
	now := time.Now().Truncate(time.Minute).Add(5 * time.Second)
	svc.fireDue(now)
	if n := msgBus.InboundLen(); n != 1 {
		t.Fatalf("first tick published %d messages, want 1", n)
	}

	// Another tick in the same minute is suppressed.
	svc.fireDue(now.Add(20 * time.Second))
	if n := msgBus.InboundLen(); n != 1 {
		t.Errorf("same-minute tick published again, total %d", n)
	}

	// The job survives for the next minute.
	if jobs := svc.List(); len(jobs) != 1 || jobs[0].LastRun == 0 {
		t.Errorf("recurring job state = %+v", jobs)
	}
}
