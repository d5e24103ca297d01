package sessions

import (
	"testing"
	"time"
)

func TestCountTrailingBots(t *testing.T) {
	type entry struct {
		role, senderType string
	}
	tests := []struct {
		name    string
		entries []entry
		maxScan int
		want    int
	}{
		{
			name: "empty session",
			want: 0,
		},
		{
			name:    "single human message",
			entries: []entry{{"user", SenderHuman}},
			want:    0,
		},
		{
			name:    "single assistant reply",
			entries: []entry{{"user", SenderHuman}, {"assistant", ""}},
			want:    1,
		},
		{
			name: "bot exchange chain",
			entries: []entry{
				{"user", SenderHuman},
				{"assistant", ""},
				{"user", SenderBot},
				{"assistant", ""},
				{"user", SenderBot},
			},
			want: 4,
		},
		{
			name: "human message resets the chain",
			entries: []entry{
				{"assistant", ""},
				{"user", SenderBot},
				{"user", SenderHuman},
				{"assistant", ""},
			},
			want: 1,
		},
		{
			name: "system message resets the chain",
			entries: []entry{
				{"assistant", ""},
				{"user", SenderSystem},
				{"user", SenderBot},
			},
			want: 1,
		},
		{
			name:    "untagged user counts as human",
			entries: []entry{{"assistant", ""}, {"user", ""}},
			want:    0,
		},
		{
			name: "scan window caps the count",
			entries: []entry{
				{"assistant", ""}, {"assistant", ""}, {"assistant", ""},
				{"assistant", ""}, {"assistant", ""},
			},
			maxScan: 2,
			want:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("test:chat")
			for _, e := range tt.entries {
				s.AddFrom(e.role, "msg", e.senderType, "")
			}
			if got := s.CountTrailingBots(tt.maxScan); got != tt.want {
				t.Errorf("CountTrailingBots(%d) = %d, want %d", tt.maxScan, got, tt.want)
			}
		})
	}
}

func TestRecentForPromptMapping(t *testing.T) {
	s := NewSession("test:chat")
	s.AddFrom("user", "hello", SenderHuman, "")
	s.Add("assistant", "hi there")
	s.AddFrom("user", "ping from peer", SenderBot, "peerbot")
	s.AddFrom("user", "[System: cron] fire", SenderSystem, "")

	got := s.RecentForPrompt(0)
	want := []PromptEntry{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there", Sender: "self"},
		{Role: "assistant", Content: "ping from peer", Sender: "peerbot"},
		{Role: "user", Content: "[System: cron] fire"},
	}
	if len(got) != len(want) {
		t.Fatalf("RecentForPrompt returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRecentForPromptWindow(t *testing.T) {
	s := NewSession("test:chat")
	for i := 0; i < 30; i++ {
		s.Add("user", "m")
	}
	if got := len(s.RecentForPrompt(0)); got != 20 {
		t.Errorf("default window returned %d entries, want 20", got)
	}
	if got := len(s.RecentForPrompt(5)); got != 5 {
		t.Errorf("explicit window returned %d entries, want 5", got)
	}
}

func TestHistoryWindow(t *testing.T) {
	s := NewSession("test:chat")
	for i := 0; i < 60; i++ {
		s.Add("user", "m")
	}
	if got := len(s.History(0)); got != 50 {
		t.Errorf("default history returned %d entries, want 50", got)
	}
	hist := s.History(3)
	if len(hist) != 3 {
		t.Fatalf("History(3) returned %d entries", len(hist))
	}
	if hist[0].Role != "user" || hist[0].Content != "m" {
		t.Errorf("History entry = %+v", hist[0])
	}
}

func TestTimestampsNeverDecrease(t *testing.T) {
	s := NewSession("test:chat")
	s.Add("user", "a")
	// Simulate a wall-clock step backwards on the stored entry.
	s.Messages[0].Timestamp = time.Now().Add(time.Hour)
	s.Add("assistant", "b")

	if s.Messages[1].Timestamp.Before(s.Messages[0].Timestamp) {
		t.Errorf("second timestamp %v precedes first %v",
			s.Messages[1].Timestamp, s.Messages[0].Timestamp)
	}
}

func TestClear(t *testing.T) {
	s := NewSession("test:chat")
	s.Add("user", "a")
	s.Clear()
	if len(s.Messages) != 0 {
		t.Errorf("Clear left %d messages", len(s.Messages))
	}
}
