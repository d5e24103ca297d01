// Package transcript keeps a per-chat append-only record of everything
// the agent saw or said, independent of the LLM-facing session history.
// The relay subscriber and group routing read it for cross-bot context.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nextlevelbuilder/hiveclaw/internal/config"
)

// Entry is one transcript record.
type Entry struct {
	Role      string `json:"role"` // "user" or "assistant"
	Content   string `json:"content"`
	Sender    string `json:"sender,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// Store appends transcript entries to one JSONL file per session key.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a transcript store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Append writes one entry. tsMillis <= 0 means now.
func (s *Store) Append(sessionKey, role, content, sender, messageID string, tsMillis int64) error {
	if tsMillis <= 0 {
		tsMillis = time.Now().UnixMilli()
	}
	entry := Entry{
		Role:      role,
		Content:   content,
		Sender:    sender,
		MessageID: messageID,
		Timestamp: tsMillis,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal transcript entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create transcripts dir: %w", err)
	}
	f, err := os.OpenFile(s.pathFor(sessionKey), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

// GetRecent returns the last n entries for a session, deduplicated by
// message_id (first occurrence wins) and ordered by timestamp. n <= 0
// returns everything.
func (s *Store) GetRecent(sessionKey string, n int) ([]Entry, error) {
	entries, err := s.readAll(sessionKey)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	out := entries[:0:0]
	for _, e := range entries {
		if e.MessageID != "" {
			if seen[e.MessageID] {
				continue
			}
			seen[e.MessageID] = true
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })

	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

// CountTrailingAssistants counts consecutive assistant entries at the tail
// of the deduplicated, time-ordered transcript. This is the cross-bot
// analogue of the session's trailing-bot count: every relayed bot message
// lands here as role=assistant.
func (s *Store) CountTrailingAssistants(sessionKey string, maxScan int) (int, error) {
	if maxScan <= 0 {
		maxScan = 30
	}
	entries, err := s.GetRecent(sessionKey, maxScan)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Role != "assistant" {
			break
		}
		count++
	}
	return count, nil
}

func (s *Store) pathFor(sessionKey string) string {
	return filepath.Join(s.dir, config.SafeFilename(sessionKey)+".jsonl")
}

// readAll loads every complete line of the transcript. Malformed lines
// (including a partially written tail) are skipped rather than failing
// the whole read.
func (s *Store) readAll(sessionKey string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.pathFor(sessionKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
