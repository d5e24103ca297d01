// Package relay fans agent replies out to sibling agent processes on the
// same host through append-only JSONL files. Each chat has one relay file;
// each agent tracks its own read offset, so delivery is at-least-once and
// subscribers deduplicate.
package relay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/hiveclaw/internal/config"
)

// Envelope is one relayed message.
type Envelope struct {
	RelayMsgID      string            `json:"relay_msg_id"`
	Channel         string            `json:"channel"`
	ChatID          string            `json:"chat_id"`
	Content         string            `json:"content"`
	SenderBotOpenID string            `json:"sender_bot_open_id"`
	SenderAgentName string            `json:"sender_agent_name"`
	Timestamp       int64             `json:"timestamp"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Relay publishes to and reads from the shared relay directory. One Relay
// per agent process; the directory is shared by all agents on the host.
type Relay struct {
	dir       string
	agentName string

	mu sync.Mutex
}

// New creates a relay rooted at dir (normally <home>/relay).
func New(dir, agentName string) *Relay {
	return &Relay{dir: dir, agentName: agentName}
}

// Publish appends an envelope for a chat. The relay message ID embeds the
// sender, chat and time so duplicates are self-describing in the file.
func (r *Relay) Publish(channel, chatID, content, senderBotOpenID string, metadata map[string]string) error {
	now := time.Now()
	env := Envelope{
		RelayMsgID: fmt.Sprintf("%s:%s:%d:%s",
			r.agentName, chatID, now.UnixMilli(), uuid.NewString()[:8]),
		Channel:         channel,
		ChatID:          chatID,
		Content:         content,
		SenderBotOpenID: senderBotOpenID,
		SenderAgentName: r.agentName,
		Timestamp:       now.UnixMilli(),
		Metadata:        metadata,
	}
	line, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal relay envelope: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create relay dir: %w", err)
	}
	f, err := os.OpenFile(r.chatPath(channel, chatID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open relay file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append relay envelope: %w", err)
	}
	return nil
}

// ReadNew returns every complete envelope appended to any chat since this
// subscriber's last read, and advances the subscriber's offsets. A torn
// tail line (a concurrent writer mid-append) is left for the next poll.
func (r *Relay) ReadNew(subscriberID string) ([]Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(r.dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}

	var out []Envelope
	for _, path := range files {
		envs, err := r.readFile(path, subscriberID)
		if err != nil {
			return nil, err
		}
		out = append(out, envs...)
	}
	return out, nil
}

func (r *Relay) readFile(path, subscriberID string) ([]Envelope, error) {
	offset := r.loadOffset(path, subscriberID)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	// Truncated or replaced file: start over.
	if offset > info.Size() {
		offset = 0
	}
	if offset == info.Size() {
		return nil, nil
	}

	if _, err := f.Seek(offset, 0); err != nil {
		return nil, err
	}
	data, err := readAllFrom(f)
	if err != nil {
		return nil, err
	}

	// Only consume through the last complete line.
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, nil
	}
	chunk := data[:end+1]

	var out []Envelope
	for _, line := range bytes.Split(chunk, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			continue
		}
		out = append(out, env)
	}

	if err := r.saveOffset(path, subscriberID, offset+int64(len(chunk))); err != nil {
		return nil, err
	}
	return out, nil
}

func readAllFrom(f *os.File) ([]byte, error) {
	var buf bytes.Buffer
	reader := bufio.NewReader(f)
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// chatPath maps a chat to its relay file.
func (r *Relay) chatPath(channel, chatID string) string {
	return filepath.Join(r.dir, config.SafeFilename(channel+":"+chatID)+".jsonl")
}

func (r *Relay) offsetPath(relayFile, subscriberID string) string {
	base := strings.TrimSuffix(filepath.Base(relayFile), ".jsonl")
	return filepath.Join(r.dir, "offsets",
		config.SafeFilename(subscriberID)+"--"+base+".offset")
}

// loadOffset reads a subscriber's byte offset. Missing or corrupt offset
// files restart from zero; dedup upstream absorbs the replay.
func (r *Relay) loadOffset(relayFile, subscriberID string) int64 {
	data, err := os.ReadFile(r.offsetPath(relayFile, subscriberID))
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (r *Relay) saveOffset(relayFile, subscriberID string, offset int64) error {
	path := r.offsetPath(relayFile, subscriberID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(offset, 10)), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
