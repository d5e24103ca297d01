package sessions

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nextlevelbuilder/hiveclaw/internal/config"
)

// metadataRecord is the first line of every session file.
type metadataRecord struct {
	Type      string         `json:"_type"`
	Key       string         `json:"key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Manager is a cache-through store of sessions persisted as JSONL files,
// one per session key, under the agent's sessions directory.
type Manager struct {
	dir string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager storing sessions in dir.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:      dir,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the cached session for key, loading it from disk on
// first access. An unreadable file logs a warning and yields a fresh
// session rather than failing the message that needed it.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		return s
	}

	s, err := m.load(key)
	if err != nil {
		slog.Warn("session load failed, starting fresh", "session", key, "error", err)
		s = nil
	}
	if s == nil {
		s = NewSession(key)
	}
	m.sessions[key] = s
	return s
}

// Save persists a session atomically (temp file + rename). Unlike loads,
// save errors propagate: losing a write is worth surfacing.
func (m *Manager) Save(s *Session) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	meta := metadataRecord{
		Type:      "metadata",
		Key:       s.Key,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Metadata:  s.Metadata,
	}
	header, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal session metadata: %w", err)
	}

	path := m.pathFor(s.Key)
	tmp, err := os.CreateTemp(m.dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	w.Write(header)
	w.WriteByte('\n')
	for _, msg := range s.Messages {
		line, err := json.Marshal(msg)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("marshal session message: %w", err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}

// List returns the keys of all sessions on disk, cached or not.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		key, err := m.keyOf(e.Name())
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Delete removes a session from the cache and disk.
func (m *Manager) Delete(key string) error {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()

	if err := os.Remove(m.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m *Manager) pathFor(key string) string {
	return filepath.Join(m.dir, config.SafeFilename(key)+".jsonl")
}

// keyOf recovers the session key from a file name by reading the metadata
// header, since SafeFilename is not reversible.
func (m *Manager) keyOf(name string) (string, error) {
	f, err := os.Open(filepath.Join(m.dir, name))
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	if !scanner.Scan() {
		return "", fmt.Errorf("empty session file %s", name)
	}
	var meta metadataRecord
	if err := json.Unmarshal(scanner.Bytes(), &meta); err != nil {
		return "", err
	}
	if meta.Type != "metadata" || meta.Key == "" {
		return "", fmt.Errorf("missing metadata header in %s", name)
	}
	return meta.Key, nil
}

func (m *Manager) load(key string) (*Session, error) {
	f, err := os.Open(m.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	s := NewSession(key)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if first {
			first = false
			var meta metadataRecord
			if err := json.Unmarshal(line, &meta); err == nil && meta.Type == "metadata" {
				if !meta.CreatedAt.IsZero() {
					s.CreatedAt = meta.CreatedAt
				}
				if !meta.UpdatedAt.IsZero() {
					s.UpdatedAt = meta.UpdatedAt
				}
				if meta.Metadata != nil {
					s.Metadata = meta.Metadata
				}
				continue
			}
			// Old format with no header: fall through and parse as message.
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, fmt.Errorf("parse session line: %w", err)
		}
		s.Messages = append(s.Messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
