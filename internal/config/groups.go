package config

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// GroupMember is one entry of the shared <home>/groups.json registry:
// a flat JSON array describing every bot and notable human in the host.
type GroupMember struct {
	Name        string `json:"name"`
	OpenID      string `json:"open_id,omitempty"`
	ChannelID   string `json:"channel_id,omitempty"`
	Type        string `json:"type"` // "bot" or "human"
	Description string `json:"description,omitempty"`
}

// ID returns the member's channel identity (open_id, falling back to
// channel_id).
func (m GroupMember) ID() string {
	if m.OpenID != "" {
		return m.OpenID
	}
	return m.ChannelID
}

// GroupRegistry serves the shared peer registry to the routing layer and
// the relay subscriber. The file is owned by the operator; every agent in
// the host reads the same copy, so the registry watches it for changes
// instead of caching a startup snapshot.
type GroupRegistry struct {
	path string

	mu      sync.RWMutex
	members []GroupMember
}

// NewGroupRegistry loads the registry once. A missing or invalid file is
// not fatal; the registry just starts empty.
func NewGroupRegistry(path string) *GroupRegistry {
	r := &GroupRegistry{path: path}
	if err := r.Reload(); err != nil {
		slog.Warn("groups registry initial load failed", "path", path, "error", err)
	}
	return r
}

// Reload re-reads groups.json. Keeps the previous members on error.
func (r *GroupRegistry) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.mu.Lock()
			r.members = nil
			r.mu.Unlock()
			return nil
		}
		return err
	}

	var members []GroupMember
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}

	r.mu.Lock()
	r.members = members
	r.mu.Unlock()
	return nil
}

// Members returns a copy of all registry entries.
func (r *GroupRegistry) Members() []GroupMember {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]GroupMember, len(r.members))
	copy(out, r.members)
	return out
}

// PeersExcluding returns every member with a channel identity other than
// selfID. This is what goes into group_members metadata.
func (r *GroupRegistry) PeersExcluding(selfID string) []GroupMember {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []GroupMember
	for _, m := range r.members {
		if m.ID() == "" || m.ID() == selfID {
			continue
		}
		out = append(out, m)
	}
	return out
}

// FindByID looks a member up by channel identity.
func (r *GroupRegistry) FindByID(id string) (GroupMember, bool) {
	if id == "" {
		return GroupMember{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.ID() == id {
			return m, true
		}
	}
	return GroupMember{}, false
}

// Watch reloads the registry whenever groups.json changes, until the
// context is cancelled. Watches the parent directory so atomic
// write-then-rename updates are seen.
func (r *GroupRegistry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		return err
	}

	target := filepath.Base(r.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.Reload(); err != nil {
				slog.Warn("groups registry reload failed", "error", err)
			} else {
				slog.Debug("groups registry reloaded", "members", len(r.Members()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("groups registry watch error", "error", err)
		}
	}
}
