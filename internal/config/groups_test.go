package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeGroups(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groups.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGroupRegistryLoad(t *testing.T) {
	path := writeGroups(t, `[
		{"name": "Alice", "open_id": "ou_alice", "type": "bot", "description": "research"},
		{"name": "Bob", "channel_id": "ch_bob", "type": "bot"},
		{"name": "Dana", "open_id": "ou_dana", "type": "human"}
	]`)

	r := NewGroupRegistry(path)
	members := r.Members()
	if len(members) != 3 {
		t.Fatalf("Members() returned %d, want 3", len(members))
	}
	if members[0].ID() != "ou_alice" {
		t.Errorf("open_id identity = %q", members[0].ID())
	}
	if members[1].ID() != "ch_bob" {
		t.Errorf("channel_id fallback = %q", members[1].ID())
	}
}

func TestGroupRegistryMissingFile(t *testing.T) {
	r := NewGroupRegistry(filepath.Join(t.TempDir(), "groups.json"))
	if got := r.Members(); len(got) != 0 {
		t.Errorf("missing file yielded %d members", len(got))
	}
}

func TestGroupRegistryReloadKeepsOldOnError(t *testing.T) {
	path := writeGroups(t, `[{"name": "Alice", "open_id": "ou_alice", "type": "bot"}]`)
	r := NewGroupRegistry(path)
	if len(r.Members()) != 1 {
		t.Fatal("initial load failed")
	}

	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err == nil {
		t.Error("Reload of malformed file returned nil error")
	}
	if len(r.Members()) != 1 {
		t.Error("malformed reload dropped the previous members")
	}
}

func TestPeersExcluding(t *testing.T) {
	path := writeGroups(t, `[
		{"name": "Alice", "open_id": "ou_alice", "type": "bot"},
		{"name": "Bob", "open_id": "ou_bob", "type": "bot"},
		{"name": "NoID", "type": "human"}
	]`)
	r := NewGroupRegistry(path)

	peers := r.PeersExcluding("ou_alice")
	if len(peers) != 1 || peers[0].Name != "Bob" {
		t.Errorf("PeersExcluding = %+v, want only Bob", peers)
	}
}

func TestFindByID(t *testing.T) {
	path := writeGroups(t, `[{"name": "Alice", "open_id": "ou_alice", "type": "bot"}]`)
	r := NewGroupRegistry(path)

	if m, ok := r.FindByID("ou_alice"); !ok || m.Name != "Alice" {
		t.Errorf("FindByID(ou_alice) = %+v, %v", m, ok)
	}
	if _, ok := r.FindByID("ou_missing"); ok {
		t.Error("FindByID found a nonexistent member")
	}
	if _, ok := r.FindByID(""); ok {
		t.Error("FindByID matched the empty ID")
	}
}
