package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Paths resolves the on-disk layout for one agent plus the host-shared
// coordination files. Built once at startup and threaded through
// constructors; nothing reads a global.
//
//	<home>/<agent>/config.json      agent config
//	<home>/<agent>/workspace/       scratch area exposed to tools
//	<home>/<agent>/sessions/        one JSONL file per session
//	<home>/<agent>/cron/            scheduled-task state
//	<home>/groups.json              shared peer registry
//	<home>/transcripts/             shared group transcripts
//	<home>/relay/*.jsonl            one shared relay log per chat
//	<home>/relay/offsets/           per-subscriber byte offsets
type Paths struct {
	Home      string
	AgentName string
}

// DefaultHome returns ~/.hiveclaw, or $HIVECLAW_HOME when set.
func DefaultHome() string {
	if env := os.Getenv("HIVECLAW_HOME"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hiveclaw"
	}
	return filepath.Join(home, ".hiveclaw")
}

// NewPaths builds a Paths value for one agent.
func NewPaths(home, agentName string) Paths {
	if home == "" {
		home = DefaultHome()
	}
	if agentName == "" {
		agentName = "default"
	}
	return Paths{Home: home, AgentName: agentName}
}

func (p Paths) AgentDir() string       { return filepath.Join(p.Home, p.AgentName) }
func (p Paths) ConfigPath() string     { return filepath.Join(p.AgentDir(), "config.json") }
func (p Paths) WorkspaceDir() string   { return filepath.Join(p.AgentDir(), "workspace") }
func (p Paths) SessionsDir() string    { return filepath.Join(p.AgentDir(), "sessions") }
func (p Paths) CronDir() string        { return filepath.Join(p.AgentDir(), "cron") }
func (p Paths) GroupsPath() string     { return filepath.Join(p.Home, "groups.json") }
func (p Paths) TranscriptsDir() string { return filepath.Join(p.Home, "transcripts") }
func (p Paths) RelayDir() string       { return filepath.Join(p.Home, "relay") }

// EnsureLayout creates the per-agent and shared directories.
func (p Paths) EnsureLayout() error {
	dirs := []string{
		p.AgentDir(),
		p.WorkspaceDir(),
		p.SessionsDir(),
		p.CronDir(),
		p.TranscriptsDir(),
		filepath.Join(p.RelayDir(), "offsets"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// SafeFilename converts a session key to a filesystem-safe name.
// Colons become underscores; anything else unsafe is replaced too.
func SafeFilename(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
