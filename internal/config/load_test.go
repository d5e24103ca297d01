package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.APIBase != "https://api.openai.com/v1" {
		t.Errorf("default api base = %q", cfg.Provider.APIBase)
	}
	if !cfg.Channels.CLI.Enabled {
		t.Error("CLI channel not enabled by default")
	}
}

func TestLoadJSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		// comments are allowed
		provider: {
			apiKey: "sk-test",
			model: "gpt-4o",
		},
		agent: {
			maxBotReplyDepth: 5,
		},
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.APIKey != "sk-test" || cfg.Provider.Model != "gpt-4o" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Agent.MaxBotReplyDepthOrDefault() != 5 {
		t.Errorf("maxBotReplyDepth = %d, want 5", cfg.Agent.MaxBotReplyDepthOrDefault())
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{{{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load of malformed config returned nil error")
	}
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("HIVECLAW_API_KEY", "sk-env")
	t.Setenv("HIVECLAW_MODEL", "env-model")

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{provider: {apiKey: "sk-file"}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.APIKey != "sk-env" {
		t.Errorf("env overlay did not win: %q", cfg.Provider.APIKey)
	}
	if cfg.Provider.Model != "env-model" {
		t.Errorf("model overlay = %q", cfg.Provider.Model)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Provider.APIKey = "sk-save"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if loaded.Provider.APIKey != "sk-save" {
		t.Errorf("round trip lost apiKey: %q", loaded.Provider.APIKey)
	}
}

func TestAgentConfigDefaults(t *testing.T) {
	var a AgentConfig
	if got := a.MaxIterationsOrDefault(); got != 20 {
		t.Errorf("MaxIterationsOrDefault = %d", got)
	}
	if got := a.MaxBotReplyDepthOrDefault(); got != 8 {
		t.Errorf("MaxBotReplyDepthOrDefault = %d", got)
	}
	if got := a.BotReplyLLMThresholdOrDefault(); got != 3 {
		t.Errorf("BotReplyLLMThresholdOrDefault = %d", got)
	}
	if !a.BotReplyLLMCheckEnabled() {
		t.Error("BotReplyLLMCheckEnabled default = false, want true")
	}
	off := false
	a.BotReplyLLMCheck = &off
	if a.BotReplyLLMCheckEnabled() {
		t.Error("explicit false ignored")
	}
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"feishu:oc_123", "feishu_oc_123"},
		{"cli:direct", "cli_direct"},
		{"a/b\\c", "a_b_c"},
		{"ok-name.v2", "ok-name.v2"},
		{"中文", "__"},
	}
	for _, tt := range tests {
		if got := SafeFilename(tt.in); got != tt.want {
			t.Errorf("SafeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
