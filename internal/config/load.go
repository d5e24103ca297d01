package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/titanous/json5"
)

// Load reads an agent config from disk, then overlays env vars.
// A missing file yields defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays credentials from the environment so secrets need not
// live in config.json.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HIVECLAW_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("HIVECLAW_API_BASE"); v != "" {
		cfg.Provider.APIBase = v
	}
	if v := os.Getenv("HIVECLAW_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("HIVECLAW_FEISHU_APP_ID"); v != "" {
		cfg.Channels.Feishu.AppID = v
	}
	if v := os.Getenv("HIVECLAW_FEISHU_APP_SECRET"); v != "" {
		cfg.Channels.Feishu.AppSecret = v
	}
}

// Save writes the config as plain JSON (json5 is accepted on read only).
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
