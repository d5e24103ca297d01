// Package config holds the agent configuration schema, the json5 loader,
// path resolution, and the shared peer registry.
package config

// Config is the root configuration for one HiveClaw agent process.
type Config struct {
	AgentName string          `json:"agentName,omitempty"`
	Provider  ProviderConfig  `json:"provider"`
	Agent     AgentConfig     `json:"agent"`
	Channels  ChannelsConfig  `json:"channels"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// ProviderConfig points the agent at an OpenAI-compatible endpoint.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	APIBase string `json:"apiBase,omitempty"`
	Model   string `json:"model,omitempty"`
}

// AgentConfig tunes the processing loop and group routing.
type AgentConfig struct {
	MaxIterations        int   `json:"maxIterations,omitempty"`
	MaxBotReplyDepth     int   `json:"maxBotReplyDepth,omitempty"`
	BotReplyLLMThreshold int   `json:"botReplyLlmThreshold,omitempty"`
	BotReplyLLMCheck     *bool `json:"botReplyLlmCheck,omitempty"`
}

// MaxIterationsOrDefault returns the tool-iteration cap (default 20).
func (a AgentConfig) MaxIterationsOrDefault() int {
	if a.MaxIterations > 0 {
		return a.MaxIterations
	}
	return 20
}

// MaxBotReplyDepthOrDefault returns the bot-chain hard cap (default 8).
func (a AgentConfig) MaxBotReplyDepthOrDefault() int {
	if a.MaxBotReplyDepth > 0 {
		return a.MaxBotReplyDepth
	}
	return 8
}

// BotReplyLLMThresholdOrDefault returns the depth below which mentioned
// bot messages skip the LLM gate (default 3).
func (a AgentConfig) BotReplyLLMThresholdOrDefault() int {
	if a.BotReplyLLMThreshold > 0 {
		return a.BotReplyLLMThreshold
	}
	return 3
}

// BotReplyLLMCheckEnabled reports whether the LLM relevance gate is on
// (default true).
func (a AgentConfig) BotReplyLLMCheckEnabled() bool {
	if a.BotReplyLLMCheck == nil {
		return true
	}
	return *a.BotReplyLLMCheck
}

// ChannelsConfig holds per-channel adapter settings.
type ChannelsConfig struct {
	CLI    CLIConfig    `json:"cli,omitempty"`
	Feishu FeishuConfig `json:"feishu,omitempty"`
}

// CLIConfig configures the stdin/stdout channel.
type CLIConfig struct {
	Enabled bool `json:"enabled,omitempty"`
}

// FeishuConfig configures the Feishu/Lark long-connection channel.
type FeishuConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	AppID       string `json:"appId,omitempty"`
	AppSecret   string `json:"appSecret,omitempty"`
	Domain      string `json:"domain,omitempty"`      // "feishu", "lark", or full URL
	GroupPolicy string `json:"groupPolicy,omitempty"` // "mention" | "auto" | "open"
	SendRate    int    `json:"sendRate,omitempty"`    // outbound messages per second, 0 = default
}

// TelemetryConfig enables the optional OTLP trace exporter.
type TelemetryConfig struct {
	TracesEnabled bool   `json:"tracesEnabled,omitempty"`
	OTLPEndpoint  string `json:"otlpEndpoint,omitempty"` // e.g. "http://localhost:4318/v1/traces"
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			APIBase: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Channels: ChannelsConfig{
			CLI: CLIConfig{Enabled: true},
		},
	}
}
