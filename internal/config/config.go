package config

import "path/filepath"

// Config is the root configuration for relaybot.
type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Storage   StorageConfig   `json:"storage"`
}

// AgentConfig holds backend call parameters.
type AgentConfig struct {
	Model          string  `json:"model"`
	MaxTokens      int     `json:"maxTokens"`
	Temperature    float64 `json:"temperature"`
	HistoryWindow  int     `json:"historyWindow"`
	DefaultLang    string  `json:"defaultLang"`
	FailureMessage string  `json:"failureMessage"`
}

// ChannelsConfig holds all channel configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

// TelegramConfig holds Telegram channel settings. Telegram denies by
// default: an empty allow list means nobody is authorized.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	// DenyMessage, when set, is sent to unauthorized senders. Empty
	// means denials are silent.
	DenyMessage string `json:"denyMessage,omitempty"`
}

// DiscordConfig holds Discord channel settings. Discord allows by
// default: an empty allow list means everyone is authorized.
type DiscordConfig struct {
	Enabled     bool     `json:"enabled"`
	Token       string   `json:"token"`
	AllowFrom   []string `json:"allowFrom"`
	DenyFrom    []string `json:"denyFrom"`
	DenyMessage string   `json:"denyMessage,omitempty"`
}

// ProvidersConfig holds AI backend provider settings.
type ProvidersConfig struct {
	Anthropic  ProviderConfig `json:"anthropic"`
	OpenAI     ProviderConfig `json:"openai"`
	OpenRouter ProviderConfig `json:"openrouter"`
	DeepSeek   ProviderConfig `json:"deepseek"`
}

// ProviderConfig holds a single provider's credentials.
type ProviderConfig struct {
	APIKey  string `json:"apiKey"`
	APIBase string `json:"apiBase,omitempty"`
}

// SchedulerConfig holds scheduler service settings.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
}

// HeartbeatConfig holds heartbeat service settings. Channel and To name
// the chat the heartbeat reports into (and whose stored checklist it
// reads).
type HeartbeatConfig struct {
	Enabled         bool   `json:"enabled"`
	IntervalMinutes int    `json:"intervalMinutes"`
	Channel         string `json:"channel,omitempty"`
	To              string `json:"to,omitempty"`
}

// StorageConfig holds the sqlite database location.
type StorageConfig struct {
	Path string `json:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Model:          "anthropic/claude-sonnet-4-5",
			MaxTokens:      4096,
			Temperature:    0.7,
			HistoryWindow:  25,
			DefaultLang:    "en",
			FailureMessage: "Sorry, something went wrong on my side. Please try again.",
		},
		Heartbeat: HeartbeatConfig{
			IntervalMinutes: 30,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
		},
		Storage: StorageConfig{
			Path: "~/.relaybot/relaybot.db",
		},
	}
}

// StoragePath returns the expanded database path.
func (c *Config) StoragePath() string {
	return expandHome(c.Storage.Path)
}

// ProviderMatch holds a matched provider config and its name.
type ProviderMatch struct {
	Name   string
	Config *ProviderConfig
}

// GetProvider returns the first provider config with an API key set,
// matching by model keyword if possible.
func (c *Config) GetProvider() *ProviderMatch {
	model := c.Agent.Model

	providers := []struct {
		name     string
		keywords []string
		config   *ProviderConfig
	}{
		{"anthropic", []string{"anthropic", "claude"}, &c.Providers.Anthropic},
		{"openai", []string{"openai", "gpt"}, &c.Providers.OpenAI},
		{"openrouter", []string{"openrouter"}, &c.Providers.OpenRouter},
		{"deepseek", []string{"deepseek"}, &c.Providers.DeepSeek},
	}

	for _, p := range providers {
		for _, kw := range p.keywords {
			if containsIgnoreCase(model, kw) && p.config.APIKey != "" {
				return &ProviderMatch{Name: p.name, Config: p.config}
			}
		}
	}
	for _, p := range providers {
		if p.config.APIKey != "" {
			return &ProviderMatch{Name: p.name, Config: p.config}
		}
	}
	return nil
}

func expandHome(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
