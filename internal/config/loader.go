package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(homeDir(), ".relaybot", "config.json")
}

// DataDir returns the relaybot data directory, creating it if needed.
func DataDir() string {
	dir := filepath.Join(homeDir(), ".relaybot")
	os.MkdirAll(dir, 0o755)
	return dir
}

// SessionsDir returns the directory session state is persisted under.
func SessionsDir() string {
	dir := filepath.Join(DataDir(), "sessions")
	os.MkdirAll(dir, 0o755)
	return dir
}

// Load reads configuration from disk, falling back to defaults.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads configuration from a specific path.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	// Backfill defaults for zero values.
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = "anthropic/claude-sonnet-4-5"
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = 4096
	}
	if cfg.Agent.HistoryWindow == 0 {
		cfg.Agent.HistoryWindow = 25
	}
	if cfg.Agent.DefaultLang == "" {
		cfg.Agent.DefaultLang = "en"
	}
	if cfg.Agent.FailureMessage == "" {
		cfg.Agent.FailureMessage = "Sorry, something went wrong on my side. Please try again."
	}
	if cfg.Heartbeat.IntervalMinutes == 0 {
		cfg.Heartbeat.IntervalMinutes = 30
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "~/.relaybot/relaybot.db"
	}

	return cfg, nil
}

// Save writes configuration to disk.
func Save(cfg *Config) error {
	return SaveTo(cfg, ConfigPath())
}

// SaveTo writes configuration to a specific path.
func SaveTo(cfg *Config, path string) error {
	os.MkdirAll(filepath.Dir(path), 0o755)

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

// Upgrade reads the existing config file, deep-merges it on top of
// DefaultConfig (local values win), and saves the result. New fields from
// defaults are added; existing user values are preserved.
func Upgrade() (*Config, error) {
	path := ConfigPath()

	defaultData, _ := json.Marshal(DefaultConfig())
	var defaultMap map[string]any
	json.Unmarshal(defaultData, &defaultMap)

	localData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var localMap map[string]any
	if err := json.Unmarshal(localData, &localMap); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	merged := deepMerge(defaultMap, localMap)

	cfg := DefaultConfig()
	reData, _ := json.Marshal(merged)
	if err := json.Unmarshal(reData, cfg); err != nil {
		return nil, fmt.Errorf("apply merged config: %w", err)
	}

	if err := Save(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// deepMerge recursively merges src into dst. Values from src take
// priority; nested maps merge recursively.
func deepMerge(dst, src map[string]any) map[string]any {
	result := make(map[string]any, len(dst))
	for k, v := range dst {
		result[k] = v
	}
	for k, srcVal := range src {
		dstVal, exists := result[k]
		if !exists {
			result[k] = srcVal
			continue
		}
		dstMap, dstOK := dstVal.(map[string]any)
		srcMap, srcOK := srcVal.(map[string]any)
		if dstOK && srcOK {
			result[k] = deepMerge(dstMap, srcMap)
		} else {
			result[k] = srcVal
		}
	}
	return result
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp"
	}
	return home
}
