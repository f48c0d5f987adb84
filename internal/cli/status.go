package cli

import (
	"fmt"
	"os"

	"github.com/joebot/relaybot/internal/config"
)

// RunStatus displays the current configuration status with styled output.
func RunStatus(cfg *config.Config) {
	cfgPath := config.ConfigPath()

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s relaybot Status", Logo)))
	fmt.Println()

	fmt.Printf("  %-12s %s  %s\n", "Config", StatusBadge(fileExists(cfgPath)), DimStyle.Render(cfgPath))

	dbPath := cfg.StoragePath()
	fmt.Printf("  %-12s %s  %s\n", "Storage", StatusBadge(fileExists(dbPath)), DimStyle.Render(dbPath))

	fmt.Printf("  %-12s %s\n", "Model", cfg.Agent.Model)
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Providers"))
	providers := []struct {
		name   string
		config config.ProviderConfig
	}{
		{"Anthropic", cfg.Providers.Anthropic},
		{"OpenAI", cfg.Providers.OpenAI},
		{"OpenRouter", cfg.Providers.OpenRouter},
		{"DeepSeek", cfg.Providers.DeepSeek},
	}
	for _, p := range providers {
		fmt.Printf("    %s  %s\n", StatusBadge(p.config.APIKey != ""), p.name)
	}
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Channels"))
	fmt.Printf("    %s  Telegram\n", StatusBadge(cfg.Channels.Telegram.Enabled))
	fmt.Printf("    %s  Discord\n", StatusBadge(cfg.Channels.Discord.Enabled))
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Background"))
	fmt.Printf("    %s  Scheduler\n", StatusBadge(cfg.Scheduler.Enabled))
	hb := "Heartbeat"
	if cfg.Heartbeat.Enabled {
		hb = fmt.Sprintf("Heartbeat (every %dm)", cfg.Heartbeat.IntervalMinutes)
	}
	fmt.Printf("    %s  %s\n", StatusBadge(cfg.Heartbeat.Enabled), hb)
	fmt.Println()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
