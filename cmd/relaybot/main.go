package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joebot/relaybot/internal/backend"
	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/channel"
	"github.com/joebot/relaybot/internal/cli"
	"github.com/joebot/relaybot/internal/config"
	"github.com/joebot/relaybot/internal/dispatch"
	"github.com/joebot/relaybot/internal/heartbeat"
	"github.com/joebot/relaybot/internal/logging"
	"github.com/joebot/relaybot/internal/pipeline"
	"github.com/joebot/relaybot/internal/scheduler"
	"github.com/joebot/relaybot/internal/session"
	"github.com/joebot/relaybot/internal/store"
)

const shutdownGrace = 30 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "chat":
		cmdChat()
	case "gateway":
		cmdGateway()
	case "status":
		cmdStatus()
	case "onboard":
		cli.RunOnboard()
	case "version", "--version", "-v":
		fmt.Println(cli.TitleStyle.Render(
			fmt.Sprintf("  %s relaybot v%s", cli.Logo, cli.Version),
		))
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	dim := cli.DimStyle.Render
	fmt.Println()
	fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("  %s relaybot", cli.Logo)) + dim(" — Personal Agent Gateway"))
	fmt.Println()
	fmt.Println("  " + cli.BoldStyle.Render("Usage"))
	fmt.Println()
	fmt.Printf("    relaybot %-14s %s\n", "chat", dim("Interactive chat"))
	fmt.Printf("    relaybot %-14s %s\n", "chat -m \"…\"", dim("Single message"))
	fmt.Printf("    relaybot %-14s %s\n", "gateway", dim("Start channel gateway"))
	fmt.Printf("    relaybot %-14s %s\n", "status", dim("Show configuration"))
	fmt.Printf("    relaybot %-14s %s\n", "onboard", dim("Initialize setup"))
	fmt.Printf("    relaybot %-14s %s\n", "version", dim("Show version"))
	fmt.Println()
}

// --- chat command ---

func cmdChat() {
	cfg := mustLoadConfig()
	provider := mustMakeProvider(cfg)
	redirectLogs()

	st := mustOpenStore(cfg)
	defer st.Close()

	msgBus := bus.NewMessageBus()
	sessions := session.NewManager(config.SessionsDir())
	pipe := pipeline.New(cfg, st, sessions, provider, msgBus)

	// Check for -m flag
	message := ""
	for i := 2; i < len(os.Args); i++ {
		if (os.Args[i] == "-m" || os.Args[i] == "--message") && i+1 < len(os.Args) {
			message = os.Args[i+1]
			break
		}
	}

	ctx := context.Background()

	if message != "" {
		if err := cli.RunSingleMessage(pipe, ctx, message); err != nil {
			os.Exit(1)
		}
	} else {
		if err := cli.RunChat(pipe, ctx, cli.ChatConfig{Model: cfg.Agent.Model}); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	}
}

// --- gateway command ---

func cmdGateway() {
	cfg := mustLoadConfig()
	provider := mustMakeProvider(cfg)
	slog.SetDefault(slog.New(logging.NewHandler(os.Stderr, &logging.Options{
		Level: slog.LevelInfo,
		Color: true,
	})))

	st := mustOpenStore(cfg)
	defer st.Close()

	msgBus := bus.NewMessageBus()
	sessions := session.NewManager(config.SessionsDir())
	pipe := pipeline.New(cfg, st, sessions, provider, msgBus)
	disp := dispatch.New(pipe.HandleMessage)

	fmt.Println()
	fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("  %s relaybot Gateway", cli.Logo)))
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	channels := startChannels(cfg, msgBus)

	fmt.Println()

	// Start components
	go msgBus.DispatchOutbound(ctx)
	go disp.Run(ctx, msgBus)

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(st, provider, pipe.Engine(), sessions, msgBus, cfg.Agent.Model)
		go sched.Run(ctx)
		fmt.Println("  " + cli.OkStyle.Render("✓") + " Scheduler")
	}
	if cfg.Heartbeat.Enabled {
		hb := heartbeat.New(cfg.Heartbeat, st, provider, pipe.Engine(), sessions, msgBus, cfg.Agent.Model)
		go hb.Run(ctx)
		fmt.Println("  " + cli.OkStyle.Render("✓") + " Heartbeat")
	}

	for _, ch := range channels {
		ch := ch
		go func() {
			if err := ch.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Channel error", "channel", ch.Name(), "err", err)
			}
		}()
	}

	fmt.Println(cli.DimStyle.Render("  Press Ctrl+C to stop"))
	<-ctx.Done()
	fmt.Println("\n  Shutting down...")
	for _, ch := range channels {
		ch.Stop()
	}
	disp.Shutdown(shutdownGrace)
}

// startChannels constructs and subscribes the enabled channel adapters.
func startChannels(cfg *config.Config, msgBus *bus.MessageBus) []channel.Channel {
	var channels []channel.Channel

	if cfg.Channels.Telegram.Enabled {
		tg, err := channel.NewTelegram(cfg.Channels.Telegram, msgBus)
		if err != nil {
			fmt.Println("  " + cli.ErrStyle.Render("✗") + " Telegram " + cli.DimStyle.Render(err.Error()))
		} else {
			msgBus.Subscribe("telegram", func(ctx context.Context, msg *bus.OutboundMessage) error {
				return tg.Send(ctx, msg)
			})
			channels = append(channels, tg)
			fmt.Println("  " + cli.OkStyle.Render("✓") + " Telegram")
		}
	} else {
		fmt.Println("  " + cli.DimStyle.Render("✗") + " Telegram " + cli.DimStyle.Render("(not enabled)"))
	}

	if cfg.Channels.Discord.Enabled {
		dc, err := channel.NewDiscord(cfg.Channels.Discord, msgBus)
		if err != nil {
			fmt.Println("  " + cli.ErrStyle.Render("✗") + " Discord " + cli.DimStyle.Render(err.Error()))
		} else {
			msgBus.Subscribe("discord", func(ctx context.Context, msg *bus.OutboundMessage) error {
				return dc.Send(ctx, msg)
			})
			channels = append(channels, dc)
			fmt.Println("  " + cli.OkStyle.Render("✓") + " Discord")
		}
	} else {
		fmt.Println("  " + cli.DimStyle.Render("✗") + " Discord " + cli.DimStyle.Render("(not enabled)"))
	}

	return channels
}

// --- status command ---

func cmdStatus() {
	cfg, _ := config.Load()
	cli.RunStatus(cfg)
}

// --- helpers ---

func redirectLogs() {
	logPath := filepath.Join(config.DataDir(), "relaybot.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, nil)))
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", err)
	}
	return cfg
}

func mustOpenStore(cfg *config.Config) *store.Store {
	path := cfg.StoragePath()
	os.MkdirAll(filepath.Dir(path), 0o755)
	st, err := store.Open(path)
	if err != nil {
		fmt.Println()
		fmt.Println(cli.ErrStyle.Render("  Error: cannot open storage: " + err.Error()))
		fmt.Println()
		os.Exit(1)
	}
	return st
}

func mustMakeProvider(cfg *config.Config) backend.Provider {
	match := cfg.GetProvider()
	if match == nil || match.Config.APIKey == "" {
		fmt.Println()
		fmt.Println(cli.ErrStyle.Render("  Error: No API key configured"))
		fmt.Println(cli.DimStyle.Render("  Set one in ~/.relaybot/config.json under providers section"))
		fmt.Println()
		os.Exit(1)
	}

	p := match.Config
	model := cfg.Agent.Model

	switch match.Name {
	case "anthropic":
		return backend.NewAnthropicProvider(p.APIKey, p.APIBase, model)
	default:
		return backend.NewOpenAIProvider(p.APIKey, p.APIBase, model)
	}
}
