package channel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	relaybus "github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/config"
)

// Discord is the Discord adapter, built on a gateway websocket session.
type Discord struct {
	config  config.DiscordConfig
	bus     *relaybus.MessageBus
	session *discordgo.Session
}

// NewDiscord creates a new Discord channel.
func NewDiscord(cfg config.DiscordConfig, b *relaybus.MessageBus) (*Discord, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord bot token not configured")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	d := &Discord{config: cfg, bus: b, session: session}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	session.AddHandler(d.handleMessage)
	return d, nil
}

func (d *Discord) Name() string { return "discord" }

// Start opens the gateway connection and blocks until ctx is cancelled.
func (d *Discord) Start(ctx context.Context) error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	slog.Info("Discord channel started")
	<-ctx.Done()
	return ctx.Err()
}

// Stop closes the gateway connection.
func (d *Discord) Stop() error {
	return d.session.Close()
}

// Send delivers an outbound message, splitting to stay under the
// Discord 2000 character limit.
func (d *Discord) Send(ctx context.Context, msg *relaybus.OutboundMessage) error {
	for _, chunk := range splitMessage(msg.Content, 2000) {
		var err error
		if msg.ReplyTo != "" {
			_, err = d.session.ChannelMessageSendReply(msg.ChatID, chunk, &discordgo.MessageReference{
				MessageID: msg.ReplyTo,
				ChannelID: msg.ChatID,
			})
			msg.ReplyTo = ""
		} else {
			_, err = d.session.ChannelMessageSend(msg.ChatID, chunk)
		}
		if err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
	}
	return nil
}

// Typing shows a typing indicator in the given channel.
func (d *Discord) Typing(_ context.Context, chatID string) {
	d.session.ChannelTyping(chatID)
}

func (d *Discord) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.Author.ID == s.State.User.ID {
		return
	}
	content := m.Content
	if content == "" {
		content = "[empty message]"
	}

	msg := &relaybus.InboundMessage{
		Channel:    "discord",
		SenderID:   m.Author.ID,
		SenderName: m.Author.Username,
		ChatID:     m.ChannelID,
		Content:    content,
		IsGroup:    m.GuildID != "",
		Timestamp:  m.Timestamp,
	}
	if m.MessageReference != nil {
		msg.ReplyToID = m.MessageReference.MessageID
	}

	d.Typing(context.Background(), m.ChannelID)
	d.bus.PublishInbound(msg)
}

// splitMessage breaks text into chunks no longer than limit,
// preferring newline boundaries.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if text[i] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
