package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	relaybus "github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/config"
)

// Telegram is the Telegram adapter, using long polling.
type Telegram struct {
	config config.TelegramConfig
	bus    *relaybus.MessageBus
	bot    *bot.Bot
	cancel context.CancelFunc
}

// NewTelegram creates a new Telegram channel.
func NewTelegram(cfg config.TelegramConfig, b *relaybus.MessageBus) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token not configured")
	}
	t := &Telegram{config: cfg, bus: b}

	tb, err := bot.New(cfg.Token, bot.WithDefaultHandler(t.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	t.bot = tb
	return t, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Start begins long polling. Blocks until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context) error {
	ctx, t.cancel = context.WithCancel(ctx)
	slog.Info("Telegram channel started")
	t.bot.Start(ctx)
	return ctx.Err()
}

// Stop halts long polling.
func (t *Telegram) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

// Send delivers an outbound message.
func (t *Telegram) Send(ctx context.Context, msg *relaybus.OutboundMessage) error {
	params := &bot.SendMessageParams{
		ChatID: msg.ChatID,
		Text:   msg.Content,
	}
	if msg.ReplyTo != "" {
		if id, err := strconv.Atoi(msg.ReplyTo); err == nil {
			params.ReplyParameters = &models.ReplyParameters{MessageID: id}
		}
	}
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// Typing shows a typing indicator in the given chat.
func (t *Telegram) Typing(ctx context.Context, chatID string) {
	t.bot.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
}

func (t *Telegram) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	m := update.Message
	if m == nil || m.From == nil || m.From.IsBot {
		return
	}

	content := m.Text
	if content == "" && m.Caption != "" {
		content = m.Caption
	}
	if content == "" {
		content = "[empty message]"
	}

	senderName := m.From.Username
	if senderName == "" {
		senderName = m.From.FirstName
	}

	msg := &relaybus.InboundMessage{
		Channel:    "telegram",
		SenderID:   strconv.FormatInt(m.From.ID, 10),
		SenderName: senderName,
		ChatID:     strconv.FormatInt(m.Chat.ID, 10),
		Content:    content,
		IsGroup:    m.Chat.Type != models.ChatTypePrivate,
		Timestamp:  time.Unix(int64(m.Date), 0),
	}
	if m.ReplyToMessage != nil {
		msg.ReplyToID = strconv.Itoa(m.ReplyToMessage.ID)
	}

	t.Typing(ctx, msg.ChatID)
	t.bus.PublishInbound(msg)
}
