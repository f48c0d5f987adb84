package bus

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"
)

// OutboundHandler is a callback for outbound messages on a specific channel.
type OutboundHandler func(ctx context.Context, msg *OutboundMessage) error

// MessageBus decouples chat channels from the dispatcher using Go channels.
type MessageBus struct {
	Inbound  chan *InboundMessage
	Outbound chan *OutboundMessage

	mu          sync.RWMutex
	subscribers map[string][]OutboundHandler
}

// queueDepth bounds how far channel adapters can run ahead of the
// dispatcher before publishes block.
const queueDepth = 64

// NewMessageBus creates a new message bus with buffered queues.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		Inbound:     make(chan *InboundMessage, queueDepth),
		Outbound:    make(chan *OutboundMessage, queueDepth),
		subscribers: make(map[string][]OutboundHandler),
	}
}

// PublishInbound sends a message from a channel toward the dispatcher.
func (b *MessageBus) PublishInbound(msg *InboundMessage) {
	b.Inbound <- msg
}

// PublishOutbound sends a response from the pipeline to channels.
func (b *MessageBus) PublishOutbound(msg *OutboundMessage) {
	b.Outbound <- msg
}

// Subscribe registers a handler for outbound messages on a specific channel.
func (b *MessageBus) Subscribe(channel string, handler OutboundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = append(b.subscribers[channel], handler)
}

// DispatchOutbound reads from the outbound queue and dispatches to
// subscribers. Blocks until ctx is cancelled.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.Outbound:
			b.mu.RLock()
			handlers := b.subscribers[msg.Channel]
			b.mu.RUnlock()
			for _, h := range handlers {
				if err := h(ctx, msg); err != nil {
					slog.Warn("dispatch outbound failed, attempting recovery", "channel", msg.Channel, "err", err)
					b.recoverSend(ctx, h, msg)
				}
			}
		}
	}
}

// Content ceilings for the truncation rung. Telegram caps messages at
// 4096 and Discord at 2000; both ceilings leave headroom for the
// truncation notice.
var channelContentLimit = map[string]int{
	"telegram": 4000,
	"discord":  1900,
}

const defaultContentLimit = 1500

func contentLimit(channel string) int {
	if limit, ok := channelContentLimit[channel]; ok {
		return limit
	}
	return defaultContentLimit
}

// recoverSend walks a ladder of progressively simpler retries when an
// outbound message fails to send: drop media, drop the reply reference
// (the replied-to message may be gone), cut the content down to what the
// channel can carry. As a last resort it sends a short error notice so
// the user knows something went wrong.
func (b *MessageBus) recoverSend(ctx context.Context, h OutboundHandler, original *OutboundMessage) {
	rungs := []struct {
		name  string
		build func() *OutboundMessage
	}{
		{"without media", func() *OutboundMessage {
			if len(original.Media) == 0 {
				return nil
			}
			return &OutboundMessage{
				Channel: original.Channel,
				ChatID:  original.ChatID,
				Content: original.Content,
				ReplyTo: original.ReplyTo,
			}
		}},
		{"without reply reference", func() *OutboundMessage {
			if original.ReplyTo == "" {
				return nil
			}
			return &OutboundMessage{
				Channel: original.Channel,
				ChatID:  original.ChatID,
				Content: original.Content,
			}
		}},
		{"truncated", func() *OutboundMessage {
			limit := contentLimit(original.Channel)
			if len(original.Content) <= limit {
				return nil
			}
			return &OutboundMessage{
				Channel: original.Channel,
				ChatID:  original.ChatID,
				Content: truncateContent(original.Content, limit) + "\n\n[message truncated]",
			}
		}},
	}

	for _, rung := range rungs {
		msg := rung.build()
		if msg == nil {
			continue
		}
		if err := h(ctx, msg); err == nil {
			slog.Info("recovery: sent "+rung.name, "channel", original.Channel)
			return
		}
	}

	fallback := &OutboundMessage{
		Channel: original.Channel,
		ChatID:  original.ChatID,
		Content: "Sorry, I ran into a technical issue and couldn't deliver my response. Please try again.",
	}
	if err := h(ctx, fallback); err != nil {
		slog.Error("recovery: all rungs failed, unable to notify user", "channel", original.Channel, "err", err)
	}
}

// truncateContent cuts s to at most limit bytes without splitting a rune,
// preferring a line break in the back half of the budget.
func truncateContent(s string, limit int) string {
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if nl := strings.LastIndex(s[:cut], "\n"); nl > limit/2 {
		cut = nl
	}
	return s[:cut]
}
