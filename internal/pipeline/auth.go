package pipeline

import (
	"log/slog"

	"github.com/joebot/relaybot/internal/bus"
)

// authDecision is the outcome of the authorization phase.
type authDecision struct {
	allowed bool
	// denyMessage, when non-empty, is sent back to a denied sender.
	// Empty means the denial is silent, so unauthorized probes learn
	// nothing about the system's existence.
	denyMessage string
}

// authorize applies the per-channel policy. The two channel types keep
// their historical, deliberately different defaults: Telegram denies by
// default (an empty allow list authorizes nobody), Discord allows by
// default (an empty allow list authorizes everybody). Unifying these
// silently would be a security-relevant behavior change.
func (p *Pipeline) authorize(msg *bus.InboundMessage) authDecision {
	switch msg.Channel {
	case "telegram":
		tc := p.cfg.Channels.Telegram
		if containsID(tc.AllowFrom, msg.SenderID) {
			return authDecision{allowed: true}
		}
		return authDecision{denyMessage: tc.DenyMessage}

	case "discord":
		dc := p.cfg.Channels.Discord
		if containsID(dc.DenyFrom, msg.SenderID) {
			return authDecision{denyMessage: dc.DenyMessage}
		}
		if len(dc.AllowFrom) > 0 && !containsID(dc.AllowFrom, msg.SenderID) {
			return authDecision{denyMessage: dc.DenyMessage}
		}
		return authDecision{allowed: true}
	}

	// Internal producers (scheduler, heartbeat, cli) are trusted.
	return authDecision{allowed: true}
}

func containsID(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func logDenied(msg *bus.InboundMessage) {
	slog.Warn("Authorization denied", "channel", msg.Channel, "sender", msg.SenderID, "chat", msg.ChatID)
}
