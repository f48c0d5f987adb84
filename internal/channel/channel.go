// Package channel holds the chat platform adapters. Adapters publish
// every inbound message onto the bus; authorization is a pipeline phase,
// not an adapter concern.
package channel

import (
	"context"

	"github.com/joebot/relaybot/internal/bus"
)

// Channel is the interface for chat platform integrations.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(ctx context.Context, msg *bus.OutboundMessage) error
	Typing(ctx context.Context, chatID string)
}
