package bus

import "time"

// InboundMessage is a message received from a chat channel. It exists only
// for the duration of one pipeline pass.
type InboundMessage struct {
	Channel     string
	SenderID    string
	SenderName  string
	ChatID      string
	Content     string
	ReplyToID   string
	IsGroup     bool
	Attachments []string
	Timestamp   time.Time
	Metadata    map[string]any
}

// SenderKey returns the (channel, channel-native id) identity key used by
// the dispatcher to serialize per-sender processing.
func (m *InboundMessage) SenderKey() string {
	return m.Channel + ":" + m.SenderID
}

// SessionKey returns the key used for conversation session lookup.
func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// OutboundMessage is a message to send to a chat channel.
type OutboundMessage struct {
	Channel  string
	ChatID   string
	Content  string
	ReplyTo  string
	Media    []string
	Metadata map[string]any
}
