// Package backend talks to the AI backend. The backend is opaque to the
// rest of the system: context in, free text out. Intents come back inside
// the text as protocol markers, so no structured tool-call support is
// required of any provider.
package backend

import "context"

// Turn is one prior exchange turn.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Request holds everything for one completion call.
type Request struct {
	System      string
	History     []Turn
	Message     string
	Model       string
	MaxTokens   int
	Temperature float64
	// Continuation is an opaque session token from a previous Response.
	// Stateless providers ignore it and rely on History instead.
	Continuation string
}

// Response is the backend's reply.
type Response struct {
	Text string
	// Continuation, when non-empty, lets the next Request resume this
	// server-side session.
	Continuation string
}

// Provider is the interface for AI backends.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	DefaultModel() string
}
