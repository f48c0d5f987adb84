// Package pipeline runs one inbound message through the fixed phase
// sequence: auth, sanitize, identity, command interception, keyword
// gating, context assembly, routing, backend call, marker processing,
// persistence, delivery. Phases short-circuit; a failure aborts only the
// current message.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joebot/relaybot/internal/backend"
	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/command"
	"github.com/joebot/relaybot/internal/config"
	"github.com/joebot/relaybot/internal/marker"
	"github.com/joebot/relaybot/internal/session"
	"github.com/joebot/relaybot/internal/store"
)

// Pipeline orchestrates the phases for one message at a time. It is
// stateless across messages; per-sender serialization is the dispatcher's
// job.
type Pipeline struct {
	cfg      *config.Config
	store    *store.Store
	sessions *session.Manager
	provider backend.Provider
	engine   *marker.Engine
	commands *command.Handler
	bus      *bus.MessageBus
}

// New creates a pipeline.
func New(cfg *config.Config, st *store.Store, sessions *session.Manager, provider backend.Provider, b *bus.MessageBus) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		provider: provider,
		engine:   marker.NewEngine(),
		commands: command.NewHandler(st, sessions),
		bus:      b,
	}
}

// Engine exposes the marker engine for background producers that process
// marker-bearing text outside a full pipeline pass.
func (p *Pipeline) Engine() *marker.Engine { return p.engine }

// HandleMessage runs the full phase sequence for one message. Background
// producers call it directly, bypassing the dispatcher.
func (p *Pipeline) HandleMessage(ctx context.Context, msg *bus.InboundMessage) error {
	// Phase 1: auth.
	if decision := p.authorize(msg); !decision.allowed {
		logDenied(msg)
		if decision.denyMessage != "" {
			p.deliver(msg, decision.denyMessage)
		}
		return nil
	}

	reply, err := p.process(ctx, msg)
	if err != nil {
		slog.Error("Backend call failed", "channel", msg.Channel, "err", err)
		p.deliver(msg, p.cfg.Agent.FailureMessage)
		return fmt.Errorf("backend: %w", err)
	}

	// Phase 11: delivery.
	p.deliver(msg, reply)
	return nil
}

// ProcessDirect runs the phases for a locally originated message and
// returns the reply instead of publishing it. Used by the interactive
// console, which has no channel adapter.
func (p *Pipeline) ProcessDirect(ctx context.Context, text, senderKey string) (string, error) {
	channel, senderID := "cli", senderKey
	if i := strings.Index(senderKey, ":"); i > 0 {
		channel, senderID = senderKey[:i], senderKey[i+1:]
	}
	return p.process(ctx, &bus.InboundMessage{
		Channel:  channel,
		SenderID: senderID,
		ChatID:   senderID,
		Content:  text,
	})
}

// process runs phases 2 through 10 and returns the composed reply.
func (p *Pipeline) process(ctx context.Context, msg *bus.InboundMessage) (string, error) {
	// Phase 2: sanitize. Never halts; warnings go to the audit log.
	text, warnings := sanitize(msg.Content)
	for _, w := range warnings {
		slog.Warn("Sanitize", "channel", msg.Channel, "sender", msg.SenderID, "warning", w)
	}

	// Phase 3: identity resolution. Degrades to an anonymous identity
	// instead of halting.
	ident, err := p.store.ResolveIdentity(msg.Channel, msg.SenderID)
	if err != nil {
		slog.Error("Identity resolution failed, using anonymous identity", "err", err)
		ident = &store.Identity{ID: "anon:" + msg.SenderKey()}
	}
	scope := p.store.Scope(ident.ID)
	if ident.New {
		slog.Info("New sender", "channel", msg.Channel, "sender", msg.SenderID)
		scope.SetSystemFact("onboarding.stage", "new")
	}

	// Phase 4: command interception. Deterministic, no backend, no
	// markers.
	if command.IsCommand(text) {
		return p.commands.Execute(scope, msg.SessionKey(), text), nil
	}

	// Phase 5: keyword gating.
	gates := gateMessage(text)

	// Phase 6: context assembly (read-only).
	system, history := p.assembleContext(scope, msg.SessionKey(), gates)

	// Phase 7: routing.
	rt := classify(text)

	// Phase 8: backend call, one retry via a fresh session.
	raw, err := p.callBackend(ctx, msg.SessionKey(), system, history, text, rt)
	if err != nil {
		return "", err
	}

	// Phase 9: marker processing.
	cleaned, outcomes := p.engine.Process(ctx, raw, &marker.Request{
		Scope:      scope,
		Channel:    msg.Channel,
		ChatID:     msg.ChatID,
		SessionKey: msg.SessionKey(),
		Sessions:   p.sessions,
	})
	reply := composeReply(cleaned, outcomes)

	// Phase 10: persistence. Failure is logged, the reply still goes
	// out.
	if err := scope.StoreExchange(msg.SessionKey(), msg.Content, cleaned); err != nil {
		slog.Error("Persist exchange failed", "err", err)
	}

	// A new sender's first completed exchange finishes onboarding.
	if ident.New {
		if err := p.store.MarkOnboarded(ident.ID, msg.SenderName); err != nil {
			slog.Error("Mark onboarded failed", "err", err)
		} else {
			scope.SetSystemFact("onboarding.stage", "done")
		}
	}

	return reply, nil
}

// callBackend invokes the provider; on failure it clears the session
// continuation and retries exactly once with a fresh session.
func (p *Pipeline) callBackend(ctx context.Context, sessionKey, system string, history []backend.Turn, message string, rt route) (string, error) {
	maxTokens := p.cfg.Agent.MaxTokens
	if rt == routeFast && maxTokens > 1024 {
		maxTokens = 1024
	}
	model := p.cfg.Agent.Model
	if model == "" {
		model = p.provider.DefaultModel()
	}
	req := backend.Request{
		System:       system,
		History:      history,
		Message:      message,
		Model:        model,
		MaxTokens:    maxTokens,
		Temperature:  p.cfg.Agent.Temperature,
		Continuation: p.sessions.Continuation(sessionKey),
	}

	resp, err := p.provider.Complete(ctx, req)
	if err != nil {
		slog.Warn("Backend call failed, retrying with fresh session", "err", err)
		p.sessions.ClearSession(sessionKey)
		req.Continuation = ""
		resp, err = p.provider.Complete(ctx, req)
		if err != nil {
			return "", err
		}
	}
	if resp.Continuation != "" {
		p.sessions.SetContinuation(sessionKey, resp.Continuation)
	}
	return resp.Text, nil
}

// composeReply appends confirmation lines from processed markers to the
// cleaned response text.
func composeReply(cleaned string, outcomes []marker.Outcome) string {
	var confirms []string
	for _, o := range outcomes {
		if o.Confirm != "" {
			confirms = append(confirms, o.Confirm)
		}
	}
	reply := strings.TrimSpace(cleaned)
	if len(confirms) > 0 {
		if reply != "" {
			reply += "\n\n"
		}
		reply += strings.Join(confirms, "\n")
	}
	if reply == "" {
		reply = "Done."
	}
	return reply
}

func (p *Pipeline) deliver(msg *bus.InboundMessage, content string) {
	p.bus.PublishOutbound(&bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: content,
		ReplyTo: msg.ReplyToID,
	})
}
