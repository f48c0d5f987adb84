// Package dispatch enforces per-sender serialization in front of the
// pipeline: at most one in-flight pipeline execution per sender, with
// strict FIFO buffering of messages that arrive while one is running.
// Distinct senders run fully in parallel.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joebot/relaybot/internal/bus"
)

// Runner executes one pipeline pass for one message.
type Runner func(ctx context.Context, msg *bus.InboundMessage) error

// Dispatcher owns the process-wide registry of active senders. A sender
// is in at most one of {idle, active}; while active, new arrivals append
// to its FIFO buffer instead of starting a second execution.
type Dispatcher struct {
	run Runner

	mu sync.Mutex
	// active maps a sender key to its buffer of waiting messages.
	// Presence in the map is the active flag; the slice may be empty.
	active map[string][]*bus.InboundMessage

	wg sync.WaitGroup
}

// New creates a dispatcher running each message through run.
func New(run Runner) *Dispatcher {
	return &Dispatcher{
		run:    run,
		active: make(map[string][]*bus.InboundMessage),
	}
}

// Dispatch routes one message. The active check and the buffer append are
// a single locked step, so two concurrent arrivals can never both observe
// "not active". Returns true when the message was buffered behind an
// in-flight execution.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *bus.InboundMessage) bool {
	key := msg.SenderKey()

	d.mu.Lock()
	if buf, isActive := d.active[key]; isActive {
		d.active[key] = append(buf, msg)
		n := len(d.active[key])
		d.mu.Unlock()
		slog.Debug("Message buffered", "sender", key, "queued", n)
		return true
	}
	d.active[key] = nil
	d.mu.Unlock()

	d.wg.Add(1)
	go d.drain(ctx, key, msg)
	return false
}

// Run consumes the inbound side of the bus until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, b *bus.MessageBus) {
	slog.Info("Dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Dispatcher stopping")
			return
		case msg := <-b.Inbound:
			d.Dispatch(ctx, msg)
		}
	}
}

// drain runs the first message, then keeps popping the sender's buffer in
// arrival order. The pop and the active-flag clear are one locked step on
// every exit path, including panics inside the pipeline.
func (d *Dispatcher) drain(ctx context.Context, key string, msg *bus.InboundMessage) {
	defer d.wg.Done()
	for msg != nil {
		d.execute(ctx, key, msg)

		d.mu.Lock()
		buf := d.active[key]
		if len(buf) > 0 {
			msg = buf[0]
			d.active[key] = buf[1:]
		} else {
			delete(d.active, key)
			msg = nil
		}
		d.mu.Unlock()
	}
}

// execute runs one pipeline pass, containing panics so the sender is
// always released and the next buffered message still gets a clean
// attempt.
func (d *Dispatcher) execute(ctx context.Context, key string, msg *bus.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Pipeline panicked", "sender", key, "panic", r)
		}
	}()
	if err := d.run(ctx, msg); err != nil {
		slog.Error("Pipeline failed", "sender", key, "err", err)
	}
}

// ActiveCount returns how many senders currently have an in-flight
// execution.
func (d *Dispatcher) ActiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}

// Shutdown waits for in-flight executions to finish, up to grace.
func (d *Dispatcher) Shutdown(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		slog.Warn("Dispatcher shutdown grace period elapsed")
	}
}
