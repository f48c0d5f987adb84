// Package scheduler fires due tasks: reminders are delivered directly,
// autonomous actions run through the AI backend and the shared marker
// engine on the scheduler's own trigger.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joebot/relaybot/internal/backend"
	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/marker"
	"github.com/joebot/relaybot/internal/session"
	"github.com/joebot/relaybot/internal/store"
)

const (
	tickInterval = 15 * time.Second
	// fireGrace bounds how long a tick in progress may keep running
	// after shutdown is requested, so a write-type marker is never
	// hard-aborted half-applied.
	fireGrace = 2 * time.Minute
)

// Service scans for due tasks and fires them.
type Service struct {
	store    *store.Store
	provider backend.Provider
	engine   *marker.Engine
	sessions *session.Manager
	bus      *bus.MessageBus
	model    string
}

// New creates a scheduler service.
func New(st *store.Store, provider backend.Provider, engine *marker.Engine, sessions *session.Manager, b *bus.MessageBus, model string) *Service {
	return &Service{
		store:    st,
		provider: provider,
		engine:   engine,
		sessions: sessions,
		bus:      b,
		model:    model,
	}
}

// Run starts the scheduler loop. It blocks until ctx is cancelled; the
// iteration in progress finishes within a bounded grace period.
func (s *Service) Run(ctx context.Context) {
	slog.Info("Scheduler started", "tick", tickInterval)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fireGrace)
			s.tick(tickCtx)
			cancel()
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	due, err := s.store.DueTasks(time.Now())
	if err != nil {
		slog.Error("Scheduler: due scan failed", "err", err)
		return
	}
	for _, task := range due {
		s.fire(ctx, task)
		if err := s.store.FinishFiring(task); err != nil {
			slog.Error("Scheduler: finish firing failed", "task", task.ID, "err", err)
		}
	}
}

func (s *Service) fire(ctx context.Context, task *store.Task) {
	slog.Info("Scheduler: firing task", "task", task.ID, "kind", task.Kind, "description", task.Description)

	if task.Kind == store.KindReminder {
		s.deliver(task, "⏰ Reminder: "+task.Description)
		return
	}

	// Autonomous action: the backend decides what to do and may emit
	// further markers, which go through the shared engine under the
	// owning sender's scope.
	resp, err := s.provider.Complete(ctx, backend.Request{
		System:  "You are relaybot executing a scheduled autonomous action. Report the result concisely. You may emit protocol directives (SCHEDULE:, LESSON:, ...) as usual.",
		Message: fmt.Sprintf("Execute this scheduled action now: %s", task.Description),
		Model:   s.model,
	})
	if err != nil {
		slog.Error("Scheduler: action backend call failed", "task", task.ID, "err", err)
		s.deliver(task, "⚠ Scheduled action failed: "+task.Description)
		return
	}

	cleaned, outcomes := s.engine.Process(ctx, resp.Text, &marker.Request{
		Scope:      s.store.Scope(task.IdentityID),
		Channel:    task.Channel,
		ChatID:     task.ChatID,
		SessionKey: task.Channel + ":" + task.ChatID,
		Sessions:   s.sessions,
	})

	var confirms []string
	for _, o := range outcomes {
		if o.Confirm != "" {
			confirms = append(confirms, o.Confirm)
		}
	}
	text := strings.TrimSpace(cleaned)
	if len(confirms) > 0 {
		text = strings.TrimSpace(text + "\n\n" + strings.Join(confirms, "\n"))
	}
	if text != "" {
		s.deliver(task, text)
	}
}

func (s *Service) deliver(task *store.Task, content string) {
	if task.Channel == "" || task.ChatID == "" {
		slog.Warn("Scheduler: task has no delivery target", "task", task.ID)
		return
	}
	s.bus.PublishOutbound(&bus.OutboundMessage{
		Channel: task.Channel,
		ChatID:  task.ChatID,
		Content: content,
	})
}
