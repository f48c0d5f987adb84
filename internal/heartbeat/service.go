// Package heartbeat periodically wakes the backend with the owner's
// stored checklist and runs the response through the shared marker
// engine. The checklist, the interval and section suppression are all
// managed by HEARTBEAT_* markers.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joebot/relaybot/internal/backend"
	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/config"
	"github.com/joebot/relaybot/internal/marker"
	"github.com/joebot/relaybot/internal/session"
	"github.com/joebot/relaybot/internal/store"
)

// okToken indicates the backend found nothing needing attention; such
// responses are not delivered.
const okToken = "HEARTBEAT_OK"

// tickGrace bounds how long a tick may continue after shutdown is
// requested.
const tickGrace = 2 * time.Minute

// Service is the periodic heartbeat producer.
type Service struct {
	cfg      config.HeartbeatConfig
	store    *store.Store
	provider backend.Provider
	engine   *marker.Engine
	sessions *session.Manager
	bus      *bus.MessageBus
	model    string
}

// New creates a heartbeat service.
func New(cfg config.HeartbeatConfig, st *store.Store, provider backend.Provider, engine *marker.Engine, sessions *session.Manager, b *bus.MessageBus, model string) *Service {
	return &Service{
		cfg:      cfg,
		store:    st,
		provider: provider,
		engine:   engine,
		sessions: sessions,
		bus:      b,
		model:    model,
	}
}

// Run starts the heartbeat loop. The interval is re-read every iteration
// so a HEARTBEAT_INTERVAL marker takes effect on the next wait.
func (s *Service) Run(ctx context.Context) {
	slog.Info("Heartbeat started", "interval", s.interval(nil))
	for {
		scope := s.scope()
		timer := time.NewTimer(s.interval(scope))
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("Heartbeat stopped")
			return
		case <-timer.C:
			tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tickGrace)
			s.tick(tickCtx, scope)
			cancel()
		}
	}
}

func (s *Service) scope() *store.Scope {
	if s.cfg.Channel == "" || s.cfg.To == "" {
		return nil
	}
	ident, err := s.store.ResolveIdentity(s.cfg.Channel, s.cfg.To)
	if err != nil {
		slog.Error("Heartbeat: identity resolution failed", "err", err)
		return nil
	}
	return s.store.Scope(ident.ID)
}

func (s *Service) interval(scope *store.Scope) time.Duration {
	minutes := s.cfg.IntervalMinutes
	if minutes <= 0 {
		minutes = 30
	}
	if scope != nil {
		if v, err := scope.GetFact("heartbeat.interval"); err == nil {
			if n, err := strconv.Atoi(v); err == nil && n >= 1 {
				minutes = n
			}
		}
	}
	return time.Duration(minutes) * time.Minute
}

func (s *Service) tick(ctx context.Context, scope *store.Scope) {
	if scope == nil {
		return
	}
	prompt, empty := s.buildPrompt(scope)
	if empty {
		slog.Debug("Heartbeat: nothing to check")
		return
	}

	slog.Info("Heartbeat: checking for tasks")
	resp, err := s.provider.Complete(ctx, backend.Request{
		System:  "You are relaybot on a periodic heartbeat. Work through the checklist below. If nothing needs attention, reply with exactly: " + okToken,
		Message: prompt,
		Model:   s.model,
	})
	if err != nil {
		slog.Error("Heartbeat execution failed", "err", err)
		return
	}

	cleaned, outcomes := s.engine.Process(ctx, resp.Text, &marker.Request{
		Scope:      scope,
		Channel:    s.cfg.Channel,
		ChatID:     s.cfg.To,
		SessionKey: s.cfg.Channel + ":" + s.cfg.To,
		Sessions:   s.sessions,
	})

	if isQuiet(cleaned) {
		slog.Info("Heartbeat: OK (no action needed)")
		return
	}

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
	if text == "" {
		return
	}
	s.bus.PublishOutbound(&bus.OutboundMessage{
		Channel: s.cfg.Channel,
		ChatID:  s.cfg.To,
		Content: text,
	})
}

// buildPrompt assembles the heartbeat prompt from the non-suppressed
// sections. Returns empty=true when there is nothing actionable.
func (s *Service) buildPrompt(scope *store.Scope) (string, bool) {
	suppressed, err := scope.SuppressedHeartbeatSections()
	if err != nil {
		slog.Warn("Heartbeat: reading suppressions failed", "err", err)
		suppressed = map[string]bool{}
	}

	var parts []string

	if !suppressed["checklist"] {
		items, err := scope.HeartbeatItems()
		if err == nil && len(items) > 0 {
			var sb strings.Builder
			sb.WriteString("# Checklist\n")
			for _, it := range items {
				fmt.Fprintf(&sb, "- %s\n", it)
			}
			parts = append(parts, strings.TrimRight(sb.String(), "\n"))
		}
	}

	if !suppressed["tasks"] {
		tasks, err := scope.PendingTasks()
		if err == nil && len(tasks) > 0 {
			var sb strings.Builder
			sb.WriteString("# Upcoming tasks\n")
			for _, t := range tasks {
				fmt.Fprintf(&sb, "- [%s] %s — due %s\n", t.ID, t.Description, t.DueAt.Local().Format("Mon, 02 Jan 15:04"))
			}
			parts = append(parts, strings.TrimRight(sb.String(), "\n"))
		}
	}

	if len(parts) == 0 {
		return "", true
	}
	return strings.Join(parts, "\n\n"), false
}

func isQuiet(text string) bool {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(text), "_", ""))
	return strings.Contains(normalized, strings.ReplaceAll(okToken, "_", ""))
}
