// Package command implements the deterministic fast path: slash commands
// are dispatched directly against storage, skipping the AI backend and the
// marker protocol entirely.
package command

import (
	"fmt"
	"strings"

	"github.com/joebot/relaybot/internal/session"
	"github.com/joebot/relaybot/internal/store"
)

// Handler executes recognized commands.
type Handler struct {
	store    *store.Store
	sessions *session.Manager
}

// NewHandler creates a command handler.
func NewHandler(st *store.Store, sessions *session.Manager) *Handler {
	return &Handler{store: st, sessions: sessions}
}

// IsCommand reports whether text uses the command syntax.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// Execute runs one command for the given sender scope and returns the
// reply text.
func (h *Handler) Execute(scope *store.Scope, sessionKey, text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return h.help()
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/help":
		return h.help()
	case "/status":
		return h.status(scope)
	case "/tasks":
		return h.tasks(scope)
	case "/cancel":
		return h.cancel(scope, args)
	case "/facts":
		return h.facts(scope, args)
	case "/project":
		return h.project(scope, args)
	case "/link":
		return h.link(scope, args)
	case "/forget":
		return h.forget(scope, sessionKey)
	default:
		return "Unknown command. Try /help."
	}
}

func (h *Handler) help() string {
	return strings.Join([]string{
		"Commands:",
		"/status — summary of what I'm tracking for you",
		"/tasks — list pending reminders",
		"/cancel <id> — cancel a reminder",
		"/facts — show what I remember about you",
		"/facts forget <key> — drop one stored fact",
		"/project <name|off> — switch the active project",
		"/link <channel> <id> — merge another channel account into this one",
		"/forget — forget the current conversation",
	}, "\n")
}

func (h *Handler) status(scope *store.Scope) string {
	var sb strings.Builder
	sb.WriteString("Status:\n")

	tasks, err := scope.PendingTasks()
	if err != nil {
		return "Couldn't read your status right now."
	}
	fmt.Fprintf(&sb, "• Pending tasks: %d\n", len(tasks))

	facts, err := scope.Facts()
	if err == nil {
		fmt.Fprintf(&sb, "• Stored facts: %d\n", len(facts))
	}

	if name, err := scope.GetFact("project.active"); err == nil && name != "" {
		fmt.Fprintf(&sb, "• Active project: %s\n", name)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (h *Handler) tasks(scope *store.Scope) string {
	tasks, err := scope.PendingTasks()
	if err != nil {
		return "Couldn't read your tasks right now."
	}
	if len(tasks) == 0 {
		return "No pending tasks."
	}
	var sb strings.Builder
	sb.WriteString("Pending tasks:\n")
	for _, t := range tasks {
		fmt.Fprintf(&sb, "• [%s] %s — %s", t.ID, t.Description, t.DueAt.Local().Format("Mon, 02 Jan 15:04"))
		if t.Repeat != store.RepeatNone {
			fmt.Fprintf(&sb, " (%s)", t.Repeat)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (h *Handler) cancel(scope *store.Scope, args []string) string {
	if len(args) == 0 {
		return "Usage: /cancel <task id>"
	}
	if err := scope.CancelTask(args[0]); err != nil {
		if err == store.ErrNotFound {
			return "No pending task with id " + args[0] + "."
		}
		return "Couldn't cancel that task right now."
	}
	task, err := scope.GetTask(args[0])
	if err != nil {
		return "Cancelled."
	}
	return "Cancelled: " + task.Description
}

func (h *Handler) facts(scope *store.Scope, args []string) string {
	if len(args) > 0 && strings.EqualFold(args[0], "forget") {
		if len(args) < 2 {
			return "Usage: /facts forget <key>"
		}
		key := args[1]
		if store.IsReservedFactKey(key) {
			return "That one is managed by the system and can't be dropped."
		}
		if _, err := scope.GetFact(key); err == store.ErrNotFound {
			return "I don't have a fact named " + key + "."
		}
		if err := scope.DeleteFact(key); err != nil {
			return "Couldn't drop that fact right now."
		}
		return "Dropped: " + key
	}

	facts, err := scope.Facts()
	if err != nil {
		return "Couldn't read your facts right now."
	}
	if len(facts) == 0 {
		return "I don't have any stored facts about you."
	}
	var sb strings.Builder
	sb.WriteString("Stored facts:\n")
	for k, v := range facts {
		fmt.Fprintf(&sb, "• %s: %s\n", k, v)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (h *Handler) project(scope *store.Scope, args []string) string {
	if len(args) == 0 {
		name, err := scope.GetFact("project.active")
		if err != nil || name == "" {
			return "No active project."
		}
		return "Active project: " + name
	}
	if strings.EqualFold(args[0], "off") {
		if err := scope.SetSystemFact("project.active", ""); err != nil {
			return "Couldn't deactivate the project right now."
		}
		return "Project deactivated."
	}
	name := strings.Join(args, " ")
	if err := scope.SetSystemFact("project.active", name); err != nil {
		return "Couldn't activate that project right now."
	}
	return "Project active: " + name
}

// link merges the identity behind another channel alias into the caller's
// identity so both accounts share tasks, facts and lessons.
func (h *Handler) link(scope *store.Scope, args []string) string {
	if len(args) != 2 {
		return "Usage: /link <channel> <id>"
	}
	other, err := h.store.ResolveIdentity(args[0], args[1])
	if err != nil {
		return "Couldn't look up that account right now."
	}
	if other.ID == scope.IdentityID() {
		return "That account is already this one."
	}
	if err := h.store.MergeIdentities(scope.IdentityID(), other.ID); err != nil {
		return "Couldn't link that account right now."
	}
	return fmt.Sprintf("Linked %s:%s into this account.", args[0], args[1])
}

func (h *Handler) forget(scope *store.Scope, sessionKey string) string {
	if _, err := scope.CloseConversation(); err != nil {
		return "Couldn't forget the conversation right now."
	}
	h.sessions.ClearSession(sessionKey)
	return "Forgotten. Fresh start."
}
