package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/joebot/relaybot/internal/backend"
	"github.com/joebot/relaybot/internal/store"
)

// assembleContext gathers conversation history and the optional fragments
// the gating phase approved. Read-only against storage.
func (p *Pipeline) assembleContext(scope *store.Scope, sessionKey string, gates gateVector) (string, []backend.Turn) {
	var parts []string
	parts = append(parts, p.systemIdentity(scope))

	if gates.Profile {
		if facts, err := scope.Facts(); err == nil && len(facts) > 0 {
			var sb strings.Builder
			sb.WriteString("# What you know about this user\n")
			for k, v := range facts {
				fmt.Fprintf(&sb, "- %s: %s\n", k, v)
			}
			parts = append(parts, strings.TrimRight(sb.String(), "\n"))
		}
	}

	if gates.Tasks {
		if tasks, err := scope.PendingTasks(); err == nil && len(tasks) > 0 {
			var sb strings.Builder
			sb.WriteString("# Pending tasks\n")
			for _, t := range tasks {
				fmt.Fprintf(&sb, "- [%s] %s — due %s (%s)\n", t.ID, t.Description, t.DueAt.Local().Format(time.RFC3339), t.Repeat)
			}
			parts = append(parts, strings.TrimRight(sb.String(), "\n"))
		}
	}

	if gates.Lessons {
		if lessons, err := scope.RecentLessons(10); err == nil && len(lessons) > 0 {
			var sb strings.Builder
			sb.WriteString("# Learned lessons\n")
			for _, l := range lessons {
				fmt.Fprintf(&sb, "- (%s) %s\n", l.Domain, l.Rule)
			}
			parts = append(parts, strings.TrimRight(sb.String(), "\n"))
		}
	}

	window := p.cfg.Agent.HistoryWindow
	if gates.Recall {
		window *= 2
	}
	var history []backend.Turn
	if exchanges, err := scope.RecentExchanges(sessionKey, window); err == nil {
		for _, e := range exchanges {
			history = append(history,
				backend.Turn{Role: "user", Content: e.UserText},
				backend.Turn{Role: "assistant", Content: e.ReplyText},
			)
		}
	}

	return strings.Join(parts, "\n\n"), history
}

// systemIdentity builds the base system prompt, including the active
// project and the marker protocol contract the backend replies with.
func (p *Pipeline) systemIdentity(scope *store.Scope) string {
	var sb strings.Builder
	sb.WriteString("You are relaybot, a personal assistant reachable over chat.\n")
	fmt.Fprintf(&sb, "Current time: %s\n", time.Now().Format("2006-01-02 15:04 (Monday)"))

	if name, err := scope.GetFact("project.active"); err == nil && name != "" {
		fmt.Fprintf(&sb, "Active project: %s\n", name)
	}
	if lang, err := scope.GetFact("lang"); err == nil && lang != "" {
		fmt.Fprintf(&sb, "Reply language: %s\n", lang)
	}
	if style, err := scope.GetFact("personality"); err == nil && style != "" {
		fmt.Fprintf(&sb, "Reply style: %s\n", style)
	}

	sb.WriteString(`
To perform actions, emit directives on their own lines, fields separated by " | ":
SCHEDULE: description | ISO-8601 datetime | none/daily/weekly/monthly
SCHEDULE_ACTION: description | ISO-8601 datetime | repeat
CANCEL_TASK: task id
UPDATE_TASK: task id | new description | new datetime
PROJECT_ACTIVATE: name        PROJECT_DEACTIVATE:
LANG_SWITCH: language         PERSONALITY: style
LESSON: domain | rule         REWARD: -1/0/1 | domain | lesson
SKILL_IMPROVE: skill | lesson
HEARTBEAT_ADD: item           HEARTBEAT_REMOVE: item
HEARTBEAT_INTERVAL: minutes   HEARTBEAT_SUPPRESS: section
HEARTBEAT_UNSUPPRESS: section
BUG_REPORT: description       BUILD_PROPOSAL: spec
FORGET_CONVERSATION:          PURGE_FACTS:
Directives are executed and removed before delivery; never claim an action succeeded yourself.`)
	return sb.String()
}
