package marker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/joebot/relaybot/internal/store"
)

// One handler per tag: (fields, sender-scoped storage) -> Outcome. Every
// storage mutation below is a single statement or transaction inside the
// store, so a concurrent scheduler tick cannot interleave halfway.

func handleSchedule(_ context.Context, req *Request, m Marker) Outcome {
	return scheduleTask(req, m, store.KindReminder)
}

func handleScheduleAction(_ context.Context, req *Request, m Marker) Outcome {
	return scheduleTask(req, m, store.KindAction)
}

func scheduleTask(req *Request, m Marker, kind string) Outcome {
	desc := m.Field(0)
	if desc == "" {
		return failed(m.Tag, "missing description")
	}
	due, err := parseWhen(m.Field(1))
	if err != nil {
		return failed(m.Tag, fmt.Sprintf("bad datetime %q", m.Field(1)))
	}
	repeat := m.Field(2)
	if repeat == "" {
		repeat = store.RepeatNone
	}
	if !store.ValidRepeat(repeat) {
		return failed(m.Tag, fmt.Sprintf("bad repeat %q", repeat))
	}
	id, err := req.Scope.CreateTask(desc, due, repeat, kind, req.Channel, req.ChatID)
	if err != nil {
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, id, "task "+id)
}

func handleCancelTask(_ context.Context, req *Request, m Marker) Outcome {
	id := m.Field(0)
	if id == "" {
		return failed(m.Tag, "missing task id")
	}
	if err := req.Scope.CancelTask(id); err != nil {
		if err == store.ErrNotFound {
			return failed(m.Tag, "task "+id+" not found")
		}
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, id, "task "+id+" cancelled")
}

func handleUpdateTask(_ context.Context, req *Request, m Marker) Outcome {
	id := m.Field(0)
	if id == "" {
		return failed(m.Tag, "missing task id")
	}
	desc := m.Field(1)
	var due time.Time
	if w := m.Field(2); w != "" {
		parsed, err := parseWhen(w)
		if err != nil {
			return failed(m.Tag, fmt.Sprintf("bad datetime %q", w))
		}
		due = parsed
	}
	if desc == "" && due.IsZero() {
		return skipped(m.Tag, "no changes given")
	}
	if err := req.Scope.UpdateTask(id, desc, due); err != nil {
		if err == store.ErrNotFound {
			return failed(m.Tag, "task "+id+" not found")
		}
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, id, "task "+id+" updated")
}

func handleProjectActivate(_ context.Context, req *Request, m Marker) Outcome {
	name := m.Field(0)
	if name == "" {
		return failed(m.Tag, "missing project name")
	}
	if err := req.Scope.SetSystemFact("project.active", name); err != nil {
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, "project.active", name)
}

func handleProjectDeactivate(_ context.Context, req *Request, m Marker) Outcome {
	if err := req.Scope.SetSystemFact("project.active", ""); err != nil {
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, "project.active", "deactivated")
}

func handleLangSwitch(_ context.Context, req *Request, m Marker) Outcome {
	lang := m.Field(0)
	if lang == "" {
		return failed(m.Tag, "missing language")
	}
	if err := req.Scope.SetSystemFact("lang", lang); err != nil {
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, "lang", lang)
}

func handlePersonality(_ context.Context, req *Request, m Marker) Outcome {
	style := m.Field(0)
	if style == "" {
		return failed(m.Tag, "missing style")
	}
	if err := req.Scope.SetSystemFact("personality", style); err != nil {
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, "personality", style)
}

func handleSkillImprove(_ context.Context, req *Request, m Marker) Outcome {
	skill, lesson := m.Field(0), m.Field(1)
	if skill == "" || lesson == "" {
		return failed(m.Tag, "need skill and lesson")
	}
	l, err := req.Scope.UpsertLesson("skill:"+skill, lesson)
	if err != nil {
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, l.ID, fmt.Sprintf("lesson %s x%d", l.ID, l.Reinforced))
}

func handleLesson(_ context.Context, req *Request, m Marker) Outcome {
	domain, rule := m.Field(0), m.Field(1)
	if domain == "" || rule == "" {
		return failed(m.Tag, "need domain and rule")
	}
	l, err := req.Scope.UpsertLesson(domain, rule)
	if err != nil {
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, l.ID, fmt.Sprintf("lesson %s x%d", l.ID, l.Reinforced))
}

func handleReward(_ context.Context, req *Request, m Marker) Outcome {
	score, err := strconv.Atoi(m.Field(0))
	if err != nil || score < -1 || score > 1 {
		return failed(m.Tag, fmt.Sprintf("bad score %q", m.Field(0)))
	}
	domain := m.Field(1)
	if domain == "" {
		return failed(m.Tag, "missing domain")
	}
	id, err := req.Scope.RecordOutcome(score, domain, m.Field(2))
	if err != nil {
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, id, "outcome "+id)
}

func handleHeartbeatAdd(_ context.Context, req *Request, m Marker) Outcome {
	item := m.Field(0)
	if item == "" {
		return failed(m.Tag, "missing item")
	}
	if err := req.Scope.AddHeartbeatItem(item); err != nil {
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, "", item)
}

func handleHeartbeatRemove(_ context.Context, req *Request, m Marker) Outcome {
	item := m.Field(0)
	if item == "" {
		return failed(m.Tag, "missing item")
	}
	n, err := req.Scope.RemoveHeartbeatItem(item)
	if err != nil {
		return failed(m.Tag, err.Error())
	}
	if n == 0 {
		return failed(m.Tag, "no matching item")
	}
	return applied(m.Tag, "", item)
}

func handleHeartbeatInterval(_ context.Context, req *Request, m Marker) Outcome {
	minutes, err := strconv.Atoi(m.Field(0))
	if err != nil || minutes < 1 {
		return failed(m.Tag, fmt.Sprintf("bad interval %q", m.Field(0)))
	}
	if err := req.Scope.SetSystemFact("heartbeat.interval", strconv.Itoa(minutes)); err != nil {
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, "heartbeat.interval", strconv.Itoa(minutes))
}

func handleHeartbeatSuppress(_ context.Context, req *Request, m Marker) Outcome {
	section := m.Field(0)
	if section == "" {
		return failed(m.Tag, "missing section")
	}
	if err := req.Scope.SuppressHeartbeatSection(section); err != nil {
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, "", section)
}

func handleHeartbeatUnsuppress(_ context.Context, req *Request, m Marker) Outcome {
	section := m.Field(0)
	if section == "" {
		return failed(m.Tag, "missing section")
	}
	found, err := req.Scope.UnsuppressHeartbeatSection(section)
	if err != nil {
		return failed(m.Tag, err.Error())
	}
	if !found {
		return skipped(m.Tag, "section not suppressed")
	}
	return applied(m.Tag, "", section)
}

func handleBugReport(_ context.Context, req *Request, m Marker) Outcome {
	desc := m.Field(0)
	if desc == "" {
		return failed(m.Tag, "missing description")
	}
	id, err := req.Scope.RecordBugReport(desc)
	if err != nil {
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, id, "bug "+id)
}

func handleBuildProposal(_ context.Context, req *Request, m Marker) Outcome {
	spec := m.Field(0)
	if spec == "" {
		return failed(m.Tag, "missing spec")
	}
	id, err := req.Scope.RecordBuildProposal(spec)
	if err != nil {
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, id, "proposal "+id)
}

func handleForgetConversation(_ context.Context, req *Request, m Marker) Outcome {
	n, err := req.Scope.CloseConversation()
	if err != nil {
		return failed(m.Tag, err.Error())
	}
	if req.Sessions != nil {
		req.Sessions.ClearSession(req.SessionKey)
	}
	return applied(m.Tag, "", fmt.Sprintf("closed %d exchanges", n))
}

func handlePurgeFacts(_ context.Context, req *Request, m Marker) Outcome {
	n, err := req.Scope.PurgeFacts()
	if err != nil {
		return failed(m.Tag, err.Error())
	}
	return applied(m.Tag, "", fmt.Sprintf("purged %d facts", n))
}

// parseWhen accepts ISO-8601 datetimes with or without a zone; zoneless
// values are taken in local time.
func parseWhen(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}
