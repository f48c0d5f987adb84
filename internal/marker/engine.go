package marker

import (
	"context"
	"log/slog"
	"sort"

	"github.com/joebot/relaybot/internal/store"
)

// SessionClearer resets a conversation's backend continuation state.
// Implemented by the session manager; declared here so the engine does not
// depend on it.
type SessionClearer interface {
	ClearSession(sessionKey string)
}

// Request carries the sender scope one response is processed under.
type Request struct {
	Scope      *store.Scope
	Channel    string
	ChatID     string
	SessionKey string
	Sessions   SessionClearer
}

// Engine runs extracted markers against storage. It is shared by the
// pipeline and by background producers (scheduler, heartbeat), which feed
// their own marker-bearing text through Process.
type Engine struct {
	handlers map[Tag]handlerFunc
}

type handlerFunc func(ctx context.Context, req *Request, m Marker) Outcome

// NewEngine creates an engine with the full catalog of handlers wired.
func NewEngine() *Engine {
	e := &Engine{handlers: make(map[Tag]handlerFunc, len(processOrder))}
	e.handlers[TagForgetConversation] = handleForgetConversation
	e.handlers[TagPurgeFacts] = handlePurgeFacts
	e.handlers[TagProjectActivate] = handleProjectActivate
	e.handlers[TagProjectDeactivate] = handleProjectDeactivate
	e.handlers[TagLangSwitch] = handleLangSwitch
	e.handlers[TagPersonality] = handlePersonality
	e.handlers[TagCancelTask] = handleCancelTask
	e.handlers[TagUpdateTask] = handleUpdateTask
	e.handlers[TagSchedule] = handleSchedule
	e.handlers[TagScheduleAction] = handleScheduleAction
	e.handlers[TagHeartbeatInterval] = handleHeartbeatInterval
	e.handlers[TagHeartbeatAdd] = handleHeartbeatAdd
	e.handlers[TagHeartbeatRemove] = handleHeartbeatRemove
	e.handlers[TagHeartbeatSuppress] = handleHeartbeatSuppress
	e.handlers[TagHeartbeatUnsuppress] = handleHeartbeatUnsuppress
	e.handlers[TagSkillImprove] = handleSkillImprove
	e.handlers[TagReward] = handleReward
	e.handlers[TagLesson] = handleLesson
	e.handlers[TagBugReport] = handleBugReport
	e.handlers[TagBuildProposal] = handleBuildProposal
	return e
}

// Process extracts markers from responseText, applies them in catalog
// order, builds verified confirmations, and returns the stripped text plus
// one outcome per marker instance. It never fails as a whole: a malformed
// or failing marker surfaces as a Failed/Skipped outcome while its
// siblings, stripping and delivery proceed normally.
func (e *Engine) Process(ctx context.Context, responseText string, req *Request) (string, []Outcome) {
	markers := Extract(responseText)
	if len(markers) == 0 {
		return Strip(responseText), nil
	}

	orderMarkers(markers)

	outcomes := make([]Outcome, 0, len(markers))
	for _, m := range markers {
		outcomes = append(outcomes, e.dispatch(ctx, req, m))
	}

	for i := range outcomes {
		confirm(req, &outcomes[i])
	}

	return Strip(responseText), outcomes
}

// dispatch runs one handler, converting a panic into a Failed outcome so a
// single bad marker can never take down processing of its siblings.
func (e *Engine) dispatch(ctx context.Context, req *Request, m Marker) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("marker handler panicked", "tag", string(m.Tag), "panic", r)
			out = failed(m.Tag, "internal error")
		}
	}()

	h, ok := e.handlers[m.Tag]
	if !ok {
		return skipped(m.Tag, "no handler")
	}
	out = h(ctx, req, m)
	slog.Info("Marker processed", "tag", string(m.Tag), "status", out.Status.String(), "detail", out.Detail)
	return out
}

// orderMarkers sorts by the catalog's fixed processing order; markers of
// the same tag keep their textual order.
func orderMarkers(markers []Marker) {
	rank := make(map[Tag]int, len(processOrder))
	for i, t := range processOrder {
		rank[t] = i
	}
	sort.SliceStable(markers, func(i, j int) bool {
		return rank[markers[i].Tag] < rank[markers[j].Tag]
	})
}
