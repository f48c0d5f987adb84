package marker

import (
	"context"
	"strings"
	"testing"

	"github.com/joebot/relaybot/internal/store"
)

type fakeSessions struct {
	cleared []string
}

func (f *fakeSessions) ClearSession(key string) {
	f.cleared = append(f.cleared, key)
}

func newTestRequest(t *testing.T) (*Request, *fakeSessions) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	sessions := &fakeSessions{}
	return &Request{
		Scope:      s.Scope("id1"),
		Channel:    "telegram",
		ChatID:     "42",
		SessionKey: "telegram:42",
		Sessions:   sessions,
	}, sessions
}

func TestProcessSchedule(t *testing.T) {
	engine := NewEngine()
	req, _ := newTestRequest(t)

	text := "Sure!\nSCHEDULE: buy milk | 2026-01-01T09:00:00 | none\nSee you then."
	cleaned, outcomes := engine.Process(context.Background(), text, req)

	if cleaned != "Sure!\nSee you then." {
		t.Errorf("cleaned: %q", cleaned)
	}
	if len(outcomes) != 1 {
		t.Fatalf("outcomes: got %d, want 1", len(outcomes))
	}
	o := outcomes[0]
	if o.Status != Applied {
		t.Fatalf("status: %s (%s)", o.Status, o.Detail)
	}
	if !strings.Contains(o.Confirm, "✓ Scheduled: buy milk") {
		t.Errorf("confirm: %q", o.Confirm)
	}

	// The task really exists.
	tasks, _ := req.Scope.PendingTasks()
	if len(tasks) != 1 || tasks[0].Description != "buy milk" {
		t.Errorf("stored tasks: %+v", tasks)
	}
	if tasks[0].Kind != store.KindReminder || tasks[0].Channel != "telegram" {
		t.Errorf("task origin: %+v", tasks[0])
	}
}

func TestLessonConfirmVerifies(t *testing.T) {
	req, _ := newTestRequest(t)

	// A real write stays Applied.
	l, err := req.Scope.UpsertLesson("cooking", "salt the water")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	good := Outcome{Tag: TagLesson, Status: Applied, Ref: l.ID}
	confirm(req, &good)
	if good.Status != Applied || good.Confirm != "" {
		t.Errorf("verified lesson: %+v", good)
	}

	// A ref with no backing row downgrades instead of confirming.
	bad := Outcome{Tag: TagLesson, Status: Applied, Ref: "missing"}
	confirm(req, &bad)
	if bad.Status != Failed {
		t.Errorf("unverified lesson status: %s", bad.Status)
	}
}

func TestProcessOneOutcomePerOccurrence(t *testing.T) {
	engine := NewEngine()
	req, _ := newTestRequest(t)

	text := strings.Join([]string{
		"SCHEDULE: one | 2026-01-01T09:00 | none",
		"SCHEDULE: two | 2026-01-02T09:00 | none",
		"SCHEDULE: three | 2026-01-03T09:00 | none",
	}, "\n")
	_, outcomes := engine.Process(context.Background(), text, req)
	if len(outcomes) != 3 {
		t.Fatalf("outcomes: got %d, want 3", len(outcomes))
	}
	tasks, _ := req.Scope.PendingTasks()
	if len(tasks) != 3 {
		t.Errorf("tasks: got %d, want 3", len(tasks))
	}
}

func TestProcessMalformedDoesNotBlockSiblings(t *testing.T) {
	engine := NewEngine()
	req, _ := newTestRequest(t)

	text := strings.Join([]string{
		"SCHEDULE: broken | not-a-date | none",
		"SCHEDULE: good | 2026-01-01T09:00 | none",
	}, "\n")
	cleaned, outcomes := engine.Process(context.Background(), text, req)

	if len(outcomes) != 2 {
		t.Fatalf("outcomes: got %d, want 2", len(outcomes))
	}
	if outcomes[0].Status != Failed {
		t.Errorf("broken marker: %s", outcomes[0].Status)
	}
	if outcomes[1].Status != Applied {
		t.Errorf("good marker: %s (%s)", outcomes[1].Status, outcomes[1].Detail)
	}
	// Both occurrences are stripped regardless of outcome.
	if strings.Contains(cleaned, "SCHEDULE") {
		t.Errorf("marker leaked into cleaned text: %q", cleaned)
	}
	tasks, _ := req.Scope.PendingTasks()
	if len(tasks) != 1 || tasks[0].Description != "good" {
		t.Errorf("tasks: %+v", tasks)
	}
}

func TestProcessCausalOrder(t *testing.T) {
	engine := NewEngine()
	req, _ := newTestRequest(t)
	req.Scope.SetFact("old", "stale")

	// Textually the schedule comes first, but the purge must not wipe
	// state the schedule pass created, and PURGE_FACTS runs first by
	// catalog order. Facts written after processing survive.
	text := strings.Join([]string{
		"SCHEDULE: new start | 2026-01-01T09:00 | none",
		"PURGE_FACTS",
	}, "\n")
	_, outcomes := engine.Process(context.Background(), text, req)

	if outcomes[0].Tag != TagPurgeFacts {
		t.Errorf("first outcome: %q, want PURGE_FACTS", outcomes[0].Tag)
	}
	if outcomes[1].Tag != TagSchedule || outcomes[1].Status != Applied {
		t.Errorf("second outcome: %+v", outcomes[1])
	}
	facts, _ := req.Scope.Facts()
	if len(facts) != 0 {
		t.Errorf("facts not purged: %v", facts)
	}
	tasks, _ := req.Scope.PendingTasks()
	if len(tasks) != 1 {
		t.Errorf("scheduled task missing after purge: %+v", tasks)
	}
}

func TestProcessCancelMissingTask(t *testing.T) {
	engine := NewEngine()
	req, _ := newTestRequest(t)

	_, outcomes := engine.Process(context.Background(), "CANCEL_TASK: deadbeef", req)
	if len(outcomes) != 1 || outcomes[0].Status != Failed {
		t.Fatalf("outcomes: %+v", outcomes)
	}
	if !strings.Contains(outcomes[0].Confirm, "couldn't cancel") {
		t.Errorf("failure line: %q", outcomes[0].Confirm)
	}
}

func TestProcessCancelThenVerify(t *testing.T) {
	engine := NewEngine()
	req, _ := newTestRequest(t)

	_, outcomes := engine.Process(context.Background(),
		"SCHEDULE: dentist | 2026-01-01T09:00 | none", req)
	id := outcomes[0].Ref

	_, outcomes = engine.Process(context.Background(), "CANCEL_TASK: "+id, req)
	if outcomes[0].Status != Applied {
		t.Fatalf("cancel: %s (%s)", outcomes[0].Status, outcomes[0].Detail)
	}
	if !strings.Contains(outcomes[0].Confirm, "✓ Cancelled: dentist") {
		t.Errorf("confirm: %q", outcomes[0].Confirm)
	}
}

func TestProcessForgetConversation(t *testing.T) {
	engine := NewEngine()
	req, sessions := newTestRequest(t)
	req.Scope.StoreExchange("telegram:42", "hi", "hello")

	_, outcomes := engine.Process(context.Background(), "FORGET_CONVERSATION", req)
	if outcomes[0].Status != Applied {
		t.Fatalf("forget: %+v", outcomes[0])
	}
	if outcomes[0].Confirm != "✓ Conversation forgotten." {
		t.Errorf("confirm: %q", outcomes[0].Confirm)
	}
	if len(sessions.cleared) != 1 || sessions.cleared[0] != "telegram:42" {
		t.Errorf("session not cleared: %v", sessions.cleared)
	}
	if ex, _ := req.Scope.RecentExchanges("telegram:42", 10); len(ex) != 0 {
		t.Errorf("exchanges still open: %+v", ex)
	}
}

func TestProcessRewardValidation(t *testing.T) {
	engine := NewEngine()
	req, _ := newTestRequest(t)

	tests := []struct {
		payload string
		want    Status
	}{
		{"1 | scheduling | went well", Applied},
		{"-1 | scheduling | wrong timezone", Applied},
		{"0 | scheduling | ", Applied},
		{"5 | scheduling | out of range", Failed},
		{"great | scheduling | not a number", Failed},
	}
	for _, tt := range tests {
		_, outcomes := engine.Process(context.Background(), "REWARD: "+tt.payload, req)
		if len(outcomes) != 1 || outcomes[0].Status != tt.want {
			t.Errorf("REWARD %q: %+v, want %s", tt.payload, outcomes, tt.want)
		}
	}
}

func TestProcessSkillImprove(t *testing.T) {
	engine := NewEngine()
	req, _ := newTestRequest(t)

	_, outcomes := engine.Process(context.Background(),
		"SKILL_IMPROVE: summarization | lead with the conclusion", req)
	if outcomes[0].Status != Applied {
		t.Fatalf("skill improve: %+v", outcomes[0])
	}
	n, _ := req.Scope.LessonCount("skill:summarization")
	if n != 1 {
		t.Errorf("lesson count: got %d, want 1", n)
	}
}

func TestProcessDuplicateWarning(t *testing.T) {
	engine := NewEngine()
	req, _ := newTestRequest(t)

	engine.Process(context.Background(),
		"SCHEDULE: buy milk at the store tomorrow | 2026-01-01T09:00 | none", req)
	_, outcomes := engine.Process(context.Background(),
		"SCHEDULE: buy milk at the store | 2026-01-02T09:00 | none", req)

	if outcomes[0].Status != Applied {
		t.Fatalf("second schedule: %+v", outcomes[0])
	}
	if !strings.Contains(outcomes[0].Confirm, "similar to an existing task") {
		t.Errorf("no duplicate warning: %q", outcomes[0].Confirm)
	}
}

func TestProcessNoMarkers(t *testing.T) {
	engine := NewEngine()
	req, _ := newTestRequest(t)

	cleaned, outcomes := engine.Process(context.Background(), "Just a normal reply.", req)
	if cleaned != "Just a normal reply." || outcomes != nil {
		t.Errorf("plain text: %q, %+v", cleaned, outcomes)
	}
}

func TestProcessHeartbeatMarkers(t *testing.T) {
	engine := NewEngine()
	req, _ := newTestRequest(t)

	text := strings.Join([]string{
		"HEARTBEAT_ADD: water the plants",
		"HEARTBEAT_INTERVAL: 45",
		"HEARTBEAT_SUPPRESS: tasks",
	}, "\n")
	_, outcomes := engine.Process(context.Background(), text, req)
	for _, o := range outcomes {
		if o.Status != Applied {
			t.Errorf("%s: %s (%s)", o.Tag, o.Status, o.Detail)
		}
	}

	items, _ := req.Scope.HeartbeatItems()
	if len(items) != 1 || items[0] != "water the plants" {
		t.Errorf("items: %v", items)
	}
	if v, _ := req.Scope.GetFact("heartbeat.interval"); v != "45" {
		t.Errorf("interval fact: %q", v)
	}
	suppressed, _ := req.Scope.SuppressedHeartbeatSections()
	if !suppressed["tasks"] {
		t.Error("tasks not suppressed")
	}

	// Unsuppressing something never suppressed is skipped, not failed.
	_, outcomes = engine.Process(context.Background(), "HEARTBEAT_UNSUPPRESS: weather", req)
	if outcomes[0].Status != Skipped {
		t.Errorf("unsuppress missing: %s", outcomes[0].Status)
	}
}
