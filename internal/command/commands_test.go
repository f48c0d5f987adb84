package command

import (
	"strings"
	"testing"
	"time"

	"github.com/joebot/relaybot/internal/session"
	"github.com/joebot/relaybot/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, *store.Scope) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewHandler(s, session.NewManager(t.TempDir())), s.Scope("id1")
}

func TestIsCommand(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"/help", true},
		{"  /tasks", true},
		{"help", false},
		{"what does /help do?", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsCommand(tt.text); got != tt.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestHelpAndUnknown(t *testing.T) {
	h, scope := newTestHandler(t)

	help := h.Execute(scope, "telegram:42", "/help")
	if !strings.Contains(help, "/tasks") {
		t.Errorf("help: %q", help)
	}
	if got := h.Execute(scope, "telegram:42", "/dance"); !strings.Contains(got, "Unknown command") {
		t.Errorf("unknown: %q", got)
	}
}

func TestStatusCommand(t *testing.T) {
	h, scope := newTestHandler(t)

	got := h.Execute(scope, "telegram:42", "/status")
	if !strings.Contains(got, "Pending tasks: 0") {
		t.Errorf("empty status: %q", got)
	}
	if strings.Contains(got, "Active project") {
		t.Errorf("project line without project: %q", got)
	}

	scope.CreateTask("buy milk", time.Now().Add(time.Hour), store.RepeatNone, store.KindReminder, "", "")
	scope.SetFact("city", "Berlin")
	scope.SetSystemFact("project.active", "garden shed")
	got = h.Execute(scope, "telegram:42", "/status")
	if !strings.Contains(got, "Pending tasks: 1") || !strings.Contains(got, "Stored facts: 1") {
		t.Errorf("status: %q", got)
	}
	if !strings.Contains(got, "Active project: garden shed") {
		t.Errorf("project line: %q", got)
	}
}

func TestTasksCommand(t *testing.T) {
	h, scope := newTestHandler(t)

	if got := h.Execute(scope, "telegram:42", "/tasks"); got != "No pending tasks." {
		t.Errorf("empty: %q", got)
	}

	id, _ := scope.CreateTask("buy milk", time.Now().Add(time.Hour), store.RepeatDaily, store.KindReminder, "", "")
	got := h.Execute(scope, "telegram:42", "/tasks")
	if !strings.Contains(got, "buy milk") || !strings.Contains(got, id) || !strings.Contains(got, "(daily)") {
		t.Errorf("tasks: %q", got)
	}
}

func TestCancelCommand(t *testing.T) {
	h, scope := newTestHandler(t)

	if got := h.Execute(scope, "telegram:42", "/cancel"); !strings.Contains(got, "Usage") {
		t.Errorf("no args: %q", got)
	}
	if got := h.Execute(scope, "telegram:42", "/cancel nope"); !strings.Contains(got, "No pending task") {
		t.Errorf("missing: %q", got)
	}

	id, _ := scope.CreateTask("dentist", time.Now().Add(time.Hour), store.RepeatNone, store.KindReminder, "", "")
	got := h.Execute(scope, "telegram:42", "/cancel "+id)
	if !strings.Contains(got, "Cancelled") {
		t.Errorf("cancel: %q", got)
	}
	task, _ := scope.GetTask(id)
	if task.Status != store.TaskCancelled {
		t.Errorf("status: %q", task.Status)
	}
}

func TestProjectCommand(t *testing.T) {
	h, scope := newTestHandler(t)

	if got := h.Execute(scope, "telegram:42", "/project"); got != "No active project." {
		t.Errorf("no project: %q", got)
	}
	if got := h.Execute(scope, "telegram:42", "/project garden shed"); got != "Project active: garden shed" {
		t.Errorf("activate: %q", got)
	}
	if got := h.Execute(scope, "telegram:42", "/project"); got != "Active project: garden shed" {
		t.Errorf("show: %q", got)
	}
	if got := h.Execute(scope, "telegram:42", "/project off"); got != "Project deactivated." {
		t.Errorf("deactivate: %q", got)
	}
}

func TestFactsCommand(t *testing.T) {
	h, scope := newTestHandler(t)

	if got := h.Execute(scope, "telegram:42", "/facts"); !strings.Contains(got, "don't have any") {
		t.Errorf("empty: %q", got)
	}
	scope.SetFact("city", "Berlin")
	scope.SetSystemFact("lang", "de")
	got := h.Execute(scope, "telegram:42", "/facts")
	if !strings.Contains(got, "city: Berlin") {
		t.Errorf("facts: %q", got)
	}
	if strings.Contains(got, "lang") {
		t.Errorf("reserved fact leaked: %q", got)
	}
}

func TestFactsForget(t *testing.T) {
	h, scope := newTestHandler(t)

	if got := h.Execute(scope, "telegram:42", "/facts forget"); !strings.Contains(got, "Usage") {
		t.Errorf("no key: %q", got)
	}
	if got := h.Execute(scope, "telegram:42", "/facts forget city"); !strings.Contains(got, "don't have a fact") {
		t.Errorf("missing key: %q", got)
	}
	if got := h.Execute(scope, "telegram:42", "/facts forget lang"); !strings.Contains(got, "managed by the system") {
		t.Errorf("reserved key: %q", got)
	}

	scope.SetFact("city", "Berlin")
	if got := h.Execute(scope, "telegram:42", "/facts forget city"); got != "Dropped: city" {
		t.Errorf("drop: %q", got)
	}
	if _, err := scope.GetFact("city"); err != store.ErrNotFound {
		t.Errorf("fact still present: %v", err)
	}
}

func TestLinkCommand(t *testing.T) {
	h, _ := newTestHandler(t)
	me, err := h.store.ResolveIdentity("telegram", "100")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	other, err := h.store.ResolveIdentity("discord", "200")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	h.store.Scope(other.ID).CreateTask("water plants", time.Now().Add(time.Hour), store.RepeatNone, store.KindReminder, "", "")
	scope := h.store.Scope(me.ID)

	if got := h.Execute(scope, "telegram:100", "/link"); !strings.Contains(got, "Usage") {
		t.Errorf("no args: %q", got)
	}
	if got := h.Execute(scope, "telegram:100", "/link telegram 100"); !strings.Contains(got, "already this one") {
		t.Errorf("self link: %q", got)
	}

	if got := h.Execute(scope, "telegram:100", "/link discord 200"); !strings.Contains(got, "Linked discord:200") {
		t.Errorf("link: %q", got)
	}
	resolved, err := h.store.ResolveIdentity("discord", "200")
	if err != nil || resolved.ID != me.ID {
		t.Errorf("alias not repointed: %+v, %v", resolved, err)
	}
	tasks, _ := scope.PendingTasks()
	if len(tasks) != 1 || tasks[0].Description != "water plants" {
		t.Errorf("merged tasks: %+v", tasks)
	}
}

func TestForgetCommand(t *testing.T) {
	h, scope := newTestHandler(t)

	scope.StoreExchange("telegram:42", "q", "a")
	got := h.Execute(scope, "telegram:42", "/forget")
	if !strings.Contains(got, "Forgotten") {
		t.Errorf("forget: %q", got)
	}
	if ex, _ := scope.RecentExchanges("telegram:42", 10); len(ex) != 0 {
		t.Errorf("exchanges still open: %+v", ex)
	}
}
