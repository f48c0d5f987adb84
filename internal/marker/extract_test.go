package marker

import (
	"strings"
	"testing"
)

func TestExtractLineStart(t *testing.T) {
	text := "Sure!\nSCHEDULE: buy milk | 2026-01-01T09:00:00 | none\nSee you then."
	markers := Extract(text)
	if len(markers) != 1 {
		t.Fatalf("got %d markers, want 1", len(markers))
	}
	m := markers[0]
	if m.Tag != TagSchedule {
		t.Errorf("tag: got %q", m.Tag)
	}
	if m.Inline {
		t.Error("line-start marker flagged inline")
	}
	if m.Field(0) != "buy milk" || m.Field(1) != "2026-01-01T09:00:00" || m.Field(2) != "none" {
		t.Errorf("fields: %v", m.Fields)
	}
	if m.Field(3) != "" {
		t.Errorf("out-of-range field: %q", m.Field(3))
	}
}

func TestExtractInline(t *testing.T) {
	text := "I'll remember that. LESSON: scheduling | confirm the timezone first"
	markers := Extract(text)
	if len(markers) != 1 {
		t.Fatalf("got %d markers, want 1", len(markers))
	}
	m := markers[0]
	if m.Tag != TagLesson || !m.Inline {
		t.Errorf("marker: %+v", m)
	}
	if m.Field(0) != "scheduling" || m.Field(1) != "confirm the timezone first" {
		t.Errorf("fields: %v", m.Fields)
	}
}

func TestExtractMultiple(t *testing.T) {
	text := strings.Join([]string{
		"Got it.",
		"SCHEDULE: one | 2026-01-01T09:00 | none",
		"SCHEDULE: two | 2026-01-02T09:00 | none",
		"PURGE_FACTS",
	}, "\n")
	markers := Extract(text)
	if len(markers) != 3 {
		t.Fatalf("got %d markers, want 3", len(markers))
	}
	if markers[2].Tag != TagPurgeFacts || len(markers[2].Fields) != 0 {
		t.Errorf("bare tag: %+v", markers[2])
	}
}

func TestExtractUnknownTagIgnored(t *testing.T) {
	markers := Extract("NUKE_EVERYTHING: now\nnormal text")
	if len(markers) != 0 {
		t.Errorf("unknown tag extracted: %+v", markers)
	}
}

func TestExtractPrefixTagsDistinct(t *testing.T) {
	markers := Extract("SCHEDULE_ACTION: summarize inbox | 2026-01-01T09:00 | daily")
	if len(markers) != 1 || markers[0].Tag != TagScheduleAction {
		t.Fatalf("got %+v, want one SCHEDULE_ACTION", markers)
	}
}

func TestStripWholeLineAndSuffix(t *testing.T) {
	text := "Sure!\nSCHEDULE: buy milk | 2026-01-01T09:00:00 | none\nSee you then."
	got := Strip(text)
	want := "Sure!\nSee you then."
	if got != want {
		t.Errorf("strip: got %q, want %q", got, want)
	}

	inline := "Done with that. PROJECT_ACTIVATE: garden"
	if got := Strip(inline); got != "Done with that." {
		t.Errorf("inline strip: got %q", got)
	}
}

func TestStripIsExhaustive(t *testing.T) {
	// Stripped output must never re-extract to anything.
	texts := []string{
		"SCHEDULE: a | 2026-01-01T09:00 | none\nLESSON: x | y\ntext",
		"prose HEARTBEAT_ADD: water plants",
		"PURGE_FACTS\nFORGET_CONVERSATION",
		"weird   SCHEDULE:    | ",
	}
	for _, text := range texts {
		stripped := Strip(text)
		if left := Extract(stripped); len(left) != 0 {
			t.Errorf("Strip(%q) left markers: %+v", text, left)
		}
	}
}

func TestStripKeepsPlainText(t *testing.T) {
	text := "No directives here.\nJust a schedule for your day, in prose."
	if got := Strip(text); got != text {
		t.Errorf("plain text changed: %q", got)
	}
}

func TestOrderMarkers(t *testing.T) {
	markers := []Marker{
		{Tag: TagSchedule, Line: 0},
		{Tag: TagPurgeFacts, Line: 1},
		{Tag: TagCancelTask, Line: 2},
		{Tag: TagSchedule, Line: 3},
		{Tag: TagForgetConversation, Line: 4},
	}
	orderMarkers(markers)

	wantTags := []Tag{TagForgetConversation, TagPurgeFacts, TagCancelTask, TagSchedule, TagSchedule}
	for i, w := range wantTags {
		if markers[i].Tag != w {
			t.Fatalf("position %d: got %q, want %q", i, markers[i].Tag, w)
		}
	}
	// Same-tag markers keep textual order.
	if markers[3].Line != 0 || markers[4].Line != 3 {
		t.Errorf("stable order violated: %+v", markers[3:])
	}
}

func TestWordOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"buy milk tomorrow", "buy milk tomorrow", 1.0, 1.0},
		{"buy milk", "walk the dog", 0, 0},
		{"buy milk at the store", "buy milk at the shop", 0.5, 0.9},
		{"", "anything", 0, 0},
	}
	for _, tt := range tests {
		got := wordOverlap(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("wordOverlap(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}
