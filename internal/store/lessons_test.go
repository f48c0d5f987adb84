package store

import (
	"fmt"
	"testing"
)

func TestUpsertLessonDeduplicates(t *testing.T) {
	s := newTestStore(t)
	sc := s.Scope("id1")

	first, err := sc.UpsertLesson("cooking", "always preheat the oven")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if first.Reinforced != 1 {
		t.Errorf("new lesson reinforced: got %d, want 1", first.Reinforced)
	}

	second, err := sc.UpsertLesson("cooking", "always preheat the oven")
	if err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("duplicate rule created a new row: %s vs %s", second.ID, first.ID)
	}
	if second.Reinforced != 2 {
		t.Errorf("reinforced: got %d, want 2", second.Reinforced)
	}

	n, _ := sc.LessonCount("cooking")
	if n != 1 {
		t.Errorf("lesson count: got %d, want 1", n)
	}
}

func TestUpsertLessonDifferentDomains(t *testing.T) {
	s := newTestStore(t)
	sc := s.Scope("id1")

	a, _ := sc.UpsertLesson("cooking", "same rule")
	b, _ := sc.UpsertLesson("scheduling", "same rule")
	if a.ID == b.ID {
		t.Error("same rule in different domains should be separate lessons")
	}
}

func TestLessonCap(t *testing.T) {
	s := newTestStore(t)
	sc := s.Scope("id1")

	for i := 0; i < maxLessonsPerDomain+5; i++ {
		if _, err := sc.UpsertLesson("chat", fmt.Sprintf("rule number %d", i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	n, err := sc.LessonCount("chat")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != maxLessonsPerDomain {
		t.Errorf("lesson count: got %d, want %d", n, maxLessonsPerDomain)
	}

	// Another domain is unaffected by the eviction.
	sc.UpsertLesson("other", "untouched")
	if n, _ := sc.LessonCount("other"); n != 1 {
		t.Errorf("other domain count: got %d, want 1", n)
	}
}

func TestRecordOutcome(t *testing.T) {
	s := newTestStore(t)
	sc := s.Scope("id1")

	id, err := sc.RecordOutcome(1, "scheduling", "confirm the timezone first")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(id) != 8 {
		t.Errorf("id length: got %d, want 8", len(id))
	}
}
