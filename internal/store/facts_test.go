package store

import "testing"

func TestSetFactReservedKeys(t *testing.T) {
	s := newTestStore(t)
	sc := s.Scope("id1")

	for _, key := range []string{"project.active", "onboarding.stage", "lang", "personality", "heartbeat.interval"} {
		if err := sc.SetFact(key, "x"); err != ErrReservedKey {
			t.Errorf("SetFact(%q): got %v, want ErrReservedKey", key, err)
		}
		if err := sc.SetSystemFact(key, "x"); err != nil {
			t.Errorf("SetSystemFact(%q): %v", key, err)
		}
	}

	if err := sc.SetFact("favorite.color", "green"); err != nil {
		t.Fatalf("plain fact: %v", err)
	}
	v, err := sc.GetFact("favorite.color")
	if err != nil || v != "green" {
		t.Errorf("get fact: got %q, %v", v, err)
	}
}

func TestFactsExcludeReserved(t *testing.T) {
	s := newTestStore(t)
	sc := s.Scope("id1")

	sc.SetSystemFact("lang", "de")
	sc.SetFact("city", "Berlin")

	facts, err := sc.Facts()
	if err != nil {
		t.Fatalf("facts: %v", err)
	}
	if _, ok := facts["lang"]; ok {
		t.Error("reserved key leaked into Facts()")
	}
	if facts["city"] != "Berlin" {
		t.Errorf("city: got %q", facts["city"])
	}
}

func TestPurgeFactsKeepsReserved(t *testing.T) {
	s := newTestStore(t)
	sc := s.Scope("id1")

	sc.SetSystemFact("project.active", "alpha")
	sc.SetSystemFact("heartbeat.interval", "45")
	sc.SetFact("city", "Berlin")
	sc.SetFact("pet", "cat")

	n, err := sc.PurgeFacts()
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 {
		t.Errorf("purged: got %d, want 2", n)
	}

	if v, err := sc.GetFact("project.active"); err != nil || v != "alpha" {
		t.Errorf("project.active after purge: %q, %v", v, err)
	}
	if v, err := sc.GetFact("heartbeat.interval"); err != nil || v != "45" {
		t.Errorf("heartbeat.interval after purge: %q, %v", v, err)
	}
	if _, err := sc.GetFact("city"); err != ErrNotFound {
		t.Errorf("city should be purged, got %v", err)
	}
}

func TestFactUpsertAndDelete(t *testing.T) {
	s := newTestStore(t)
	sc := s.Scope("id1")

	sc.SetFact("mood", "ok")
	sc.SetFact("mood", "great")
	if v, _ := sc.GetFact("mood"); v != "great" {
		t.Errorf("upsert: got %q", v)
	}

	if err := sc.DeleteFact("mood"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := sc.GetFact("mood"); err != ErrNotFound {
		t.Errorf("after delete: got %v, want ErrNotFound", err)
	}
	if err := sc.DeleteFact("lang"); err != ErrReservedKey {
		t.Errorf("delete reserved: got %v, want ErrReservedKey", err)
	}
}

func TestFactsAreScoped(t *testing.T) {
	s := newTestStore(t)
	a := s.Scope("a")
	b := s.Scope("b")

	a.SetFact("city", "Berlin")
	if _, err := b.GetFact("city"); err != ErrNotFound {
		t.Errorf("scope leak: got %v, want ErrNotFound", err)
	}
}
