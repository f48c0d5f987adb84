package channel

import (
	"strings"
	"testing"
)

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("short", 2000); len(got) != 1 || got[0] != "short" {
		t.Errorf("short message: %v", got)
	}

	long := strings.Repeat("a", 4500)
	chunks := splitMessage(long, 2000)
	if len(chunks) != 3 {
		t.Fatalf("chunks: got %d, want 3", len(chunks))
	}
	var total int
	for _, c := range chunks {
		if len(c) > 2000 {
			t.Errorf("chunk over limit: %d", len(c))
		}
		total += len(c)
	}
	if total != 4500 {
		t.Errorf("content lost: %d of 4500", total)
	}
}

func TestSplitMessagePrefersNewlines(t *testing.T) {
	text := strings.Repeat("b", 1500) + "\n" + strings.Repeat("c", 1000)
	chunks := splitMessage(text, 2000)
	if len(chunks) != 2 {
		t.Fatalf("chunks: got %d, want 2", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], strings.Repeat("b", 10)) {
		t.Errorf("split did not land on the newline: %q...", chunks[0][:20])
	}
}
