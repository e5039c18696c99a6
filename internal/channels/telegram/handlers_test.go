package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessage_ShortTextUnsplit(t *testing.T) {
	got := splitMessage("hello world", 4096)
	if len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("expected single unsplit part, got %v", got)
	}
}

func TestSplitMessage_EachChunkWithinLimit(t *testing.T) {
	text := strings.Repeat("word ", 2000) // well over any reasonable max
	const max = 100
	parts := splitMessage(text, max)
	if len(parts) < 2 {
		t.Fatalf("expected text to be split into multiple parts")
	}
	for i, p := range parts {
		if len(p) > max {
			t.Fatalf("part %d exceeds max: len=%d", i, len(p))
		}
	}
}

func TestSplitMessage_RoundTripsModuloWhitespace(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps. ", 300)
	parts := splitMessage(text, 4096)
	joined := strings.Join(parts, "")
	if strings.TrimSpace(strings.Join(strings.Fields(joined), " ")) !=
		strings.TrimSpace(strings.Join(strings.Fields(text), " ")) {
		t.Fatalf("split+join did not round-trip modulo whitespace")
	}
}

func TestSplitMessage_PrefersParagraphBoundary(t *testing.T) {
	text := strings.Repeat("a", 50) + "\n\n" + strings.Repeat("b", 50)
	parts := splitMessage(text, 60)
	if len(parts) < 2 {
		t.Fatalf("expected a split, got %v", parts)
	}
	if strings.Contains(parts[0], "b") {
		t.Fatalf("expected first part to stop at the paragraph boundary, got %q", parts[0])
	}
}

func TestFindSplitPoint_FallsBackToHardCutWhenNoBoundary(t *testing.T) {
	text := strings.Repeat("x", 200)
	if got := findSplitPoint(text, 50); got != 50 {
		t.Fatalf("expected hard cut at max when no boundary exists, got %d", got)
	}
}
