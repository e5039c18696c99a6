package reactive

import (
	"strings"
	"testing"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

func TestArtifactSummary_PendingYieldsNothing(t *testing.T) {
	a := &store.Artifact{Kind: store.ArtifactVoiceTranscript, Status: store.ArtifactPending}
	if got := artifactSummary(a); got != "" {
		t.Fatalf("expected empty summary for pending artifact, got %q", got)
	}
}

func TestArtifactSummary_VoiceTranscript(t *testing.T) {
	a := &store.Artifact{
		Kind:    store.ArtifactVoiceTranscript,
		Status:  store.ArtifactDone,
		Content: []byte(`{"text":"please call me back"}`),
	}
	got := artifactSummary(a)
	if !strings.HasPrefix(got, "[Voice message]: ") || !strings.Contains(got, "please call me back") {
		t.Fatalf("unexpected voice summary: %q", got)
	}
}

func TestArtifactSummary_ImageWithDescription(t *testing.T) {
	a := &store.Artifact{
		Kind:    store.ArtifactImageJSON,
		Status:  store.ArtifactDone,
		Content: []byte(`{"description":"a cat on a chair","objects":["cat","chair"]}`),
	}
	got := artifactSummary(a)
	if got != "[Image]: a cat on a chair" {
		t.Fatalf("unexpected image summary: %q", got)
	}
}

func TestArtifactSummary_ImageWithoutDescription(t *testing.T) {
	a := &store.Artifact{
		Kind:    store.ArtifactImageJSON,
		Status:  store.ArtifactDone,
		Content: []byte(`{}`),
	}
	if got := artifactSummary(a); got != "[Image attached]" {
		t.Fatalf("unexpected fallback image summary: %q", got)
	}
}

func TestArtifactSummary_OCRText(t *testing.T) {
	a := &store.Artifact{
		Kind:    store.ArtifactOCRText,
		Status:  store.ArtifactDone,
		Content: []byte(`{"text":"invoice total: $42"}`),
	}
	got := artifactSummary(a)
	if got != "[Document]: invoice total: $42" {
		t.Fatalf("unexpected OCR summary: %q", got)
	}
}

func TestArtifactSummary_UnknownKindYieldsNothing(t *testing.T) {
	a := &store.Artifact{Kind: store.ArtifactFileMeta, Status: store.ArtifactDone, Content: []byte(`{}`)}
	if got := artifactSummary(a); got != "" {
		t.Fatalf("expected empty summary for unmapped kind, got %q", got)
	}
}

func TestPreview_ShortStringUnchanged(t *testing.T) {
	if got := preview("  short text  "); got != "short text" {
		t.Fatalf("expected trimmed short text unchanged, got %q", got)
	}
}

func TestPreview_TruncatesLongStringWithEllipsis(t *testing.T) {
	long := strings.Repeat("a", 250)
	got := preview(long)
	if len(got) != summaryPreviewChars+3 {
		t.Fatalf("expected truncated length %d, got %d", summaryPreviewChars+3, len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}
