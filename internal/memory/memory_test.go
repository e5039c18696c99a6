package memory

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// fakeBackend is a minimal in-process store.MemoryStore for unit tests.
type fakeBackend struct {
	entries []*store.MemoryEntry
}

func (f *fakeBackend) Append(ctx context.Context, e *store.MemoryEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeBackend) Recent(ctx context.Context, kind store.MemoryEntryKind, limit int) ([]*store.MemoryEntry, error) {
	var matched []*store.MemoryEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].Kind == kind {
			matched = append(matched, f.entries[i])
			if len(matched) >= limit {
				break
			}
		}
	}
	return matched, nil
}

func TestAppendAndRecentCycleSummaries(t *testing.T) {
	backend := &fakeBackend{}
	m := New(backend)
	ctx := context.Background()

	for _, action := range []string{"meditate", "communicate", "ask_master"} {
		if err := m.AppendCycleSummary(ctx, CycleSummary{Action: action, ResultStatus: "success"}); err != nil {
			t.Fatalf("AppendCycleSummary: %v", err)
		}
	}

	recent, err := m.RecentCycleSummaries(ctx, 2)
	if err != nil {
		t.Fatalf("RecentCycleSummaries: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].Action != "ask_master" || recent[1].Action != "communicate" {
		t.Fatalf("expected newest-first order, got %+v", recent)
	}
}

func TestStoreAndLastAroma(t *testing.T) {
	backend := &fakeBackend{}
	m := New(backend)
	ctx := context.Background()

	if a, err := m.LastAroma(ctx); err != nil || a != nil {
		t.Fatalf("expected nil aroma before any write, got %+v err=%v", a, err)
	}

	if err := m.StoreAroma(ctx, map[string]any{"current_focus": "skill development"}); err != nil {
		t.Fatalf("StoreAroma: %v", err)
	}
	if err := m.StoreAroma(ctx, map[string]any{"current_focus": "idle"}); err != nil {
		t.Fatalf("StoreAroma: %v", err)
	}

	a, err := m.LastAroma(ctx)
	if err != nil {
		t.Fatalf("LastAroma: %v", err)
	}
	if a == nil || a.Context["current_focus"] != "idle" {
		t.Fatalf("expected latest aroma to reflect second write, got %+v", a)
	}
}
