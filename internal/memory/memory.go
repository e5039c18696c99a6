// Package memory maintains continuity between proactive cycles: an
// append-only log of cycle summaries plus a rolling "aroma" snapshot of
// contextual state to seed the next cycle's prompt (spec §4.9, grounded on
// original_source/app/memory/writeback.py).
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// CycleSummary is what gets appended after every proactive cycle.
type CycleSummary struct {
	Timestamp     time.Time `json:"timestamp"`
	Action        string    `json:"action"`
	Certainty     float64   `json:"certainty"`
	Significance  float64   `json:"significance"`
	ResultStatus  string    `json:"result_status"` // "success" or "failed"
	ResultSummary string    `json:"result_summary"`
}

// Aroma is the contextual snapshot carried forward into the next cycle's
// prompt: current focus, pending items, and anything else worth recalling.
type Aroma struct {
	Timestamp time.Time      `json:"timestamp"`
	Context   map[string]any `json:"context"`
}

// Store is the business-logic layer over store.MemoryStore.
type Store struct {
	backend store.MemoryStore
}

func New(backend store.MemoryStore) *Store {
	return &Store{backend: backend}
}

// AppendCycleSummary records one proactive cycle's outcome.
func (m *Store) AppendCycleSummary(ctx context.Context, s CycleSummary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("memory: marshal cycle summary: %w", err)
	}
	return m.backend.Append(ctx, &store.MemoryEntry{Kind: store.MemoryCycleSummary, Payload: payload})
}

// RecentCycleSummaries returns the N most recent cycle summaries, newest first.
func (m *Store) RecentCycleSummaries(ctx context.Context, limit int) ([]CycleSummary, error) {
	entries, err := m.backend.Recent(ctx, store.MemoryCycleSummary, limit)
	if err != nil {
		return nil, err
	}
	out := make([]CycleSummary, 0, len(entries))
	for _, e := range entries {
		var s CycleSummary
		if err := json.Unmarshal(e.Payload, &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// StoreAroma snapshots context for the next cycle's prompt, and logs a
// marked-up diff against the previous snapshot at debug level so
// operators can see how the agent's self-narrative drifts cycle to cycle.
func (m *Store) StoreAroma(ctx context.Context, context map[string]any) error {
	prev, err := m.LastAroma(ctx)
	if err == nil && prev != nil {
		logAromaDelta(prev.Context, context)
	}

	payload, err := json.Marshal(Aroma{Timestamp: time.Now(), Context: context})
	if err != nil {
		return fmt.Errorf("memory: marshal aroma: %w", err)
	}
	return m.backend.Append(ctx, &store.MemoryEntry{Kind: store.MemoryAroma, Payload: payload})
}

// LastAroma returns the most recent aroma snapshot, or nil if none exists.
func (m *Store) LastAroma(ctx context.Context) (*Aroma, error) {
	entries, err := m.backend.Recent(ctx, store.MemoryAroma, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	var a Aroma
	if err := json.Unmarshal(entries[0].Payload, &a); err != nil {
		return nil, fmt.Errorf("memory: unmarshal aroma: %w", err)
	}
	return &a, nil
}

// logAromaDelta diffs two aroma contexts (rendered as pretty JSON). When
// anything changed it logs the whole rendered text with insertions and
// deletions marked; identical contexts log nothing.
func logAromaDelta(prev, next map[string]any) {
	prevJSON, err1 := json.MarshalIndent(prev, "", "  ")
	nextJSON, err2 := json.MarshalIndent(next, "", "  ")
	if err1 != nil || err2 != nil {
		return
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(prevJSON), string(nextJSON), false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	changed := false
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffEqual {
			changed = true
			break
		}
	}
	if changed {
		slog.Debug("proactive aroma changed", "delta", dmp.DiffPrettyText(diffs))
	}
}
