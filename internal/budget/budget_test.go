package budget

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// fakeLedger is a minimal in-process store.TokenLedgerStore for unit tests;
// it tracks only today's proactive/reactive totals, which is all Tracker reads.
type fakeLedger struct {
	usage map[store.TokenScope]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{usage: map[store.TokenScope]int{}}
}

func (f *fakeLedger) Log(ctx context.Context, entry *store.TokenLedgerEntry) error {
	f.usage[entry.Scope] += entry.TokensInput + entry.TokensOutput
	return nil
}

func (f *fakeLedger) DailyUsage(ctx context.Context, scope store.TokenScope, day time.Time) (int, error) {
	return f.usage[scope], nil
}

func (f *fakeLedger) TodayByScope(ctx context.Context) (map[store.TokenScope]int, error) {
	out := make(map[store.TokenScope]int, len(f.usage))
	for k, v := range f.usage {
		out[k] = v
	}
	return out, nil
}

func TestLogTokens_AccumulatesUsage(t *testing.T) {
	ledger := newFakeLedger()
	tracker := New(ledger, config.BudgetConfig{DailyTokenLimit: 1000})
	ctx := context.Background()

	if err := tracker.LogTokens(ctx, store.ScopeProactive, "anthropic", 100, 50); err != nil {
		t.Fatalf("LogTokens: %v", err)
	}
	used, err := tracker.DailyUsage(ctx, store.ScopeProactive)
	if err != nil {
		t.Fatalf("DailyUsage: %v", err)
	}
	if used != 150 {
		t.Fatalf("expected 150 tokens used, got %d", used)
	}
}

func TestRemaining_ReactiveIsUnbounded(t *testing.T) {
	ledger := newFakeLedger()
	tracker := New(ledger, config.BudgetConfig{DailyTokenLimit: 10})
	ctx := context.Background()

	remaining, err := tracker.Remaining(ctx, store.ScopeReactive)
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != unboundedRemaining {
		t.Fatalf("expected unbounded remaining for reactive scope, got %d", remaining)
	}
}

func TestRemaining_ProactiveClampsAtZero(t *testing.T) {
	ledger := newFakeLedger()
	tracker := New(ledger, config.BudgetConfig{DailyTokenLimit: 100})
	ctx := context.Background()

	if err := tracker.LogTokens(ctx, store.ScopeProactive, "anthropic", 80, 80); err != nil {
		t.Fatalf("LogTokens: %v", err)
	}
	remaining, err := tracker.Remaining(ctx, store.ScopeProactive)
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected remaining clamped to 0, got %d", remaining)
	}
}

func TestAvailable_RespectsEstimate(t *testing.T) {
	ledger := newFakeLedger()
	tracker := New(ledger, config.BudgetConfig{DailyTokenLimit: 1000})
	ctx := context.Background()

	if err := tracker.LogTokens(ctx, store.ScopeProactive, "anthropic", 900, 0); err != nil {
		t.Fatalf("LogTokens: %v", err)
	}

	ok, err := tracker.Available(ctx, store.ScopeProactive, 50)
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if !ok {
		t.Fatalf("expected 50-token estimate to fit in 100 remaining")
	}

	ok, err = tracker.Available(ctx, store.ScopeProactive, 500)
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if ok {
		t.Fatalf("expected 500-token estimate to exceed 100 remaining")
	}
}

func TestCriticalExceeded(t *testing.T) {
	ledger := newFakeLedger()
	tracker := New(ledger, config.BudgetConfig{DailyTokenLimit: 100, HardThreshold: 0.95})
	ctx := context.Background()

	crit, err := tracker.CriticalExceeded(ctx)
	if err != nil {
		t.Fatalf("CriticalExceeded: %v", err)
	}
	if crit {
		t.Fatalf("expected not critical at 0 usage")
	}

	if err := tracker.LogTokens(ctx, store.ScopeProactive, "anthropic", 96, 0); err != nil {
		t.Fatalf("LogTokens: %v", err)
	}
	crit, err = tracker.CriticalExceeded(ctx)
	if err != nil {
		t.Fatalf("CriticalExceeded: %v", err)
	}
	if !crit {
		t.Fatalf("expected critical at 96%% usage with 95%% hard threshold")
	}
}
