package proactive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/goclaw/internal/budget"
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// fakeLedger is a minimal in-process store.TokenLedgerStore for unit tests;
// it tracks only today's totals by scope, which is all the Tracker reads.
type fakeLedger struct {
	usage map[store.TokenScope]int
}

func (f *fakeLedger) Log(ctx context.Context, e *store.TokenLedgerEntry) error {
	f.usage[e.Scope] += e.TokensInput + e.TokensOutput
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

func schedulerWithUsageRatio(t *testing.T, limit, used int) *Scheduler {
	t.Helper()
	ledger := &fakeLedger{usage: map[store.TokenScope]int{store.ScopeProactive: used}}
	tracker := budget.New(ledger, config.BudgetConfig{DailyTokenLimit: limit})
	return New(Deps{
		Budget: tracker,
		Config: config.ProactiveConfig{MinIntervalSeconds: 60, MaxIntervalSeconds: 3600},
	})
}

func TestDynamicInterval_LowUsageStaysNearMin(t *testing.T) {
	s := schedulerWithUsageRatio(t, 1000, 0)
	got := s.dynamicInterval(context.Background())
	if got != 60*time.Second {
		t.Fatalf("expected min interval at 0%% usage, got %v", got)
	}
}

func TestDynamicInterval_MidUsageAt300s(t *testing.T) {
	s := schedulerWithUsageRatio(t, 1000, 500) // ratio exactly 0.5
	got := s.dynamicInterval(context.Background())
	if got != 300*time.Second {
		t.Fatalf("expected 300s at the 50%% breakpoint, got %v", got)
	}
}

func TestDynamicInterval_HighUsageAt1800s(t *testing.T) {
	s := schedulerWithUsageRatio(t, 1000, 800) // ratio exactly 0.8
	got := s.dynamicInterval(context.Background())
	if got != 1800*time.Second {
		t.Fatalf("expected 1800s at the 80%% breakpoint, got %v", got)
	}
}

func TestDynamicInterval_ClampsToMaxAtFullUsage(t *testing.T) {
	s := schedulerWithUsageRatio(t, 1000, 1000) // ratio 1.0
	got := s.dynamicInterval(context.Background())
	if got != 3600*time.Second {
		t.Fatalf("expected max interval at 100%% usage, got %v", got)
	}
}

func TestDigestDue_FiresOnlyAtScheduledMinute(t *testing.T) {
	const expr = "0 9 * * *"
	zero := time.Time{}

	due, err := digestDue(expr, zero, time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, due)

	due, err = digestDue(expr, zero, time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, due)
}

func TestDigestDue_DebouncesRepeatFireWithinSameMinute(t *testing.T) {
	const expr = "0 9 * * *"
	fireTime := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)

	due, err := digestDue(expr, fireTime, fireTime.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, due, "a digest that just fired should not fire again inside the debounce window")
}

func TestDigestDue_InvalidExprErrors(t *testing.T) {
	_, err := digestDue("not a cron expr", time.Time{}, time.Now())
	assert.Error(t, err)
}
