// Package budget enforces the daily proactive token budget (spec §4.11).
// Reactive scope is logged for observability but never throttled.
package budget

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// unboundedRemaining is returned for reactive scope, which has no cap.
const unboundedRemaining = 999_999_999

var (
	tokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "goclaw_tokens_total",
		Help: "Total LLM tokens consumed, by scope and provider.",
	}, []string{"scope", "provider"})

	proactiveUsageRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "goclaw_proactive_budget_usage_ratio",
		Help: "Fraction of today's proactive daily token limit consumed.",
	})
)

func init() {
	prometheus.MustRegister(tokensTotal, proactiveUsageRatio)
}

// Tracker answers budget questions against the token ledger and updates
// Prometheus metrics on every write.
type Tracker struct {
	ledger store.TokenLedgerStore
	limit  int
	warn   float64
	hard   float64
}

// New builds a Tracker from the budget config section. Warn/hard default to
// 0.8/0.95 per spec §4.11 when left unconfigured.
func New(ledger store.TokenLedgerStore, cfg config.BudgetConfig) *Tracker {
	warn := cfg.WarnThreshold
	if warn <= 0 {
		warn = 0.8
	}
	hard := cfg.HardThreshold
	if hard <= 0 {
		hard = 0.95
	}
	limit := cfg.DailyTokenLimit
	if limit <= 0 {
		limit = 7_000_000
	}
	return &Tracker{ledger: ledger, limit: limit, warn: warn, hard: hard}
}

// LogTokens records one LLM call's token usage and refreshes the Prometheus
// gauges/counters.
func (t *Tracker) LogTokens(ctx context.Context, scope store.TokenScope, provider string, input, output int) error {
	entry := &store.TokenLedgerEntry{
		Scope:        scope,
		Provider:     provider,
		TokensInput:  input,
		TokensOutput: output,
	}
	if err := t.ledger.Log(ctx, entry); err != nil {
		return err
	}

	tokensTotal.WithLabelValues(string(scope), provider).Add(float64(input + output))

	if scope == store.ScopeProactive {
		used, err := t.ledger.DailyUsage(ctx, store.ScopeProactive, time.Now())
		if err == nil {
			ratio := float64(used) / float64(t.limit)
			proactiveUsageRatio.Set(ratio)
			t.logThreshold(ratio, used)
		}
	}

	return nil
}

func (t *Tracker) logThreshold(ratio float64, used int) {
	switch {
	case ratio >= t.hard:
		slog.Warn("proactive budget critical", "ratio", ratio, "used", used, "limit", t.limit)
	case ratio >= t.warn:
		slog.Warn("proactive budget warning", "ratio", ratio, "used", used, "limit", t.limit)
	}
}

// DailyUsage returns today's token usage for scope.
func (t *Tracker) DailyUsage(ctx context.Context, scope store.TokenScope) (int, error) {
	return t.ledger.DailyUsage(ctx, scope, time.Now())
}

// Remaining returns the tokens left in scope's daily budget. Reactive scope
// is unbounded.
func (t *Tracker) Remaining(ctx context.Context, scope store.TokenScope) (int, error) {
	if scope == store.ScopeReactive {
		return unboundedRemaining, nil
	}
	used, err := t.DailyUsage(ctx, scope)
	if err != nil {
		return 0, err
	}
	remaining := t.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// UsageRatio returns used/limit for the proactive scope, used by the
// scheduler's dynamic interval formula (spec §4.7).
func (t *Tracker) UsageRatio(ctx context.Context) (float64, error) {
	used, err := t.DailyUsage(ctx, store.ScopeProactive)
	if err != nil {
		return 0, err
	}
	return float64(used) / float64(t.limit), nil
}

// Available reports whether scope has room for an estimated token count.
// Always true for reactive.
func (t *Tracker) Available(ctx context.Context, scope store.TokenScope, estimate int) (bool, error) {
	if scope == store.ScopeReactive {
		return true, nil
	}
	remaining, err := t.Remaining(ctx, scope)
	if err != nil {
		return false, err
	}
	return remaining >= estimate, nil
}

// CriticalExceeded reports whether the proactive scope has crossed the hard
// threshold — the scheduler stops launching new cycles when this is true.
func (t *Tracker) CriticalExceeded(ctx context.Context) (bool, error) {
	ratio, err := t.UsageRatio(ctx)
	if err != nil {
		return false, err
	}
	return ratio >= t.hard, nil
}
