package proactive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/goclaw/internal/budget"
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/memory"
	"github.com/nextlevelbuilder/goclaw/internal/notify"
	"github.com/nextlevelbuilder/goclaw/internal/prompts"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/store"
	"github.com/nextlevelbuilder/goclaw/internal/tasks"
	"github.com/nextlevelbuilder/goclaw/internal/telemetry"
)

var tracer = telemetry.Tracer("goclaw/proactive")

const (
	// budgetFloorTokens is the absolute remaining-budget floor below
	// which a cycle does nothing but meditate, distinct from the
	// Tracker's own ratio-based warn/critical thresholds.
	budgetFloorTokens = 10_000

	decisionTimeout = 60 * time.Second

	defaultMinInterval = 60 * time.Second
	defaultMaxInterval = 1800 * time.Second

	pendingTaskSummaryLimit = 5
	recentCycleSummaryLimit = 10
	errorBackoffInterval = time.Minute
	defaultRateLimitFallback = time.Hour

	defaultDigestCron = "0 9 * * *"
	// digestDebounce keeps a digest from firing twice for the same
	// scheduled minute when a cycle happens to land inside it more than
	// once (short cycle intervals near a busy queue).
	digestDebounce = 2 * time.Minute
)

// Scheduler runs the idle-time loop (C7): rate-limit cooldown, budget
// floor check, draining the task/goal queue, and — once the queue is
// dry — asking the decision engine (C8) what to do next and dispatching
// it through the action handlers (C9). Grounded on
// original_source/app/workers/proactive.py's ProactiveScheduler.
type Scheduler struct {
	executor *tasks.Executor
	taskList store.TaskStore
	goals store.GoalStore
	budget *budget.Tracker
	memory *memory.Store
	notify *notify.Notifier
	handlers *Handlers

	decider providers.Provider
	prompts prompts.Set

	minInterval time.Duration
	maxInterval time.Duration

	digestCron string
	lastDigest time.Time

	rateLimitUntil *time.Time
	cycle int
}

// Deps bundles everything Scheduler needs from the composition root.
type Deps struct {
	Executor *tasks.Executor
	Tasks store.TaskStore
	Goals store.GoalStore
	Budget *budget.Tracker
	Memory *memory.Store
	Notify *notify.Notifier
	Handlers *Handlers

	// Decider is the LLM bound to "what should I do next" decisions.
	// This runtime has no dedicated decision-engine provider role in
	// config — the composition root binds the Executor role here, the
	// same capable model already reserves for substantive
	// reasoning (see DESIGN.md).
	Decider providers.Provider
	Prompts prompts.Set

	Config config.ProactiveConfig
}

func New(d Deps) *Scheduler {
	minInterval := defaultMinInterval
	if d.Config.MinIntervalSeconds > 0 {
		minInterval = time.Duration(d.Config.MinIntervalSeconds) * time.Second
	}
	maxInterval := defaultMaxInterval
	if d.Config.MaxIntervalSeconds > 0 {
		maxInterval = time.Duration(d.Config.MaxIntervalSeconds) * time.Second
	}
	digestCron := d.Config.DigestCronExpr
	if digestCron == "" || !gronx.New().IsValid(digestCron) {
		if digestCron != "" {
			slog.Warn("proactive: invalid digest_cron_expr, falling back to daily default", "expr", digestCron)
		}
		digestCron = defaultDigestCron
	}
	return &Scheduler{
		executor: d.Executor,
		taskList: d.Tasks,
		goals: d.Goals,
		budget: d.Budget,
		memory: d.Memory,
		notify: d.Notify,
		handlers: d.Handlers,
		decider: d.Decider,
		prompts: d.Prompts,
		minInterval: minInterval,
		maxInterval: maxInterval,
		digestCron: digestCron,
	}
}

// Run blocks until ctx is canceled, driving one cycle at a time with a
// dynamically computed sleep between cycles.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("proactive scheduler started", "min_interval", s.minInterval, "max_interval", s.maxInterval)
	s.notify.Notifyf(ctx, "🤖 Agent online\n\nAutonomous decision loop initiated.")

	for {
		select {
		case <-ctx.Done():
			slog.Info("proactive scheduler stopped")
			return
		default:
		}

		if s.rateLimitUntil != nil {
			now := time.Now()
			if now.Before(*s.rateLimitUntil) {
				wait := s.rateLimitUntil.Sub(now)
				slog.Info("proactive: rate limit cooldown", "resume_at", s.rateLimitUntil, "wait", wait)
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
			s.rateLimitUntil = nil
			s.notify.Notifyf(ctx, "▶️ Resuming proactive cycle\n\nRate limit period ended.")
		}

		s.cycle++
		interval := s.runCycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// runCycle executes one proactive decision cycle end to end and returns
// the interval to sleep before the next one. It never propagates errors
// to Run — every failure is logged and treated as "skip this cycle",
// matching "a cycle's own errors never crash the loop".
func (s *Scheduler) runCycle(ctx context.Context) time.Duration {
	ctx, span := tracer.Start(ctx, "proactive.cycle", trace.WithAttributes(attribute.Int("cycle", s.cycle)))
	defer span.End()

	start := time.Now()
	slog.Info("proactive: cycle started", "cycle", s.cycle)
	defer func() {
		slog.Info("proactive: cycle finished", "cycle", s.cycle, "duration", time.Since(start))
	}()

	s.maybeSendDigest(ctx, start)

	remaining, err := s.budget.Remaining(ctx, store.ScopeProactive)
	if err != nil {
		slog.Error("proactive: remaining budget check failed", "error", err)
		return s.dynamicInterval(ctx)
	}
	if remaining < budgetFloorTokens {
		slog.Warn("proactive: insufficient budget, meditating", "remaining", remaining)
		s.notify.Notifyf(ctx, "⚠️ Budget exhausted\n\nProactive budget remaining: %d tokens.\n\nEntering meditation mode until it resets.", remaining)
		return s.dynamicInterval(ctx)
	}

	task, err := s.executor.Next(ctx)
	if err != nil {
		slog.Error("proactive: task selection failed", "error", err)
		return s.dynamicInterval(ctx)
	}
	if task != nil {
		s.runTask(ctx, task)
		return s.dynamicInterval(ctx)
	}

	handled, err := s.checkGoalsNeedingAttention(ctx)
	if err != nil {
		slog.Error("proactive: goal attention check failed", "error", err)
	}
	if handled {
		return s.dynamicInterval(ctx)
	}

	if err := s.decideAndAct(ctx); err != nil {
		var rl *providers.RateLimitError
		if errors.As(err, &rl) {
			s.handleRateLimit(ctx, rl)
		} else {
			slog.Error("proactive: decision cycle failed", "error", err)
		}
	}

	return s.dynamicInterval(ctx)
}

// runTask drives the highest-priority pending task/subtask to completion
// through C6, then checks whether its goal (if any) now needs attention.
func (s *Scheduler) runTask(ctx context.Context, task *store.Task) {
	slog.Info("proactive: executing task", "task_id", task.ID, "title", task.Title, "priority", task.Priority)
	success := true
	if err := s.executor.ExecuteOne(ctx, task); err != nil {
		success = false
		slog.Error("proactive: task execution failed", "task_id", task.ID, "error", err)
	}

	resultStatus := "success"
	if !success {
		resultStatus = "failed"
	}
	_ = s.memory.AppendCycleSummary(ctx, memory.CycleSummary{
		Timestamp: time.Now(),
		Action: "work_on_task",
		Certainty: 1,
		Significance: 0,
		ResultStatus: resultStatus,
		ResultSummary: fmt.Sprintf("executed task %q", task.Title),
	})

	if task.GoalID != nil {
		s.checkGoalCompletion(ctx, *task.GoalID)
	}
}

// checkGoalsNeedingAttention handles every active goal whose tasks are
// all accounted for. Returns
// true if any goal was handled, so the caller skips the decision step —
// exactly like the Python original's early return.
func (s *Scheduler) checkGoalsNeedingAttention(ctx context.Context) (bool, error) {
	goals, err := s.goals.NeedingAttention(ctx)
	if err != nil {
		return false, err
	}
	if len(goals) == 0 {
		return false, nil
	}
	slog.Info("proactive: goals needing attention", "count", len(goals))
	for _, g := range goals {
		s.resolveGoalAttention(ctx, g)
	}
	return true, nil
}

// checkGoalCompletion re-checks a single goal right after one of its
// tasks finished, instead of waiting for the next idle cycle's batch scan.
func (s *Scheduler) checkGoalCompletion(ctx context.Context, goalID uuid.UUID) {
	g, err := s.goals.Get(ctx, goalID)
	if err != nil {
		slog.Error("proactive: load goal failed", "goal_id", goalID, "error", err)
		return
	}
	if g.Status != store.GoalActive || g.TotalTasks == 0 {
		return
	}
	if g.CompletedTasks+g.FailedTasks < g.TotalTasks {
		return
	}
	s.resolveGoalAttention(ctx, g)
}

// resolveGoalAttention marks a fully-accounted-for goal completed (ready
// for the operator to verify) or leaves it active and flags the failures
// to the operator, per "needs attention" invariant.
func (s *Scheduler) resolveGoalAttention(ctx context.Context, g *store.Goal) {
	if g.FailedTasks == 0 {
		g.Status = store.GoalCompleted
		if err := s.goals.Update(ctx, g); err != nil {
			slog.Error("proactive: mark goal completed failed", "goal_id", g.ID, "error", err)
			return
		}
		s.notify.Notifyf(ctx,
			"🎯 Goal achieved!\n\nGoal: %s\n\nSuccess criteria:\n%s\n\nTasks: %d/%d completed.\n\nPlease verify the result.",
			g.Title, g.SuccessCriteria, g.CompletedTasks, g.TotalTasks)
		return
	}
	s.notify.Notifyf(ctx,
		"⚠️ Task failures detected\n\nGoal: %s\n\nFailed tasks: %d/%d\n\nRetry failed tasks?",
		g.Title, g.FailedTasks, g.TotalTasks)
}

// digestDue reports whether a digest should fire at now: debounced against
// lastDigest so a busy queue's short cycle interval can't fire the same
// scheduled minute's digest twice, then checked against the cron
// expression itself.
func digestDue(cronExpr string, lastDigest, now time.Time) (bool, error) {
	if now.Sub(lastDigest) < digestDebounce {
		return false, nil
	}
	return gronx.New().IsDue(cronExpr, now)
}

// maybeSendDigest rolls up recent cycle summaries into one operator
// notification on the configured cron schedule, independent of the
// dynamic per-cycle interval — an operator checking in once a day
// shouldn't have to reconstruct what happened from individual pings.
func (s *Scheduler) maybeSendDigest(ctx context.Context, now time.Time) {
	due, err := digestDue(s.digestCron, s.lastDigest, now)
	if err != nil {
		slog.Error("proactive: digest cron check failed", "expr", s.digestCron, "error", err)
		return
	}
	if !due {
		return
	}
	s.lastDigest = now

	recent, err := s.memory.RecentCycleSummaries(ctx, recentCycleSummaryLimit)
	if err != nil {
		slog.Error("proactive: digest: load recent cycles failed", "error", err)
		return
	}
	if len(recent) == 0 {
		return
	}

	var succeeded, failed int
	var b strings.Builder
	for _, c := range recent {
		if c.ResultStatus == "failed" {
			failed++
		} else {
			succeeded++
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", c.Action, c.ResultSummary, c.ResultStatus)
	}

	s.notify.Notifyf(ctx, "📋 Daily digest\n\n%d succeeded, %d failed across the last %d actions:\n\n%s",
		succeeded, failed, len(recent), b.String())
}

// decideAndAct asks the decision engine what to do next, then either
// dispatches it autonomously or asks the operator for approval,
// recording the cycle in memory either way.
func (s *Scheduler) decideAndAct(ctx context.Context) error {
	recent, _ := s.memory.RecentCycleSummaries(ctx, recentCycleSummaryLimit)
	pending, _ := s.taskList.ListPending(ctx, pendingTaskSummaryLimit)
	aroma, _ := s.memory.LastAroma(ctx)
	used, _ := s.budget.DailyUsage(ctx, store.ScopeProactive)
	ratio, _ := s.budget.UsageRatio(ctx)

	currentFocus := "Exploring capabilities and learning autonomously"
	if aroma != nil {
		if focus, ok := aroma.Context["current_focus"].(string); ok && focus != "" {
			currentFocus = focus
		}
	}

	prompt := buildDecisionPrompt(recent, pending, currentFocus, used, ratio)

	callCtx, cancel := context.WithTimeout(ctx, decisionTimeout)
	defer cancel()

	resp, err := s.decider.Chat(callCtx, providers.ChatRequest{Messages: []providers.Message{
		{Role: "system", Content: s.prompts.Proactive},
		{Role: "user", Content: prompt},
	}})
	if err != nil {
		return fmt.Errorf("decision call: %w", err)
	}
	if resp.Usage != nil {
		_ = s.budget.LogTokens(ctx, store.ScopeProactive, s.decider.Name(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	decision, ok := ParseDecision(resp.Content)
	if !ok {
		slog.Error("proactive: failed to parse decision from response")
		return nil
	}
	if err := ValidateDecision(decision); err != nil {
		slog.Error("proactive: decision failed validation", "error", err)
		return nil
	}

	slog.Info("proactive: decision", "action", decision.Action, "certainty", decision.Certainty, "significance", decision.Significance)

	result := s.actOnDecision(ctx, decision)

	summary := memory.CycleSummary{
		Timestamp: time.Now(),
		Action: string(decision.Action),
		Certainty: decision.Certainty,
		Significance: decision.Significance,
		ResultStatus: statusOf(result),
		ResultSummary: fmt.Sprintf("%v", result),
	}
	_ = s.memory.AppendCycleSummary(ctx, summary)
	_ = s.memory.StoreAroma(ctx, map[string]any{
		"last_action": string(decision.Action),
		"current_focus": currentFocus,
		"timestamp": time.Now().Format(time.RFC3339),
	})

	return nil
}

// actOnDecision executes autonomously when certainty clears the
// threshold, otherwise asks the operator for approval and proceeds
// without waiting — the decision itself is recorded as pending, not
// retried.
func (s *Scheduler) actOnDecision(ctx context.Context, decision *Decision) map[string]any {
	if !ShouldExecuteAutonomously(decision) {
		s.notify.Notifyf(ctx,
			"🤔 Approval needed\n\nAction: %s\nReasoning: %s\nCertainty: %.0f%%\n\nShould I proceed?",
			decision.Action, decision.Reasoning, decision.Certainty*100)
		return map[string]any{"status": "approval_pending", "action": string(decision.Action)}
	}

	slog.Info("proactive: executing autonomously", "action", decision.Action)
	result, err := s.handlers.Dispatch(ctx, decision)
	if err != nil {
		slog.Error("proactive: action failed", "action", decision.Action, "error", err)
		return map[string]any{"status": "failed", "error": err.Error()}
	}

	if ShouldNotifyOperator(decision) {
		s.notify.Notifyf(ctx,
			"📊 Significant action completed\n\nAction: %s\nSignificance: %.0f%%\nResult: %v",
			decision.Action, decision.Significance*100, result)
	}
	return result
}

func statusOf(result map[string]any) string {
	if s, ok := result["status"].(string); ok && (s == "failed" || s == "timeout") {
		return "failed"
	}
	return "success"
}

// handleRateLimit sets the cooldown window and notifies the operator,
// falling back to a 1-hour cooldown when the provider didn't report a
// reset time.
func (s *Scheduler) handleRateLimit(ctx context.Context, rl *providers.RateLimitError) {
	slog.Warn("proactive: rate limited", "reset_at", rl.ResetAt)
	if rl.ResetAt != nil {
		until := *rl.ResetAt
		s.rateLimitUntil = &until
	} else {
		until := time.Now().Add(defaultRateLimitFallback)
		s.rateLimitUntil = &until
	}

	resetStr := "unknown"
	if rl.ResetAt != nil {
		resetStr = rl.ResetAt.Format("15:04 MST")
	}
	s.notify.Notifyf(ctx, "⏸️ Rate limit reached\n\nProactive cycle paused.\n\nLimit reset: %s\n\nWill resume automatically.", resetStr)
}

// dynamicInterval implements piecewise budget-usage curve:
// short intervals below 50% usage, a medium band to 80%, and the long
// tail beyond that, clamped to the configured min/max.
func (s *Scheduler) dynamicInterval(ctx context.Context) time.Duration {
	ratio, err := s.budget.UsageRatio(ctx)
	if err != nil {
		slog.Error("proactive: usage ratio failed, using midpoint interval", "error", err)
		return (s.minInterval + s.maxInterval) / 2
	}

	minS := s.minInterval.Seconds()
	maxS := s.maxInterval.Seconds()
	var secs float64
	switch {
	case ratio < 0.5:
		secs = minS + (300-minS)*ratio
	case ratio < 0.8:
		secs = 300 + (1800-300)*(ratio-0.5)/0.3
	default:
		secs = 1800 + (maxS-1800)*(ratio-0.8)/0.2
	}
	if secs < minS {
		secs = minS
	}
	if secs > maxS {
		secs = maxS
	}
	return time.Duration(secs * float64(time.Second)).Round(time.Millisecond)
}

// buildDecisionPrompt assembles the user-message half of the decision
// request: recent cycle outcomes, the pending task queue, current focus,
// and budget stats.
func buildDecisionPrompt(recent []memory.CycleSummary, pending []*store.Task, currentFocus string, used int, ratio float64) string {
	var b strings.Builder

	b.WriteString("Current focus: ")
	b.WriteString(currentFocus)
	b.WriteString("\n\nToken budget: ")
	fmt.Fprintf(&b, "%d tokens used today, %.1f%% of the daily proactive limit.\n\n", used, ratio*100)

	b.WriteString("Recent actions:\n")
	if len(recent) == 0 {
		b.WriteString("(none yet)\n")
	}
	for _, c := range recent {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", c.Action, c.ResultSummary, c.ResultStatus)
	}

	b.WriteString("\nPending tasks:\n")
	if len(pending) == 0 {
		b.WriteString("(none)\n")
	}
	for _, t := range pending {
		fmt.Fprintf(&b, "- [%s/%s] %s\n", t.Source, t.Priority, t.Title)
	}

	b.WriteString("\nRespond with strict JSON describing one action, its certainty, significance, type, and details.")
	return b.String()
}
