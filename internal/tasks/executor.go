// Package tasks implements the Task/Goal Executor (C6): selection,
// per-attempt execution, decomposition into subtasks, goal verification,
// and completion/failure bookkeeping (spec §4.6). It exposes plain
// functions the Proactive Scheduler (C7) calls from its own loop —
// tasks has no scheduling loop of its own, matching spec's framing of
// C6 as a set of operations C7 pops work through.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/budget"
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/notify"
	"github.com/nextlevelbuilder/goclaw/internal/prompts"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/store"
)

const (
	defaultAttemptTimeout = 10 * time.Minute
	verifierTimeout       = 30 * time.Second
	restartDelay          = 5 * time.Second
)

// Executor runs tasks popped by the caller's selection loop through to a
// terminal per-attempt outcome.
type Executor struct {
	tasks store.TaskStore
	goals store.GoalStore
	budget *budget.Tracker
	notify *notify.Notifier

	worker   providers.Provider
	verifier providers.Provider
	prompts  prompts.Set

	attemptTimeout time.Duration

	// requestRestart is invoked when a completed task's output looks like
	// it modified runtime code. Nil means "log only" — the composition
	// root wires an actual graceful-shutdown trigger here.
	requestRestart func()
}

// Deps bundles everything Executor needs from the composition root.
type Deps struct {
	Tasks  store.TaskStore
	Goals  store.GoalStore
	Budget *budget.Tracker
	Notify *notify.Notifier

	Worker   providers.Provider
	Verifier providers.Provider
	Prompts  prompts.Set

	Config config.TaskConfig

	RequestRestart func()
}

func New(d Deps) *Executor {
	timeout := defaultAttemptTimeout
	if d.Config.AttemptTimeoutSeconds > 0 {
		timeout = time.Duration(d.Config.AttemptTimeoutSeconds) * time.Second
	}
	return &Executor{
		tasks:          d.Tasks,
		goals:          d.Goals,
		budget:         d.Budget,
		notify:         d.Notify,
		worker:         d.Worker,
		verifier:       d.Verifier,
		prompts:        d.Prompts,
		attemptTimeout: timeout,
		requestRestart: d.RequestRestart,
	}
}

// Next returns the next task to run per spec §4.6's selection rule,
// recursing into pending subtasks of the chosen root. Returns (nil, nil)
// when no task is pending.
func (e *Executor) Next(ctx context.Context) (*store.Task, error) {
	root, err := e.tasks.NextRootCandidate(ctx)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("next root candidate: %w", err)
	}
	return e.resolveSubtask(ctx, root)
}

func (e *Executor) resolveSubtask(ctx context.Context, t *store.Task) (*store.Task, error) {
	subs, err := e.tasks.PendingSubtasks(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("pending subtasks: %w", err)
	}
	if len(subs) == 0 {
		return t, nil
	}
	return e.resolveSubtask(ctx, subs[0])
}

// ExecuteOne drives t through one attempt: running → (decompose | verify
// | complete | fail). Spec §4.6 "Execute one task"/"Decomposition"/
// "Goal verification"/"Completion semantics".
func (e *Executor) ExecuteOne(ctx context.Context, t *store.Task) error {
	now := time.Now()
	t.Status = store.TaskRunning
	t.StartedAt = &now
	if err := e.tasks.Update(ctx, t); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()

	req := providers.ChatRequest{Messages: []providers.Message{
		{Role: "system", Content: e.prompts.TaskWorker},
		{Role: "user", Content: e.buildPrompt(t)},
	}}
	resp, err := e.worker.Chat(callCtx, req)
	if err != nil {
		return e.fail(ctx, t, fmt.Sprintf("execution: %v", err))
	}
	if resp.Usage != nil {
		_ = e.budget.LogTokens(ctx, store.ScopeProactive, e.worker.Name(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	if t.Depth == 0 {
		if specs, ok := parseDecomposition(resp.Content); ok {
			if err := e.createSubtasks(ctx, t, specs); err != nil {
				return fmt.Errorf("create subtasks: %w", err)
			}
			slog.Info("tasks: decomposed into subtasks", "task_id", t.ID, "count", len(specs))
			t.Status = store.TaskPending
			t.LastResult = truncate(fmt.Sprintf("Decomposed into %d subtasks: %s", len(specs), subtaskTitles(specs)), store.TaskResultMaxBytes)
			return e.tasks.Update(ctx, t)
		}
	}

	if t.GoalCriteria != "" {
		achieved, err := e.verifyGoal(ctx, t, resp.Content)
		if err != nil {
			return e.fail(ctx, t, fmt.Sprintf("verification: %v", err))
		}
		if !achieved {
			return e.fail(ctx, t, "goal verification: criteria not achieved")
		}
	}

	return e.complete(ctx, t, resp.Content)
}

func (e *Executor) buildPrompt(t *store.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", t.Description)
	}
	if t.GoalCriteria != "" {
		fmt.Fprintf(&b, "Goal criteria: %s\n", t.GoalCriteria)
	}
	fmt.Fprintf(&b, "Priority: %s\nSource: %s\nAttempt: %d of %d\n", t.Priority, t.Source, t.Attempts+1, t.MaxAttempts)
	if t.LastResult != "" {
		fmt.Fprintf(&b, "Previous attempt result: %s\n", t.LastResult)
	}
	return b.String()
}

// complete sets status=completed and recursively completes the parent
// once it has no more pending/running children (spec §4.6).
func (e *Executor) complete(ctx context.Context, t *store.Task, result string) error {
	now := time.Now()
	t.Status = store.TaskCompleted
	t.CompletedAt = &now
	t.LastResult = truncate(result, store.TaskResultMaxBytes)
	if err := e.tasks.Update(ctx, t); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	e.checkSelfModification(t, result)

	if t.GoalID != nil {
		_ = e.goals.IncrementCounters(ctx, *t.GoalID, 1, 0)
	}

	if t.ParentID != nil {
		return e.maybeCompleteParent(ctx, *t.ParentID)
	}
	return nil
}

func (e *Executor) maybeCompleteParent(ctx context.Context, parentID uuid.UUID) error {
	remaining, err := e.tasks.CountPendingOrRunningChildren(ctx, parentID)
	if err != nil {
		return fmt.Errorf("count pending children: %w", err)
	}
	if remaining > 0 {
		return nil
	}
	parent, err := e.tasks.Get(ctx, parentID)
	if err != nil {
		return fmt.Errorf("get parent: %w", err)
	}
	if parent.Status != store.TaskPending {
		return nil
	}
	return e.complete(ctx, parent, "all subtasks completed")
}

// fail increments attempts; max_attempts exhausted terminates the task,
// otherwise it returns to pending for retry (spec §4.6).
func (e *Executor) fail(ctx context.Context, t *store.Task, errMsg string) error {
	t.Attempts++
	t.LastResult = truncate(errMsg, store.TaskResultMaxBytes)
	if t.Attempts >= t.MaxAttempts {
		t.Status = store.TaskFailed
		now := time.Now()
		t.CompletedAt = &now
		if t.GoalID != nil {
			_ = e.goals.IncrementCounters(ctx, *t.GoalID, 0, 1)
		}
	} else {
		t.Status = store.TaskPending
	}
	if err := e.tasks.Update(ctx, t); err != nil {
		return fmt.Errorf("mark failed attempt: %w", err)
	}
	return nil
}

// verifyGoal asks the verifier model whether t.GoalCriteria was met,
// parsing robustly per spec §4.6: first-line YES/NO, else majority
// token count.
func (e *Executor) verifyGoal(ctx context.Context, t *store.Task, output string) (bool, error) {
	prompt := fmt.Sprintf("%s\n\nGoal criteria: %s\n\nTask output:\n%s", e.prompts.Verifier, t.GoalCriteria, output)

	callCtx, cancel := context.WithTimeout(ctx, verifierTimeout)
	defer cancel()

	resp, err := e.verifier.Chat(callCtx, providers.ChatRequest{Messages: []providers.Message{{Role: "system", Content: prompt}}})
	if err != nil {
		return false, fmt.Errorf("verifier call: %w", err)
	}
	if resp.Usage != nil {
		_ = e.budget.LogTokens(ctx, store.ScopeProactive, e.verifier.Name(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	return parseVerification(resp.Content), nil
}

func parseVerification(resp string) bool {
	trimmed := strings.TrimSpace(resp)
	firstLine := trimmed
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		firstLine = trimmed[:idx]
	}
	firstLine = strings.ToUpper(strings.TrimSpace(firstLine))

	if strings.HasPrefix(firstLine, "YES") {
		return true
	}
	if strings.HasPrefix(firstLine, "NO") {
		return false
	}

	upper := strings.ToUpper(resp)
	return strings.Count(upper, "YES") > strings.Count(upper, "NO")
}

// selfModIndicators mirrors original_source's check_python_files_modified,
// translated to this runtime's own source file extension.
var selfModIndicators = []string{".go", "main.go", "/internal/", "modified", "updated", "rewrote", "wrote"}

func (e *Executor) checkSelfModification(t *store.Task, output string) {
	lower := strings.ToLower(output)
	for _, ind := range selfModIndicators {
		if strings.Contains(lower, ind) {
			slog.Info("tasks: self-modification indicator detected, scheduling restart", "task_id", t.ID, "delay", restartDelay)
			e.notify.Notifyf(context.Background(), "Task %q looks like it modified runtime code. Scheduling a graceful restart in %s to apply changes.", t.Title, restartDelay)
			if e.requestRestart != nil {
				go func() {
					time.Sleep(restartDelay)
					e.requestRestart()
				}()
			}
			return
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

type decomposition struct {
	Decompose bool          `json:"decompose"`
	Subtasks  []subtaskSpec `json:"subtasks"`
}

type subtaskSpec struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	GoalCriteria string `json:"goal_criteria,omitempty"`
}

// parseDecomposition extracts a {decompose:true, subtasks:[...]} block
// with at least 2 valid (non-blank-title) subtasks, per spec §4.6.
func parseDecomposition(s string) ([]subtaskSpec, bool) {
	raw := extractJSON(s)
	if raw == "" {
		return nil, false
	}
	var d decomposition
	if err := json.Unmarshal([]byte(raw), &d); err != nil || !d.Decompose {
		return nil, false
	}
	valid := make([]subtaskSpec, 0, len(d.Subtasks))
	for _, sub := range d.Subtasks {
		if strings.TrimSpace(sub.Title) != "" {
			valid = append(valid, sub)
		}
	}
	if len(valid) < 2 {
		return nil, false
	}
	return valid, true
}

// subtaskTitles renders a comma-separated title list for the parent's
// decomposition result string (spec §8 scenario 6).
func subtaskTitles(specs []subtaskSpec) string {
	titles := make([]string, len(specs))
	for i, s := range specs {
		titles[i] = s.Title
	}
	return strings.Join(titles, ", ")
}

func (e *Executor) createSubtasks(ctx context.Context, parent *store.Task, specs []subtaskSpec) error {
	for i, spec := range specs {
		sub := &store.Task{
			Title:        spec.Title,
			Description:  spec.Description,
			Priority:     parent.Priority,
			Source:       parent.Source,
			GoalCriteria: spec.GoalCriteria,
			ParentID:     &parent.ID,
			OrderIndex:   i,
			Depth:        parent.Depth + 1,
			GoalID:       parent.GoalID,
		}
		if err := e.tasks.Create(ctx, sub); err != nil {
			return fmt.Errorf("subtask %d: %w", i, err)
		}
	}
	return nil
}

// extractJSON trims a model response down to its first balanced JSON
// object, tolerating prose wrappers.
func extractJSON(s string) string {
	start := -1
	depth := 0
	for i, r := range s {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
