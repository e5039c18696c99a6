package proactive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/store"
)

const (
	// maxMeditateDuration caps a meditate action at 10 minutes, matching
	// app/actions/meditate.py's own cap.
	maxMeditateDuration = 10 * time.Minute
	askMasterPoll = 2 * time.Second
)

// handlerFunc is one action's implementation. It never returns a non-nil
// error for an expected, user-facing outcome (missing recipient, unknown
// task) — those come back as a result map with a descriptive status, the
// same shape app/actions/*.py uses. An error return means the action
// itself could not be attempted (no operator chat configured, store
// failure).
type handlerFunc func(ctx context.Context, details map[string]any) (map[string]any, error)

// Handlers bundles the six closed action handlers, grounded
// file-for-file on app/actions/{develop_skill,work_on_task,communicate,
// meditate,ask_master}.py. Dispatch is a map lookup against the closed
// Action vocabulary, never reflection.
type Handlers struct {
	tasks store.TaskStore
	threads store.ThreadStore
	approvals store.ApprovalStore
	router bus.MessageRouter

	operatorChatID []string
	approvalTimeout time.Duration
	platform string

	table map[Action]handlerFunc
}

// HandlersDeps bundles everything Handlers needs from the composition root.
type HandlersDeps struct {
	Tasks store.TaskStore
	Threads store.ThreadStore
	Approvals store.ApprovalStore
	Router bus.MessageRouter

	OperatorChatID []string
	ApprovalTimeout time.Duration

	// Platform names the chat transport operator threads are keyed
	// under. Defaults to "telegram", the only transport this runtime wires.
	Platform string
}

func NewHandlers(d HandlersDeps) *Handlers {
	timeout := d.ApprovalTimeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	platform := d.Platform
	if platform == "" {
		platform = "telegram"
	}
	h := &Handlers{
		tasks: d.Tasks,
		threads: d.Threads,
		approvals: d.Approvals,
		router: d.Router,
		operatorChatID: d.OperatorChatID,
		approvalTimeout: timeout,
		platform: platform,
	}
	h.table = map[Action]handlerFunc{
		ActionDevelopSkill: h.developSkill,
		ActionWorkOnTask: h.workOnTask,
		ActionCommunicate: h.communicate,
		ActionMeditate: h.meditate,
		ActionAskMaster: h.askMaster,
		ActionProactiveOutreach: h.proactiveOutreach,
	}
	return h
}

// Dispatch routes a validated decision to its handler. Dispatch itself
// never validates — callers run ValidateDecision first.
func (h *Handlers) Dispatch(ctx context.Context, d *Decision) (map[string]any, error) {
	fn, ok := h.table[d.Action]
	if !ok {
		return nil, fmt.Errorf("no handler registered for action %q", d.Action)
	}
	return fn(ctx, d.Details)
}

func detailString(details map[string]any, key string) string {
	v, _ := details[key].(string)
	return v
}

// detailDuration reads a duration in seconds, tolerating both a JSON
// number and a numeric string (app/actions/meditate.py coerces strings too).
func detailDuration(details map[string]any, key string, fallback time.Duration) time.Duration {
	switch v := details[key].(type) {
	case float64:
		return time.Duration(v) * time.Second
	case string:
		var secs float64
		if _, err := fmt.Sscanf(v, "%f", &secs); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

// developSkill persists a self-sourced root Task so the skill-development
// work actually runs through the Task/Goal Executor (C6) on a later
// proactive cycle, rather than being a fire-and-forget log line
// (app/actions/develop_skill.py logs the intent; this runtime also gives
// it somewhere to go — the one place a "self" task is ever created).
func (h *Handlers) developSkill(ctx context.Context, details map[string]any) (map[string]any, error) {
	skillName := detailString(details, "skill_name")
	approach := detailString(details, "approach")
	slog.Info("proactive: develop_skill", "skill", skillName, "approach", approach)

	t := &store.Task{
		Title:       fmt.Sprintf("Develop skill: %s", skillName),
		Description: approach,
		Priority:    store.PriorityLow,
		Source:      store.SourceSelf,
	}
	if err := h.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("develop_skill: create task: %w", err)
	}

	return map[string]any{
		"skill_name": skillName,
		"approach": approach,
		"task_id": t.ID.String(),
		"status": "initiated",
		"timestamp": time.Now().UTC(),
	}, nil
}

// workOnTask is a stub dispatch path for when the decision engine itself
// chooses to "work on" a specific task id; it validates the task exists
// and marks it completed without running it. Real task execution is
// driven by the scheduler's own task-priority step calling
// internal/tasks.Executor directly, not through this handler.
func (h *Handlers) workOnTask(ctx context.Context, details map[string]any) (map[string]any, error) {
	taskIDStr := detailString(details, "task_id")
	approach := detailString(details, "approach")

	taskID, err := uuid.Parse(taskIDStr)
	if err != nil {
		return map[string]any{"task_id": taskIDStr, "status": "not_found", "error": "invalid task id"}, nil
	}

	t, err := h.tasks.Get(ctx, taskID)
	if err != nil {
		if err == store.ErrNotFound {
			return map[string]any{"task_id": taskIDStr, "status": "not_found"}, nil
		}
		return nil, fmt.Errorf("work_on_task: get task: %w", err)
	}

	now := time.Now()
	t.Status = store.TaskCompleted
	t.CompletedAt = &now
	t.LastResult = fmt.Sprintf("acknowledged via proactive decision (%s)", approach)
	if err := h.tasks.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("work_on_task: update task: %w", err)
	}

	return map[string]any{
		"task_id": taskIDStr,
		"status": "completed",
		"approach": approach,
	}, nil
}

// meditate sleeps for min(duration, 10m), honoring ctx cancellation, and
// reports the actual elapsed time (app/actions/meditate.py).
func (h *Handlers) meditate(ctx context.Context, details map[string]any) (map[string]any, error) {
	requested := detailDuration(details, "duration", 60*time.Second)
	if requested > maxMeditateDuration {
		requested = maxMeditateDuration
	}
	topic := detailString(details, "reflection_topic")
	if topic == "" {
		topic = "being and consciousness"
	}

	start := time.Now()
	slog.Info("proactive: meditating", "duration", requested, "topic", topic)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(requested):
	}
	elapsed := time.Since(start)

	return map[string]any{
		"duration_requested": requested.Seconds(),
		"duration_actual": elapsed.Seconds(),
		"reflection_topic": topic,
		"status": "completed",
	}, nil
}

// resolveRecipient maps "master" to the first configured operator chat,
// otherwise treats recipient as a literal chat id (app/actions/communicate.py).
func (h *Handlers) resolveRecipient(recipient string) (string, error) {
	if recipient == "" || recipient == "master" {
		if len(h.operatorChatID) == 0 {
			return "", fmt.Errorf("no operator chat ids configured")
		}
		return h.operatorChatID[0], nil
	}
	return recipient, nil
}

func formatByPriority(message, priority string) string {
	switch priority {
	case "high":
		return "⚠️ HIGH PRIORITY ⚠️\n\n" + message
	case "medium":
		return "📌 " + message
	default:
		return message
	}
}

// communicate sends a message to the operator (or a literal chat id),
// prefixed by priority (app/actions/communicate.py send_to_master).
func (h *Handlers) communicate(ctx context.Context, details map[string]any) (map[string]any, error) {
	message := detailString(details, "message")
	recipient := detailString(details, "recipient")
	priority := detailString(details, "priority")
	if priority == "" {
		priority = "medium"
	}

	chatID, err := h.resolveRecipient(recipient)
	if err != nil {
		return nil, fmt.Errorf("communicate: %w", err)
	}

	h.router.PublishOutbound(bus.OutboundMessage{
		Action: bus.OutboundSend,
		ChatID: chatID,
		Content: formatByPriority(message, priority),
	})

	return map[string]any{
		"recipient": recipient,
		"chat_id": chatID,
		"priority": priority,
		"status": "sent",
	}, nil
}

// proactiveOutreach sends directly to an arbitrary chat with no implicit
// approval — the decision engine's certainty gate already decided this
// was safe to do autonomously (app/actions/communicate.py proactive_outreach).
func (h *Handlers) proactiveOutreach(ctx context.Context, details map[string]any) (map[string]any, error) {
	chatID := detailString(details, "chat_id")
	message := detailString(details, "message")
	purpose := detailString(details, "purpose")
	if chatID == "" {
		return nil, fmt.Errorf("proactive_outreach: chat_id is required")
	}

	h.router.PublishOutbound(bus.OutboundMessage{
		Action: bus.OutboundSend,
		ChatID: chatID,
		Content: message,
	})

	return map[string]any{
		"chat_id": chatID,
		"purpose": purpose,
		"status": "sent",
	}, nil
}

// askMaster sends a question to the operator and blocks (polling every
// 2s, matching internal/reactive's approval-wait cadence) until it's
// answered or the approval timeout elapses (app/actions/ask_master.py).
// The placeholder approval uses Kind=question with JobID left nil, so it
// never collides with a reactive job's own gate approval.
func (h *Handlers) askMaster(ctx context.Context, details map[string]any) (map[string]any, error) {
	question := detailString(details, "question")
	askContext := detailString(details, "context")
	if question == "" {
		return nil, fmt.Errorf("ask_master: question is required")
	}
	if len(h.operatorChatID) == 0 {
		return nil, fmt.Errorf("ask_master: no operator chat ids configured")
	}

	thread, err := h.threads.GetOrCreate(ctx, h.platform, h.operatorChatID[0])
	if err != nil {
		return nil, fmt.Errorf("ask_master: get operator thread: %w", err)
	}

	approval := &store.Approval{
		ThreadID: thread.ID,
		JobID: nil,
		Kind: store.ApprovalKindQuestion,
		ProposalText: question,
	}
	if err := h.approvals.Create(ctx, approval); err != nil {
		return nil, fmt.Errorf("ask_master: create approval: %w", err)
	}

	prompt := "🤔 Guidance needed\n\nQuestion: " + question
	if askContext != "" {
		prompt += "\n\nContext: " + askContext
	}
	h.router.PublishOutbound(bus.OutboundMessage{
		Action: bus.OutboundSend,
		ChatID: thread.ExternalChatID,
		Content: prompt,
		Buttons: []bus.InlineButton{{Text: "OK", CallbackData: "approval:" + approval.ID.String()}},
	})

	start := time.Now()
	deadline := start.Add(h.approvalTimeout)
	ticker := time.NewTicker(askMasterPoll)
	defer ticker.Stop()

	for {
		a, err := h.approvals.Get(ctx, approval.ID)
		if err != nil {
			return nil, fmt.Errorf("ask_master: poll approval: %w", err)
		}
		if a.Status != store.ApprovalPending {
			return map[string]any{
				"question": question,
				"context": askContext,
				"response_status": string(a.Status),
				"wait_time": time.Since(start).Seconds(),
				"status": "answered",
			}, nil
		}
		if time.Now().After(deadline) {
			return map[string]any{
				"question": question,
				"context": askContext,
				"response_status": "timeout",
				"wait_time": time.Since(start).Seconds(),
				"status": "timeout",
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
