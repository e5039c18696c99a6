package reactive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/store"
	"github.com/nextlevelbuilder/goclaw/internal/telemetry"
)

var tracer = telemetry.Tracer("goclaw/reactive")

const (
	classifyTimeout = 30 * time.Second
	executeTimeout  = 120 * time.Second
)

// classification is the fast-classifier's strict-JSON output (spec §4.3).
type classification struct {
	Intent            string  `json:"intent"`
	Summary           string  `json:"summary"`
	Plan              string  `json:"plan"`
	NeedsConfirmation bool    `json:"needs_confirmation"`
	Confidence        float64 `json:"confidence"`
	Task              string  `json:"task,omitempty"`
}

var validIntents = map[string]bool{"question": true, "command": true, "task": true, "other": true}

// normalize coerces an unknown intent to "other" and clamps confidence
// into [0,1], per spec §4.3.
func (c *classification) normalize() {
	if !validIntents[c.Intent] {
		c.Intent = "other"
	}
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
}

// executePayload is what a classify job hands its follow-up execute job.
type executePayload struct {
	Classification classification `json:"classification"`
}

// answerPayload is what a caller enqueues for mode=answer (spec §4.3
// "send payload text verbatim"), e.g. a proactive action's reply.
type answerPayload struct {
	Answer string `json:"answer"`
}

// processJob drives one leased job to a terminal status, per spec §4.3's
// per-job state machine. It never retries automatically — a failed job
// stays as evidence.
func (w *Worker) processJob(ctx context.Context, job *store.ReactiveJob) {
	ctx, span := tracer.Start(ctx, "reactive.process_job",
		trace.WithAttributes(
			attribute.String("job.id", job.ID.String()),
			attribute.String("job.mode", string(job.Mode)),
		))
	defer span.End()

	var err error
	switch job.Mode {
	case store.JobClassify:
		err = w.handleClassifyJob(ctx, job)
	case store.JobExecute:
		err = w.handleExecuteJob(ctx, job)
	case store.JobAnswer:
		err = w.handleAnswerJob(ctx, job)
	case store.JobPlan:
		err = fmt.Errorf("job mode %q has no handler", job.Mode)
	default:
		err = fmt.Errorf("unknown job mode %q", job.Mode)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("reactive: job failed", "job_id", job.ID, "mode", job.Mode, "error", err)
		w.notifyUserOfFailure(job)
		if ferr := w.jobs.Finish(ctx, job.ID, store.JobFailed); ferr != nil {
			slog.Error("reactive: mark job failed failed", "job_id", job.ID, "error", ferr)
		}
		return
	}

	if err := w.jobs.Finish(ctx, job.ID, store.JobDone); err != nil {
		slog.Error("reactive: mark job done failed", "job_id", job.ID, "error", err)
	}
}

func (w *Worker) notifyUserOfFailure(job *store.ReactiveJob) {
	thread, err := w.threads.Get(context.Background(), job.ThreadID)
	if err != nil {
		return
	}
	w.router.PublishOutbound(bus.OutboundMessage{
		Action:  bus.OutboundSend,
		ChatID:  thread.ExternalChatID,
		Content: "Sorry, something went wrong handling that. Please try again.",
	})
}

// handleClassifyJob loads the conversation window, classifies intent with
// the fast model, and — on success — enqueues the follow-up execute job
// (spec §4.3's "enqueue|flip to mode=execute" branch taken as a fresh
// job row, so both classify and execute leave their own terminal record;
// see spec §8's "one done classify and one done execute").
func (w *Worker) handleClassifyJob(ctx context.Context, job *store.ReactiveJob) error {
	messages, err := w.buildConversationWindow(ctx, job.ThreadID)
	if err != nil {
		return fmt.Errorf("build context: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	req := providers.ChatRequest{Messages: append([]providers.Message{{Role: "system", Content: w.prompts.Classifier}}, messages...)}
	resp, err := w.classifier.Chat(callCtx, req)
	if err != nil {
		return fmt.Errorf("classifier call: %w", err)
	}
	if resp.Usage != nil {
		_ = w.budget.LogTokens(ctx, store.ScopeReactive, w.classifier.Name(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	var c classification
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &c); err != nil {
		return fmt.Errorf("parse classifier JSON: %w", err)
	}
	c.normalize()

	slog.Info("reactive: classified", "job_id", job.ID, "intent", c.Intent, "confidence", c.Confidence)

	payload, err := json.Marshal(executePayload{Classification: c})
	if err != nil {
		return fmt.Errorf("marshal execute payload: %w", err)
	}

	execJob := &store.ReactiveJob{
		ThreadID:         job.ThreadID,
		TriggerMessageID: job.TriggerMessageID,
		Mode:             store.JobExecute,
		Payload:          payload,
	}
	if err := w.jobs.Enqueue(ctx, execJob); err != nil {
		return fmt.Errorf("enqueue execute job: %w", err)
	}
	w.signalWake()
	return nil
}

// handleExecuteJob runs the approval sub-protocol if required, then calls
// the capable model and sends its reply (spec §4.3/§4.4).
func (w *Worker) handleExecuteJob(ctx context.Context, job *store.ReactiveJob) error {
	var payload executePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("parse execute payload: %w", err)
	}
	c := payload.Classification

	thread, err := w.threads.Get(ctx, job.ThreadID)
	if err != nil {
		return fmt.Errorf("load thread: %w", err)
	}

	if c.NeedsConfirmation {
		approved, err := w.runApprovalSubProtocol(ctx, thread, job, c)
		if err != nil {
			return fmt.Errorf("approval sub-protocol: %w", err)
		}
		if !approved {
			w.router.PublishOutbound(bus.OutboundMessage{
				Action:  bus.OutboundSend,
				ChatID:  thread.ExternalChatID,
				Content: "Request was not approved, so I didn't go ahead with it.",
			})
			return nil
		}
	}

	w.maybeAssignMasterTask(ctx, thread, c)

	messages, err := w.buildConversationWindow(ctx, job.ThreadID)
	if err != nil {
		return fmt.Errorf("build context: %w", err)
	}

	executorPrompt := fmt.Sprintf("%s\n\nClassification: intent=%s, summary=%s, plan=%s",
		w.prompts.Executor, c.Intent, c.Summary, c.Plan)

	callCtx, cancel := context.WithTimeout(ctx, executeTimeout)
	defer cancel()

	req := providers.ChatRequest{Messages: append([]providers.Message{{Role: "system", Content: executorPrompt}}, messages...)}
	resp, err := w.executor.Chat(callCtx, req)
	if err != nil {
		return fmt.Errorf("executor call: %w", err)
	}
	if resp.Usage != nil {
		_ = w.budget.LogTokens(ctx, store.ScopeReactive, w.executor.Name(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	w.router.PublishOutbound(bus.OutboundMessage{
		Action:  bus.OutboundSend,
		ChatID:  thread.ExternalChatID,
		Content: resp.Content,
	})
	return nil
}

// isOperatorChat reports whether chatID is one of the configured master
// chat ids (spec §6.6).
func (w *Worker) isOperatorChat(chatID string) bool {
	for _, id := range w.operatorChatID {
		if id == chatID {
			return true
		}
	}
	return false
}

// maybeAssignMasterTask persists a root Task from an operator's
// task-intent message — the "task assignment" administrative behavior
// spec §6.6 reserves for master chats. This is the one place
// classification.Task is consumed: non-operator threads get a normal
// conversational reply and no Task row, matching §6.6's "other chats
// can converse but cannot resolve approvals [or assign tasks]".
func (w *Worker) maybeAssignMasterTask(ctx context.Context, thread *store.Thread, c classification) {
	if c.Intent != "task" || !w.isOperatorChat(thread.ExternalChatID) {
		return
	}
	title := c.Summary
	if title == "" {
		title = c.Task
	}
	t := &store.Task{
		Title:       title,
		Description: c.Task,
		Priority:    store.PriorityMedium,
		Source:      store.SourceMaster,
	}
	if err := w.tasks.Create(ctx, t); err != nil {
		slog.Error("reactive: assign master task failed", "error", err)
		return
	}
	slog.Info("reactive: assigned master task", "task_id", t.ID, "title", t.Title)
}

// handleAnswerJob sends payload.answer verbatim (spec §4.3 "used for
// trivial flows").
func (w *Worker) handleAnswerJob(ctx context.Context, job *store.ReactiveJob) error {
	var payload answerPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("parse answer payload: %w", err)
	}
	if payload.Answer == "" {
		return fmt.Errorf("empty answer payload")
	}

	thread, err := w.threads.Get(ctx, job.ThreadID)
	if err != nil {
		return fmt.Errorf("load thread: %w", err)
	}

	w.router.PublishOutbound(bus.OutboundMessage{
		Action:  bus.OutboundSend,
		ChatID:  thread.ExternalChatID,
		Content: payload.Answer,
	})
	return nil
}

// runApprovalSubProtocol creates a pending approval, sends the prompt
// with its inline button, and polls every ~2s until resolution or
// timeout (spec §4.4 "Create"/"Wait").
func (w *Worker) runApprovalSubProtocol(ctx context.Context, thread *store.Thread, job *store.ReactiveJob, c classification) (bool, error) {
	proposal := fmt.Sprintf("Summary: %s\n\nPlan: %s", c.Summary, c.Plan)
	jobID := job.ID
	approval := &store.Approval{
		ThreadID:     job.ThreadID,
		JobID:        &jobID,
		Kind:         store.ApprovalKindGate,
		ProposalText: proposal,
	}
	if err := w.approvals.Create(ctx, approval); err != nil {
		return false, fmt.Errorf("create approval: %w", err)
	}

	w.router.PublishOutbound(bus.OutboundMessage{
		Action:  bus.OutboundSend,
		ChatID:  thread.ExternalChatID,
		Content: proposal,
		Buttons: []bus.InlineButton{{Text: "OK", CallbackData: approvalCallbackPrefix + approval.ID.String()}},
	})
	return w.waitForApproval(ctx, approval.ID)
}

// waitForApproval polls approval status every ~2s until approved,
// rejected, superseded, or the configured timeout elapses (spec §4.4).
func (w *Worker) waitForApproval(ctx context.Context, approvalID uuid.UUID) (bool, error) {
	deadline := time.Now().Add(w.approvalTimeout)
	ticker := time.NewTicker(approvalPollInterval)
	defer ticker.Stop()

	for {
		approval, err := w.approvals.Get(ctx, approvalID)
		if err != nil {
			return false, fmt.Errorf("get approval: %w", err)
		}
		switch approval.Status {
		case store.ApprovalApproved:
			return true, nil
		case store.ApprovalRejected, store.ApprovalSuperseded:
			return false, nil
		}

		if time.Now().After(deadline) {
			slog.Warn("reactive: approval timed out", "approval_id", approvalID)
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// extractJSON trims a classifier response down to its JSON object,
// tolerating the occasional stray prose wrapper smaller models emit.
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
	return s
}
