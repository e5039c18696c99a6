package reactive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// approvalCallbackPrefix is the callback_data prefix the chat transport
// attaches to an approval's inline button (spec §4.4 "Create").
const approvalCallbackPrefix = "approval:"

// ingestLoop drains the bus's inbound queue and applies the message/
// callback paths of spec §4.2.
func (w *Worker) ingestLoop(ctx context.Context) {
	for {
		update, ok := w.router.ConsumeInbound(ctx)
		if !ok {
			return
		}
		switch update.Kind {
		case bus.UpdateMessage:
			w.ingestMessage(ctx, update)
		case bus.UpdateCallback:
			w.ingestCallback(ctx, update)
		default:
			slog.Warn("reactive: inbound update with unknown kind ignored", "kind", update.Kind)
		}
	}
}

// ingestMessage implements §4.2's message path: thread, message,
// attachment artifacts, approval supersession, classify job, wake.
func (w *Worker) ingestMessage(ctx context.Context, update bus.InboundUpdate) {
	thread, err := w.threads.GetOrCreate(ctx, update.Channel, update.ChatID)
	if err != nil {
		slog.Error("reactive: get-or-create thread failed", "error", err)
		return
	}

	msg := &store.Message{
		ThreadID:          thread.ID,
		ExternalMessageID: update.MessageID,
		Role:              store.RoleUser,
		AuthorID:          firstNonEmpty(update.SenderID, update.UserID),
		Text:              update.Content,
	}
	if len(update.Metadata) > 0 {
		if raw, err := json.Marshal(update.Metadata); err == nil {
			msg.RawPayload = raw
		}
	}
	if err := w.messages.Insert(ctx, msg); err != nil {
		slog.Error("reactive: insert message failed", "error", err)
		return
	}

	for _, ref := range update.Media {
		w.insertMediaArtifact(ctx, msg.ID, ref)
	}

	if _, err := w.approvals.SupersedePendingForThread(ctx, thread.ID); err != nil {
		slog.Error("reactive: supersede pending approvals failed", "thread_id", thread.ID, "error", err)
	}

	job := &store.ReactiveJob{
		ThreadID:         thread.ID,
		TriggerMessageID: msg.ID,
		Mode:             store.JobClassify,
	}
	if err := w.jobs.Enqueue(ctx, job); err != nil {
		slog.Error("reactive: enqueue classify job failed", "error", err)
		return
	}

	w.signalWake()
}

// insertMediaArtifact persists one detected attachment as a pending (or,
// when the transport already computed a result inline, done) Artifact —
// spec §4.2 step 3. The blob itself was already downloaded to local disk
// by the transport; here it is handed to the durable blob store so the
// media processor (C5) can dereference it independent of the transport's
// temp-file lifetime.
func (w *Worker) insertMediaArtifact(ctx context.Context, messageID uuid.UUID, ref bus.MediaRef) {
	kind := artifactKindFor(ref.Kind)
	if kind == "" {
		return
	}

	artifact := &store.Artifact{MessageID: messageID, Kind: kind, Status: store.ArtifactPending}

	if ref.Path != "" && w.storage != nil {
		data, err := readAndRemove(ref.Path)
		if err != nil {
			slog.Warn("reactive: read media blob failed", "path", ref.Path, "error", err)
		} else {
			uri, err := w.storage.Put(ctx, "artifacts", artifactBlobKey(messageID, ref), data, ref.MimeType)
			if err != nil {
				slog.Warn("reactive: store media blob failed", "error", err)
			} else {
				artifact.URI = uri
			}
		}
	}

	// The transport already ran this one synchronously (e.g. Telegram's
	// optional STT proxy or plain-text document read); record the result
	// now instead of re-doing the work in the media processor.
	if ref.Text != "" {
		content, _ := json.Marshal(map[string]string{"text": ref.Text})
		artifact.Status = store.ArtifactDone
		artifact.Content = content
	}

	if err := w.artifacts.Insert(ctx, artifact); err != nil {
		slog.Error("reactive: insert artifact failed", "kind", kind, "error", err)
	}
}

func artifactKindFor(k bus.MediaKind) store.ArtifactKind {
	switch k {
	case bus.MediaVoice:
		return store.ArtifactVoiceTranscript
	case bus.MediaImage:
		return store.ArtifactImageJSON
	case bus.MediaDocument:
		return store.ArtifactOCRText
	default:
		return ""
	}
}

func artifactBlobKey(messageID uuid.UUID, ref bus.MediaRef) string {
	name := ref.FileName
	if name == "" {
		name = string(ref.Kind)
	}
	return fmt.Sprintf("%s/%s", messageID, name)
}

// ingestCallback implements §4.2's callback path: only "approval:<id>"
// payloads are handled, everything else is logged and ignored.
func (w *Worker) ingestCallback(ctx context.Context, update bus.InboundUpdate) {
	if !strings.HasPrefix(update.CallbackData, approvalCallbackPrefix) {
		slog.Info("reactive: callback payload ignored", "data", update.CallbackData)
		return
	}

	idStr := strings.TrimPrefix(update.CallbackData, approvalCallbackPrefix)
	id, err := uuid.Parse(idStr)
	if err != nil {
		slog.Warn("reactive: malformed approval callback", "data", update.CallbackData, "error", err)
		return
	}

	approval, err := w.approvals.Get(ctx, id)
	if err != nil {
		slog.Warn("reactive: approval callback for unknown approval", "approval_id", id, "error", err)
		w.answerCallback(update.CallbackID, "This request is no longer available.")
		return
	}

	resolved, err := w.approvals.Resolve(ctx, id, store.ApprovalApproved)
	if err != nil {
		slog.Error("reactive: approval resolve failed", "approval_id", id, "error", err)
		return
	}
	if !resolved {
		// Already resolved by a prior callback delivery — no-op.
		w.answerCallback(update.CallbackID, "Already resolved.")
		return
	}

	// Defensive: if the sibling job somehow never progressed past
	// classify, flip it to execute so the worker re-leases it (spec §4.2).
	if approval.JobID != nil {
		if job, err := w.jobs.Get(ctx, *approval.JobID); err == nil && job.Mode == store.JobClassify {
			if err := w.jobs.SetMode(ctx, job.ID, store.JobExecute); err != nil {
				slog.Error("reactive: flip classify job to execute failed", "job_id", job.ID, "error", err)
			}
			w.signalWake()
		}
	}

	w.answerCallback(update.CallbackID, "")
	if approval.PromptChatID != "" && approval.PromptMessageID != "" {
		w.router.PublishOutbound(bus.OutboundMessage{
			Action:    bus.OutboundEditText,
			ChatID:    approval.PromptChatID,
			MessageID: approval.PromptMessageID,
			Content:   approval.ProposalText + "\n\n✅ Approved.",
		})
	}
}

func (w *Worker) answerCallback(callbackID, text string) {
	if callbackID == "" {
		return
	}
	w.router.PublishOutbound(bus.OutboundMessage{
		Action:     bus.OutboundAnswerCallback,
		CallbackID: callbackID,
		Content:    text,
	})
}

// readAndRemove reads a transport-downloaded temp file into memory and
// removes it — the durable copy lives in the blob store from here on.
func readAndRemove(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	os.Remove(path)
	return data, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
