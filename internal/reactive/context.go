package reactive

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// summaryPreviewChars bounds how much of an artifact's extracted text is
// folded into the conversation window (spec §4.5 "<first 200 chars>").
const summaryPreviewChars = 200

// buildConversationWindow loads the last `limit` messages for a thread
// and appends each message's artifact summaries to its text, matching
// spec §4.3 "Load last N messages ... enriched with artifact summaries"
// and §4.5 "Summaries are appended to the message text".
func (w *Worker) buildConversationWindow(ctx context.Context, threadID uuid.UUID) ([]providers.Message, error) {
	msgs, err := w.messages.RecentWindow(ctx, threadID, w.historyLimit)
	if err != nil {
		return nil, err
	}

	out := make([]providers.Message, 0, len(msgs))
	for _, m := range msgs {
		text := m.Text

		artifacts, err := w.artifacts.ListForMessage(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range artifacts {
			if s := artifactSummary(a); s != "" {
				if text != "" {
					text += "\n"
				}
				text += s
			}
		}

		out = append(out, providers.Message{Role: string(m.Role), Content: text})
	}
	return out, nil
}

// artifactSummary renders one artifact as a short human-readable string
// per spec §4.5. Pending/processing/failed artifacts contribute nothing
// yet — the classifier sees only what's actually available.
func artifactSummary(a *store.Artifact) string {
	if a.Status != store.ArtifactDone {
		return ""
	}

	var payload struct {
		Text        string   `json:"text"`
		Description string   `json:"description"`
		Objects     []string `json:"objects"`
	}
	_ = json.Unmarshal(a.Content, &payload)

	switch a.Kind {
	case store.ArtifactVoiceTranscript:
		return "[Voice message]: " + preview(payload.Text)
	case store.ArtifactImageJSON:
		if payload.Description != "" {
			return "[Image]: " + preview(payload.Description)
		}
		return "[Image attached]"
	case store.ArtifactOCRText:
		return "[Document]: " + preview(payload.Text)
	default:
		return ""
	}
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= summaryPreviewChars {
		return s
	}
	return s[:summaryPreviewChars] + "..."
}
