package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

// handleMessage normalizes an inbound Telegram message and publishes it
// onto the bus for ingestion (C2).
func (c *Channel) handleMessage(ctx context.Context, message *telego.Message) {
	if isServiceMessage(message) {
		slog.Debug("telegram service message skipped", "chat_id", message.Chat.ID)
		return
	}

	user := message.From
	if user == nil {
		return
	}

	chatID := message.Chat.ID
	if message.Text != "" && c.handleBotCommand(ctx, message, chatID) {
		return
	}

	userID := fmt.Sprintf("%d", user.ID)
	senderID := userID
	if user.Username != "" {
		senderID = fmt.Sprintf("%s|%s", userID, user.Username)
	}

	chatIDStr := fmt.Sprintf("%d", message.Chat.ID)

	content := message.Text
	if message.Caption != "" {
		if content != "" {
			content += "\n"
		}
		content += message.Caption
	}

	mediaList := c.resolveMedia(ctx, message)
	var mediaRefs []bus.MediaRef
	if len(mediaList) > 0 {
		var extra string
		for i := range mediaList {
			m := &mediaList[i]
			switch m.Type {
			case "audio", "voice":
				transcript, err := c.transcribeAudio(ctx, m.FilePath)
				if err != nil {
					slog.Warn("telegram: STT transcription failed", "type", m.Type, "error", err)
				} else {
					m.Transcript = transcript
				}
				if m.FilePath != "" {
					mediaRefs = append(mediaRefs, bus.MediaRef{
						Kind: bus.MediaVoice, Path: m.FilePath, FileName: m.FileName,
						MimeType: m.ContentType, Text: m.Transcript,
					})
				}
			case "document":
				var docText string
				if m.FileName != "" && m.FilePath != "" {
					docContent, err := extractDocumentContent(m.FilePath, m.FileName)
					if err != nil {
						slog.Warn("telegram: document extraction failed", "file", m.FileName, "error", err)
					} else if docContent != "" {
						extra += "\n\n" + docContent
						docText = docContent
					}
				}
				if m.FilePath != "" {
					mediaRefs = append(mediaRefs, bus.MediaRef{
						Kind: bus.MediaDocument, Path: m.FilePath, FileName: m.FileName,
						MimeType: m.ContentType, Text: docText,
					})
				}
			case "image":
				if m.FilePath != "" {
					mediaRefs = append(mediaRefs, bus.MediaRef{
						Kind: bus.MediaImage, Path: m.FilePath, FileName: m.FileName, MimeType: m.ContentType,
					})
				}
			case "video", "animation":
				if content == "" {
					extra += "\n\n[Video received — video content analysis is not supported, only caption text is processed]"
				}
			}
		}

		if tags := buildMediaTags(mediaList); tags != "" {
			if content != "" {
				content = tags + "\n\n" + content
			} else {
				content = tags
			}
		}
		content += extra
	}

	if content == "" {
		content = "[empty message]"
	}

	slog.Debug("telegram message received", "chat_id", chatIDStr, "sender_id", senderID, "preview", truncate(content, 80))

	c.router.PublishInbound(bus.InboundUpdate{
		Kind:      bus.UpdateMessage,
		Channel:   "telegram",
		ChatID:    chatIDStr,
		SenderID:  senderID,
		UserID:    userID,
		Content:   content,
		Media:     mediaRefs,
		MessageID: fmt.Sprintf("%d", message.MessageID),
		Metadata: map[string]string{
			"username":   user.Username,
			"first_name": user.FirstName,
		},
	})
}

// handleCallbackQuery normalizes an inline-button press, e.g. an approval
// resolution (data "approval:<uuid>"), per spec §6.1/§4.4.
func (c *Channel) handleCallbackQuery(ctx context.Context, cb *telego.CallbackQuery) {
	var chatID, messageID int64
	switch m := cb.Message.(type) {
	case *telego.Message:
		chatID = m.Chat.ID
		messageID = int64(m.MessageID)
	case *telego.InaccessibleMessage:
		chatID = m.Chat.ID
		messageID = int64(m.MessageID)
	default:
		slog.Debug("telegram callback query has no usable message, skipping", "callback_id", cb.ID)
		return
	}

	userID := fmt.Sprintf("%d", cb.From.ID)
	senderID := userID
	if cb.From.Username != "" {
		senderID = fmt.Sprintf("%s|%s", userID, cb.From.Username)
	}

	c.router.PublishInbound(bus.InboundUpdate{
		Kind:         bus.UpdateCallback,
		Channel:      "telegram",
		ChatID:       fmt.Sprintf("%d", chatID),
		SenderID:     senderID,
		UserID:       userID,
		CallbackID:   cb.ID,
		CallbackData: cb.Data,
		MessageID:    fmt.Sprintf("%d", messageID),
	})
}

// isServiceMessage returns true for Telegram service/system messages
// (member added/removed, title changed, pinned, …) with no user content.
func isServiceMessage(msg *telego.Message) bool {
	if msg.Text != "" || msg.Caption != "" {
		return false
	}
	return msg.Photo == nil && msg.Audio == nil && msg.Video == nil &&
		msg.Document == nil && msg.Voice == nil && msg.VideoNote == nil &&
		msg.Sticker == nil && msg.Animation == nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}

// splitMessage splits text into parts of at most max chars, preferring
// paragraph, then sentence, then space boundaries (spec §6.2).
func splitMessage(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}

	var parts []string
	for len(text) > max {
		cut := findSplitPoint(text, max)
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func findSplitPoint(text string, max int) int {
	window := text[:max]
	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return i + 2
	}
	if i := strings.LastIndex(window, ". "); i > 0 {
		return i + 2
	}
	if i := strings.LastIndex(window, " "); i > 0 {
		return i + 1
	}
	return max
}
