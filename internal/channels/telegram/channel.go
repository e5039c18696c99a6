package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/config"
)

// maxMessageChars is Telegram's hard limit per message; longer replies are
// split at paragraph/sentence/space boundaries per spec §6.2.
const maxMessageChars = 4096

// interPartDelay separates successive parts of a long message.
const interPartDelay = 300 * time.Millisecond

// Channel is the single Telegram chat transport: it normalizes inbound
// updates onto the bus and drains the bus's outbound queue back into
// Telegram API calls.
type Channel struct {
	bot    *telego.Bot
	config config.TelegramConfig
	router bus.MessageRouter

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates a Telegram channel from config, bound to router for both
// inbound publication and outbound consumption.
func New(cfg config.TelegramConfig, router bus.MessageRouter) (*Channel, error) {
	var opts []telego.BotOption

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, err)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Channel{bot: bot, config: cfg, router: router}, nil
}

// HandleUpdate parses a raw webhook body and dispatches it onto the bus.
// This is the default ingestion path (spec §6.1, §4.2): the HTTP surface
// answers 200 first and runs this in a background goroutine, so the
// outcome never changes the HTTP response.
func (c *Channel) HandleUpdate(ctx context.Context, rawJSON []byte) error {
	var update telego.Update
	if err := json.Unmarshal(rawJSON, &update); err != nil {
		return fmt.Errorf("parse telegram update: %w", err)
	}
	c.dispatch(ctx, update)
	return nil
}

// StartPolling begins long-polling for updates, used only when
// config.telegram.mode == "polling" (non-public deployments without a
// reachable webhook URL). The default mode is webhook (HandleUpdate).
func (c *Channel) StartPolling(ctx context.Context) error {
	slog.Info("starting telegram bot (polling mode)")

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	if err := c.SyncMenuCommands(ctx, DefaultMenuCommands()); err != nil {
		slog.Debug("telegram: menu command sync failed", "error", err)
	}

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				c.dispatch(pollCtx, update)
			}
		}
	}()

	return nil
}

// StopPolling cancels long polling and waits for the goroutine to exit so
// Telegram releases the getUpdates lock before a new instance starts.
func (c *Channel) StopPolling() {
	if c.pollCancel == nil {
		return
	}
	c.pollCancel()
	select {
	case <-c.pollDone:
	case <-time.After(10 * time.Second):
		slog.Warn("telegram polling goroutine did not exit within timeout")
	}
}

func (c *Channel) dispatch(ctx context.Context, update telego.Update) {
	switch {
	case update.Message != nil:
		c.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		c.handleCallbackQuery(ctx, update.CallbackQuery)
	default:
		slog.Debug("telegram update skipped (no message or callback)", "update_id", update.UpdateID)
	}
}

// RunOutbound drains the bus's outbound queue and applies each message to
// the Telegram API until ctx is cancelled (spec §6.2).
func (c *Channel) RunOutbound(ctx context.Context) {
	for {
		msg, ok := c.router.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		if err := c.applyOutbound(ctx, msg); err != nil {
			slog.Warn("telegram: outbound action failed", "action", msg.Action, "chat_id", msg.ChatID, "error", err)
		}
	}
}

func (c *Channel) applyOutbound(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, err := parseChatID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", msg.ChatID, err)
	}

	switch msg.Action {
	case bus.OutboundSend, "":
		return c.sendSplit(ctx, chatID, msg)
	case bus.OutboundEditText:
		messageID, err := parseMessageID(msg.MessageID)
		if err != nil {
			return err
		}
		parseMode := msg.ParseMode
		if parseMode == "" {
			parseMode = "HTML"
		}
		edit := tu.EditMessageText(tu.ID(chatID), messageID, msg.Content)
		edit.ParseMode = parseMode
		if markup := buildReplyMarkup(msg.Buttons); markup != nil {
			edit.ReplyMarkup = markup
		}
		_, err = c.bot.EditMessageText(ctx, edit)
		return err
	case bus.OutboundEditMarkup:
		messageID, err := parseMessageID(msg.MessageID)
		if err != nil {
			return err
		}
		edit := &telego.EditMessageReplyMarkupParams{
			ChatID:      tu.ID(chatID),
			MessageID:   messageID,
			ReplyMarkup: buildReplyMarkup(msg.Buttons),
		}
		_, err = c.bot.EditMessageReplyMarkup(ctx, edit)
		return err
	case bus.OutboundAnswerCallback:
		return c.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
			CallbackQueryID: msg.CallbackID,
			Text:            msg.Content,
			ShowAlert:       msg.ShowAlert,
		})
	case bus.OutboundSetReaction:
		messageID, err := parseMessageID(msg.MessageID)
		if err != nil {
			return err
		}
		return c.bot.SetMessageReaction(ctx, &telego.SetMessageReactionParams{
			ChatID:    tu.ID(chatID),
			MessageID: messageID,
			Reaction:  []telego.ReactionType{&telego.ReactionTypeEmoji{Type: telego.ReactionEmoji, Emoji: msg.Reaction}},
		})
	default:
		return fmt.Errorf("unknown outbound action %q", msg.Action)
	}
}

// sendSplit sends Content as one or more sequential messages, each
// ≤ maxMessageChars, split at paragraph/sentence/space boundaries.
func (c *Channel) sendSplit(ctx context.Context, chatID int64, msg bus.OutboundMessage) error {
	parts := splitMessage(msg.Content, maxMessageChars)
	parseMode := msg.ParseMode
	if parseMode == "" {
		parseMode = "HTML"
	}
	for i, part := range parts {
		send := tu.Message(tu.ID(chatID), part)
		send.ParseMode = parseMode
		if i == len(parts)-1 {
			if markup := buildReplyMarkup(msg.Buttons); markup != nil {
				send.ReplyMarkup = markup
			}
		}
		if _, err := c.bot.SendMessage(ctx, send); err != nil {
			return fmt.Errorf("send message part %d/%d: %w", i+1, len(parts), err)
		}
		if i < len(parts)-1 {
			time.Sleep(interPartDelay)
		}
	}
	return nil
}

func buildReplyMarkup(buttons []bus.InlineButton) *telego.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	row := make([]telego.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		row = append(row, telego.InlineKeyboardButton{Text: b.Text, CallbackData: b.CallbackData})
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: [][]telego.InlineKeyboardButton{row}}
}

func parseChatID(chatIDStr string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(chatIDStr, "%d", &id)
	if err != nil {
		return 0, fmt.Errorf("parse chat id: %w", err)
	}
	return id, nil
}

func parseMessageID(messageIDStr string) (int, error) {
	var id int
	_, err := fmt.Sscanf(messageIDStr, "%d", &id)
	if err != nil {
		return 0, fmt.Errorf("parse message id: %w", err)
	}
	return id, nil
}
