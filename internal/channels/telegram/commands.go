package telegram

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const helpText = `Available commands:
/start — begin a conversation
/help — show this message
/status — show whether the agent is reachable`

// handleBotCommand intercepts the small set of slash commands that bypass
// the normal message-to-job pipeline. Returns true if it handled the
// message and the caller should stop processing.
func (c *Channel) handleBotCommand(ctx context.Context, message *telego.Message, chatID int64) bool {
	text := strings.TrimSpace(message.Text)
	if !strings.HasPrefix(text, "/") {
		return false
	}
	cmd := strings.SplitN(strings.TrimPrefix(text, "/"), "@", 2)[0]
	cmd = strings.Fields(cmd)[0]

	switch cmd {
	case "start":
		c.reply(ctx, chatID, "Hello — I'm online. Send me a message, or /help for commands.")
	case "help":
		c.reply(ctx, chatID, helpText)
	case "status":
		c.reply(ctx, chatID, "I'm running and listening for messages.")
	default:
		return false
	}
	return true
}

func (c *Channel) reply(ctx context.Context, chatID int64, text string) {
	if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		slog.Warn("telegram: command reply failed", "chat_id", chatID, "error", err)
	}
}

// SyncMenuCommands registers bot commands with Telegram via setMyCommands.
func (c *Channel) SyncMenuCommands(ctx context.Context, commands []telego.BotCommand) error {
	if err := c.bot.DeleteMyCommands(ctx, nil); err != nil {
		slog.Debug("deleteMyCommands failed (may not exist)", "error", err)
	}
	if len(commands) == 0 {
		return nil
	}
	if len(commands) > 100 {
		commands = commands[:100]
	}
	return c.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands})
}

// DefaultMenuCommands returns the default bot menu commands.
func DefaultMenuCommands() []telego.BotCommand {
	return []telego.BotCommand{
		{Command: "start", Description: "Start chatting with the bot"},
		{Command: "help", Description: "Show available commands"},
		{Command: "status", Description: "Show bot status"},
	}
}
