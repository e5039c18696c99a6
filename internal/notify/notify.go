// Package notify sends operator-facing notifications (deployment status,
// budget warnings, approval timeouts) over the same chat transport used for
// normal conversation, addressed at the configured operator chat IDs
// (spec §6.6).
package notify

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

// Notifier pushes a message to every configured operator chat via the
// message bus's outbound queue — the same path ordinary replies use, so it
// inherits chunking/HTML formatting for free.
type Notifier struct {
	router         bus.MessageRouter
	operatorChatID []string
}

func New(router bus.MessageRouter, operatorChatID []string) *Notifier {
	return &Notifier{router: router, operatorChatID: operatorChatID}
}

// Send publishes msg to every operator chat. A nil Notifier (no operator
// chats configured) is a silent no-op so callers don't need to guard every
// call site.
func (n *Notifier) Send(ctx context.Context, msg string) {
	if n == nil {
		return
	}
	for _, chatID := range n.operatorChatID {
		n.router.PublishOutbound(bus.OutboundMessage{
			Action:  bus.OutboundSend,
			ChatID:  chatID,
			Content: msg,
		})
	}
}

// Notifyf formats and sends in one call.
func (n *Notifier) Notifyf(ctx context.Context, format string, args ...any) {
	n.Send(ctx, fmt.Sprintf(format, args...))
}
