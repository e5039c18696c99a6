package bus

import "context"

// MessageBus is an in-process, channel-backed MessageRouter. One instance
// is shared between the chat transport (producer of inbound, consumer of
// outbound) and the reactive worker (consumer of inbound, producer of
// outbound).
type MessageBus struct {
	inbound  chan InboundUpdate
	outbound chan OutboundMessage
}

// New creates a MessageBus with the given channel buffer depth.
func New(buffer int) *MessageBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &MessageBus{
		inbound:  make(chan InboundUpdate, buffer),
		outbound: make(chan OutboundMessage, buffer),
	}
}

func (b *MessageBus) PublishInbound(update InboundUpdate) {
	b.inbound <- update
}

func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundUpdate, bool) {
	select {
	case update := <-b.inbound:
		return update, true
	case <-ctx.Done():
		return InboundUpdate{}, false
	}
}

func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	b.outbound <- msg
}

func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

var _ MessageRouter = (*MessageBus)(nil)
