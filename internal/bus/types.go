package bus

import "context"

// UpdateKind distinguishes the two inbound update shapes the chat
// transport normalizes into, per the webhook contract: a user message or
// an approval button press.
type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

// InboundUpdate is a normalized update from the chat transport, covering
// both plain messages and inline-button callbacks so ingestion can
// dispatch on Kind without the transport leaking platform-specific shapes.
type InboundUpdate struct {
	Kind     UpdateKind
	Channel  string
	ChatID   string
	SenderID string
	UserID   string

	// Message fields (Kind == UpdateMessage).
	Content   string
	Media     []MediaRef
	MessageID string

	// Callback fields (Kind == UpdateCallback).
	CallbackID   string
	CallbackData string // "approval:<uuid>"

	Metadata map[string]string
}

// MediaKind classifies a downloaded attachment for ingestion's artifact
// creation step (spec §4.2 "for each detected attachment ... insert an
// Artifact"), independent of the transport's own type vocabulary.
type MediaKind string

const (
	MediaVoice    MediaKind = "voice"
	MediaImage    MediaKind = "image"
	MediaDocument MediaKind = "document"
)

// MediaRef is one downloaded attachment awaiting artifact persistence.
// Text carries a result the transport already computed inline (Telegram's
// optional STT proxy, plain-text document extraction); when empty, the
// media processor (C5) performs the work asynchronously off the blob at
// Path.
type MediaRef struct {
	Kind     MediaKind
	Path     string
	FileName string
	MimeType string
	Text     string
}

// OutboundAction selects which chat transport operation an OutboundMessage
// performs, matching spec §6.2's send/edit/answer/react verbs.
type OutboundAction string

const (
	OutboundSend           OutboundAction = "send"
	OutboundEditText       OutboundAction = "edit_text"
	OutboundEditMarkup     OutboundAction = "edit_markup"
	OutboundAnswerCallback OutboundAction = "answer_callback"
	OutboundSetReaction    OutboundAction = "set_reaction"
)

// InlineButton is a single inline-keyboard button, used to present an
// approval prompt with an "approval:<id>" callback payload.
type InlineButton struct {
	Text         string
	CallbackData string
}

// OutboundMessage represents one chat transport operation to be
// performed against a thread.
type OutboundMessage struct {
	Action OutboundAction

	ChatID    string
	MessageID string // target of edit_text/edit_markup/set_reaction

	Content   string
	ParseMode string // default "HTML"
	Buttons   []InlineButton
	Media     []MediaAttachment

	CallbackID string // target of answer_callback
	ShowAlert  bool

	Reaction string // target of set_reaction

	Metadata map[string]string
}

// MediaAttachment represents a media file to be sent with a message.
type MediaAttachment struct {
	URL         string
	ContentType string
	Caption     string
}

// MessageRouter abstracts inbound/outbound update routing between the
// chat transport and the reactive/proactive runtime.
type MessageRouter interface {
	PublishInbound(update InboundUpdate)
	ConsumeInbound(ctx context.Context) (InboundUpdate, bool)
	PublishOutbound(msg OutboundMessage)
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}
