// Package transport defines what the chat core needs from a messaging
// network: outbound delivery to a participant and a stream of inbound
// updates. Implementations live in the telegram and websocket subpackages.
package transport

import "context"

type Activity string

const (
	ActivityTyping        Activity = "typing"
	ActivityUploadPhoto   Activity = "upload_photo"
	ActivityChooseSticker Activity = "choose_sticker"
)

type ContentKind int

const (
	ContentText ContentKind = iota
	ContentPhoto
	ContentSticker
)

func (k ContentKind) String() string {
	switch k {
	case ContentPhoto:
		return "photo"
	case ContentSticker:
		return "sticker"
	default:
		return "text"
	}
}

// Activity returns the indicator shown to a recipient while content of this
// kind is on its way.
func (k ContentKind) Activity() Activity {
	switch k {
	case ContentPhoto:
		return ActivityUploadPhoto
	case ContentSticker:
		return ActivityChooseSticker
	default:
		return ActivityTyping
	}
}

// Content references a message sent by a participant. MessageID and FileID
// are transport specific; a transport fills whichever it can forward from.
type Content struct {
	Kind      ContentKind
	Text      string
	MessageID int
	FileID    string
}

// Sender delivers to a single participant. Every error it returns is an
// errors.DeliveryError.
type Sender interface {
	SendText(ctx context.Context, to int64, text string) error
	SendActivity(ctx context.Context, to int64, activity Activity) error
	Forward(ctx context.Context, to, from int64, content Content) error
}

// Inbound is one update received from a participant: either a command or
// a piece of content.
type Inbound struct {
	ID      string
	From    int64
	Command string
	Args    string
	Content Content
}

func (in Inbound) IsCommand() bool {
	return in.Command != ""
}

// CommandInfo describes a command for transports that can advertise them.
type CommandInfo struct {
	Name        string
	Description string
}

type Handler interface {
	Handle(ctx context.Context, in Inbound)
}

type HandlerFunc func(ctx context.Context, in Inbound)

func (f HandlerFunc) Handle(ctx context.Context, in Inbound) {
	f(ctx, in)
}
