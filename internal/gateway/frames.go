package gateway

import (
	"strings"

	"github.com/Alexander-D-Karpov/tandem/internal/transport"
)

// Frame types exchanged with websocket clients.
const (
	FrameCommand  = "command"
	FrameText     = "text"
	FramePhoto    = "photo"
	FrameSticker  = "sticker"
	FrameActivity = "activity"
	FrameError    = "error"
)

// ClientFrame is sent by a participant. Commands may be given either in
// Command or as a leading slash in Text.
type ClientFrame struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	Args    string `json:"args,omitempty"`
	Text    string `json:"text,omitempty"`
	FileID  string `json:"file_id,omitempty"`
}

// ServerFrame is sent to a participant. It never carries the id of the
// participant on the other end.
type ServerFrame struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Activity string `json:"activity,omitempty"`
	FileID   string `json:"file_id,omitempty"`
}

// toInbound converts a client frame. ok is false for frames that carry
// nothing the router can act on.
func (f ClientFrame) toInbound(from int64, messageID int) (transport.Inbound, bool) {
	in := transport.Inbound{From: from}

	switch f.Type {
	case FrameCommand:
		if f.Command == "" {
			return in, false
		}
		in.Command = strings.ToLower(strings.TrimPrefix(f.Command, "/"))
		in.Args = f.Args
		return in, true

	case FrameText:
		if cmd, args, ok := parseCommand(f.Text); ok {
			in.Command, in.Args = cmd, args
			return in, true
		}
		if f.Text == "" {
			return in, false
		}
		in.Content = transport.Content{Kind: transport.ContentText, Text: f.Text, MessageID: messageID}
		return in, true

	case FramePhoto, FrameSticker:
		if f.FileID == "" {
			return in, false
		}
		kind := transport.ContentPhoto
		if f.Type == FrameSticker {
			kind = transport.ContentSticker
		}
		in.Content = transport.Content{Kind: kind, FileID: f.FileID, MessageID: messageID}
		return in, true
	}

	return in, false
}

func contentFrame(c transport.Content) ServerFrame {
	switch c.Kind {
	case transport.ContentPhoto:
		return ServerFrame{Type: FramePhoto, FileID: c.FileID}
	case transport.ContentSticker:
		return ServerFrame{Type: FrameSticker, FileID: c.FileID}
	default:
		return ServerFrame{Type: FrameText, Text: c.Text}
	}
}

func parseCommand(text string) (string, string, bool) {
	if !strings.HasPrefix(text, "/") || len(text) < 2 {
		return "", "", false
	}
	cmd, args, _ := strings.Cut(text[1:], " ")
	return strings.ToLower(cmd), strings.TrimSpace(args), true
}
