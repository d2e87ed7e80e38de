package chat

// Texts shown to participants by the session commands and the relay.
const (
	MsgPartnerLeft  = "⚠️ Your partner left the chat."
	MsgSearching    = "🔍 Looking for a new partner..."
	MsgLeft         = "❌ You left the chat."
	MsgNotConnected = "⚠️ You are not connected. Use /next to find a partner."
)
