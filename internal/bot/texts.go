package bot

import "github.com/Alexander-D-Karpov/tandem/internal/transport"

const (
	CommandStart = "start"
	CommandHelp  = "help"
	CommandNext  = "next"
	CommandStop  = "stop"
)

const (
	MsgWelcomeBack = "👋 Welcome back! Use /next to find a partner."
	MsgHelp        = "ℹ️ Bot Commands:\n" +
		"/start - Start or setup your profile\n" +
		"/next - Connect with a new partner\n" +
		"/stop - Leave current chat\n" +
		"/help - Show this message"
	MsgUnknownCommand = "🤷 Unknown command. Use /help to see what I can do."
	MsgTryAgain       = "⚠️ Something went wrong. Please try again."
)

// Commands lists the commands a transport should advertise to participants.
var Commands = []transport.CommandInfo{
	{Name: CommandStart, Description: "Start or setup your profile"},
	{Name: CommandNext, Description: "Connect with a new partner"},
	{Name: CommandStop, Description: "Leave current chat"},
	{Name: CommandHelp, Description: "Show help"},
}
