// Package chat defines the transport contract between the bot and the chat
// messaging platform, plus a thin long-polling client. The transport owns
// no business state: it delivers inbound updates and renders replies.
package chat

import "context"

// Button is one selectable action: a label shown to the user and an opaque
// action token returned when pressed.
type Button struct {
	Label  string
	Action string
}

// Reply is an outbound render: a text body plus an ordered set of buttons
// arranged in rows. An empty Buttons slice renders plain text.
type Reply struct {
	Text    string
	Buttons [][]Button
}

// Row builds one keyboard row
func Row(buttons ...Button) []Button {
	return buttons
}

// Update is one inbound user event, decoded from the platform's wire shape.
// Exactly one of Text or Action is meaningful: Text for free-text messages
// (including commands), Action for button presses.
type Update struct {
	UserID    int64
	Username  string
	ChatID    int64
	MessageID int64
	Text      string
	Action    string
	ActionID  string // platform callback id, acknowledged after handling
}

// IsAction reports whether the update is a button press
func (u Update) IsAction() bool {
	return u.Action != ""
}

// Sender delivers replies to a chat
type Sender interface {
	// Send posts a new message
	Send(ctx context.Context, chatID int64, reply Reply) error
	// Edit replaces the text and keyboard of an existing message
	Edit(ctx context.Context, chatID, messageID int64, reply Reply) error
}
