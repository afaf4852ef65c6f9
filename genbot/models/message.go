package models

// Message is an inbound chat message.
type Message struct {
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	Text      string
	// ReplyToText is the text of the message this one replies to, if any.
	ReplyToText string
}

// Callback is a press on an inline button.
type Callback struct {
	ID        string
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	Data      string
}

// Update carries exactly one of Message or Callback.
type Update struct {
	Message  *Message
	Callback *Callback
}

// Button is an inline action button; Data is returned in Callback.Data.
type Button struct {
	Text string
	Data string
}

// Reply is an outbound message.
type Reply struct {
	ChatID   int64
	Text     string
	Markdown bool
	Buttons  [][]Button
}
