package core

import "time"

// Source identifies where an event came from and where its reply goes
type Source struct {
	EventID      string    // Unique per inbound update, used to correlate logs
	Platform     string    // telegram/discord
	Conversation string    // Chat/channel ID the reply is sent to
	UserID       string    // Platform user identifier
	UserName     string    // Display name, untrusted
	Received     time.Time // When the transport received the update
}

// EventSource returns the event's origin
func (s Source) EventSource() Source {
	return s
}

func (Source) isEvent() {}

// Event is one normalized inbound occurrence. The variants are
// TextCommand, CallbackPress, PlainText, Photo and Document.
type Event interface {
	EventSource() Source
	isEvent()
}

// TextCommand is a message such as "/calc 2+2"
type TextCommand struct {
	Source
	Name string   // Command name without prefix or @botname
	Args []string // Whitespace separated arguments, in order
}

// CallbackPress is a press on an inline keyboard button
type CallbackPress struct {
	Source
	Tag string // Raw callback data as received
}

// PlainText is any non-command text message
type PlainText struct {
	Source
	Text string
}

// Photo is a received image; sizes come from the largest rendition
type Photo struct {
	Source
	FileID string
	Width  int
	Height int
	Size   int64 // Bytes as reported in the update, 0 when unknown
}

// Document is a received file attachment
type Document struct {
	Source
	FileID   string
	FileName string
	Size     int64
	MimeType string
}

// Action is an inline-button action. The set is closed; its wire tag equals the
// name of the command it triggers.
type Action string

const (
	ActionHelp Action = "help"
	ActionTime Action = "time"
	ActionJoke Action = "joke"
	ActionInfo Action = "info"
)

// Actions lists every Action in keyboard order
func Actions() []Action {
	return []Action{ActionHelp, ActionTime, ActionJoke, ActionInfo}
}

// ParseAction maps a callback tag back to its Action
func ParseAction(tag string) (Action, bool) {
	for _, a := range Actions() {
		if string(a) == tag {
			return a, true
		}
	}
	return "", false
}

// Tag is the callback data carried by a button for this action
func (a Action) Tag() string {
	return string(a)
}

// Button is one inline keyboard button
type Button struct {
	Label  string
	Action Action
}

// Keyboard is an ordered list of button rows
type Keyboard [][]Button

// Reply is the outbound message produced by a handler
type Reply struct {
	Text     string
	Keyboard Keyboard // nil when the reply has no buttons
}
