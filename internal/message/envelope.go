package message

import (
	"time"
)

// Type discriminates outbound envelopes by how the client should render them.
type Type string

const (
	TypeSystem        Type = "system"
	TypeError         Type = "error"
	TypeBroadcast     Type = "broadcast"
	TypeWhisper       Type = "whisper"
	TypeShout         Type = "shout"
	TypeZoneBroadcast Type = "zone_broadcast"
	TypeGlobal        Type = "global"
	TypePlayerUpdate  Type = "player_update"
	TypeCommandResult Type = "command_result"
	TypePong          Type = "pong"
)

// Envelope is a single server-to-client message. One envelope instance may be
// delivered to many sessions, so it must never be mutated after construction.
type Envelope struct {
	Type      Type           `json:"type"`
	Message   string         `json:"message,omitempty"`
	Sender    string         `json:"sender,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// New creates an envelope of the given type carrying a message.
func New(t Type, text string) *Envelope {
	return &Envelope{
		Type:      t,
		Message:   text,
		Timestamp: time.Now().UTC(),
	}
}

// NewFrom creates an envelope attributed to a sender by display name.
func NewFrom(t Type, sender, text string) *Envelope {
	e := New(t, text)
	e.Sender = sender
	return e
}

func NewSystem(text string) *Envelope {
	return New(TypeSystem, text)
}

func NewError(text string) *Envelope {
	return New(TypeError, text)
}

func NewPong() *Envelope {
	return New(TypePong, "")
}
