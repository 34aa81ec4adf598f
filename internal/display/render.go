package display

import (
	"github.com/pixil98/go-mudlink/internal/message"
)

// Render flattens an envelope to text for line-oriented clients. Message
// bodies keep the HTML escaping applied at dispatch, so every transport
// shows the same characters.
func Render(env *message.Envelope) string {
	switch env.Type {
	case message.TypePlayerUpdate:
		// Structured state for clients that track location; nothing to
		// show on a text stream.
		return ""
	case message.TypePong:
		return "Pong!"
	default:
		return env.Message
	}
}
