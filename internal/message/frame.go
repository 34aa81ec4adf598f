package message

import (
	"encoding/json"
	"fmt"
)

// MaxFrameSize is the largest inbound frame accepted from a client.
const MaxFrameSize = 16 * 1024

const (
	FrameCommand = "command"
	FramePing    = "ping"
)

// FrameError reports a malformed inbound frame. The reason is safe to echo
// back to the client; the connection stays open.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return e.Reason
}

// Frame is a single client-to-server message.
type Frame struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
}

// ParseFrame decodes an inbound frame. Malformed or oversized payloads yield
// a *FrameError so callers can distinguish client mistakes from I/O failures.
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) > MaxFrameSize {
		return nil, &FrameError{Reason: "Message too large"}
	}

	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &FrameError{Reason: "Invalid JSON"}
	}

	switch f.Type {
	case FrameCommand, FramePing:
		return &f, nil
	default:
		return nil, &FrameError{Reason: fmt.Sprintf("Unknown message type: %s", f.Type)}
	}
}
