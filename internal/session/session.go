package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pixil98/go-mudlink/internal/commands"
	"github.com/pixil98/go-mudlink/internal/message"
	"github.com/pixil98/go-mudlink/internal/storage"
)

// Close codes for server-initiated disconnects. Websocket transports carry
// them in the close frame; line transports render only the reason.
const (
	CloseNormal       = 1000
	CloseShutdown     = 1001
	CloseInternal     = 1011
	CloseInvalidToken = 4001
	CloseNoIdentity   = 4002
	CloseKicked       = 4003
	CloseBadFrames    = 4007
	CloseSlowConsumer = 4008
	CloseIdleTimeout  = 4009
)

// Conn is one client connection, independent of transport. Implementations
// live in the listener package, one per protocol.
type Conn interface {
	// ReadFrame blocks until the next inbound frame arrives, returned in the
	// canonical JSON frame shape. A clean client disconnect is io.EOF.
	ReadFrame() ([]byte, error)

	// WriteEnvelope sends one envelope to the client.
	WriteEnvelope(env *message.Envelope) error

	// Close tears down the transport, unblocking any pending ReadFrame.
	// Safe to call more than once.
	Close(code int, reason string) error

	// Transport names the protocol for logs and metrics.
	Transport() string
}

// Dispatcher executes one line of player input on behalf of an actor.
type Dispatcher interface {
	Dispatch(ctx context.Context, actor commands.Actor, raw string) error
}

// Session owns one authenticated client connection: the read loop, the
// outbound queue, and the teardown that detaches the player from every
// group exactly once. It satisfies groups.Member and commands.Actor.
type Session struct {
	id         string
	playerId   storage.Identifier
	playerName string
	conn       Conn
	dispatcher Dispatcher
	createdAt  time.Time

	out  chan *message.Envelope
	done chan struct{}

	closeOnce sync.Once
	cleanup   func()

	strikes     int
	strikeLimit int
	quitting    bool

	rec Recorder

	mu           sync.Mutex
	lastActivity time.Time
}

// ID returns the session id. Group exclusion and kick targeting key on it,
// so it is unique per connection, not per player.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) PlayerID() storage.Identifier {
	return s.playerId
}

func (s *Session) PlayerName() string {
	return s.playerName
}

// Quit asks the session to close once the current command finishes. Only
// command handlers call this, so it runs on the session's own loop.
func (s *Session) Quit() {
	s.quitting = true
}

// LastActivity is when the client last sent a well-formed frame.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// QueueDepth is the number of envelopes waiting for the client's socket.
func (s *Session) QueueDepth() int {
	return len(s.out)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Deliver enqueues an envelope for the client without blocking the caller.
// A session whose queue is full is evicted: a client that stops draining
// its socket cannot stall the fan-out or grow the backlog without bound.
func (s *Session) Deliver(env *message.Envelope) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.out <- env:
		if s.rec != nil {
			s.rec.EnvelopeDelivered()
		}
	default:
		slog.Warn("evicting slow consumer", "session", s.id, "player", s.playerId, "queued", len(s.out))
		if s.rec != nil {
			s.rec.SlowConsumerEvicted()
		}
		go s.Close(CloseSlowConsumer, "You are receiving messages faster than your connection can take them.")
	}
}

// Close tears the session down: the transport closes, the player leaves
// every group, and presence flips offline. Every disconnect path funnels
// here, and the side effects run exactly once no matter how often or from
// which goroutine it is called.
func (s *Session) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.conn.Close(code, reason); err != nil {
			slog.Debug("closing transport", "session", s.id, "error", err)
		}
		if s.cleanup != nil {
			s.cleanup()
		}
	})
}

// Run drives the session until the connection drops, the server closes it,
// or the player quits. Inbound frames and outbound envelopes share one
// loop, so envelopes reach the socket in exactly enqueue order.
func (s *Session) Run(ctx context.Context) error {
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(frames)
		for {
			data, err := s.conn.ReadFrame()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-s.done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.Close(CloseShutdown, "Server is shutting down.")
			return ctx.Err()

		case <-s.done:
			return nil

		case env := <-s.out:
			if err := s.conn.WriteEnvelope(env); err != nil {
				s.Close(CloseNormal, "")
				return fmt.Errorf("writing envelope: %w", err)
			}

		case data, ok := <-frames:
			if !ok {
				// Reading stopped. If we closed the connection ourselves
				// the read error is just the aborted read.
				select {
				case <-s.done:
					return nil
				default:
				}
				err := <-readErr
				s.Close(CloseNormal, "")
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("reading frame: %w", err)
			}
			s.handleFrame(ctx, data)
			if s.quitting {
				s.Close(CloseNormal, "Goodbye!")
				return nil
			}
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, data []byte) {
	frame, err := message.ParseFrame(data)
	if err != nil {
		s.strike(err)
		return
	}

	s.touch()

	switch frame.Type {
	case message.FramePing:
		s.Deliver(message.NewPong())
	case message.FrameCommand:
		s.runCommand(ctx, frame.Command)
	}
}

// strike counts a malformed frame against the session. The client gets an
// error envelope each time; past the limit the connection is closed.
func (s *Session) strike(err error) {
	reason := "Malformed message."
	var frameErr *message.FrameError
	if errors.As(err, &frameErr) {
		reason = frameErr.Reason
	}

	s.strikes++
	s.Deliver(message.NewError(reason))
	if s.strikes >= s.strikeLimit {
		slog.Warn("closing session after repeated bad frames", "session", s.id, "player", s.playerId, "strikes", s.strikes)
		s.Close(CloseBadFrames, "Too many malformed messages.")
	}
}

func (s *Session) runCommand(ctx context.Context, raw string) {
	err := s.dispatcher.Dispatch(ctx, s, raw)
	if err == nil {
		s.record("ok")
		return
	}

	var userErr *commands.UserError
	if errors.As(err, &userErr) {
		s.record(userErr.Kind.String())
		s.Deliver(message.NewError(userErr.Message))
		return
	}

	// System failure: the player gets a generic error envelope, the details
	// go to the log. The connection stays open.
	s.record("error")
	slog.ErrorContext(ctx, "command failed", "session", s.id, "player", s.playerId, "error", err)
	s.Deliver(message.NewError("An error occurred processing your request."))
}

func (s *Session) record(outcome string) {
	if s.rec != nil {
		s.rec.CommandProcessed(outcome)
	}
}
