package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pixil98/go-mudlink/internal/auth"
	"github.com/pixil98/go-mudlink/internal/groups"
	"github.com/pixil98/go-mudlink/internal/message"
	"github.com/pixil98/go-mudlink/internal/storage"
)

const (
	DefaultQueueSize   = 64
	DefaultIdleTimeout = 15 * time.Minute
	DefaultStrikeLimit = 5
)

// Presence joins a session to its broadcast groups at connect and removes
// it from all of them at disconnect.
type Presence interface {
	Connect(m groups.Member, playerId storage.Identifier) error
	Disconnect(m groups.Member, playerId storage.Identifier)
}

// Recorder counts session events for operational visibility.
type Recorder interface {
	ConnectionOpened(transport string)
	CommandProcessed(outcome string)
	EnvelopeDelivered()
	SlowConsumerEvicted()
}

// Manager tracks every live session, enforces one session per player,
// sweeps idle connections, and closes everything at shutdown.
type Manager struct {
	dispatcher Dispatcher
	presence   Presence
	rec        Recorder

	queueSize   int
	idleTimeout time.Duration
	strikeLimit int

	mu       sync.Mutex
	sessions map[storage.Identifier]*Session
}

func NewManager(dispatcher Dispatcher, presence Presence, opts ...ManagerOpt) *Manager {
	m := &Manager{
		dispatcher:  dispatcher,
		presence:    presence,
		queueSize:   DefaultQueueSize,
		idleTimeout: DefaultIdleTimeout,
		strikeLimit: DefaultStrikeLimit,
		sessions:    make(map[storage.Identifier]*Session),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Attach runs the full lifetime of one authenticated connection: take over
// any prior session for the player, join groups, greet, then pump frames
// until the connection ends. It blocks until the session is torn down.
func (m *Manager) Attach(ctx context.Context, conn Conn, identity *auth.Identity) error {
	s := &Session{
		id:           uuid.NewString(),
		playerId:     identity.ID,
		playerName:   identity.Name,
		conn:         conn,
		dispatcher:   m.dispatcher,
		createdAt:    time.Now(),
		out:          make(chan *message.Envelope, m.queueSize),
		done:         make(chan struct{}),
		strikeLimit:  m.strikeLimit,
		lastActivity: time.Now(),
		rec:          m.rec,
	}
	s.cleanup = func() {
		m.presence.Disconnect(s, s.playerId)
		m.remove(s)
		slog.Info("player disconnected", "player", s.playerId, "session", s.id, "transport", conn.Transport())
	}

	// One live session per player. A reconnect takes over before the new
	// session joins any group, so the old one announces its departure first.
	if prev := m.swap(s); prev != nil {
		prev.Close(CloseKicked, "Another connection has taken over your session.")
	}

	if m.rec != nil {
		m.rec.ConnectionOpened(conn.Transport())
	}

	if err := m.presence.Connect(s, s.playerId); err != nil {
		s.Close(CloseInternal, "Unable to join the game.")
		return fmt.Errorf("connecting player %q: %w", s.playerId, err)
	}

	slog.Info("player connected", "player", s.playerId, "session", s.id, "transport", conn.Transport())

	s.Deliver(message.NewSystem(fmt.Sprintf("Welcome, %s!", s.playerName)))
	s.runCommand(ctx, "look")

	err := s.Run(ctx)
	s.Close(CloseNormal, "")
	return err
}

// Tick closes sessions that have sent nothing, not even a ping, for longer
// than the idle timeout.
func (m *Manager) Tick(ctx context.Context) error {
	if m.idleTimeout <= 0 {
		return nil
	}

	cutoff := time.Now().Add(-m.idleTimeout)
	for _, s := range m.snapshot() {
		if s.LastActivity().Before(cutoff) {
			slog.InfoContext(ctx, "closing idle session", "session", s.ID(), "player", s.PlayerID())
			s.Close(CloseIdleTimeout, "You have been idle too long.")
		}
	}
	return nil
}

// Start blocks until the context ends, then closes every live session.
func (m *Manager) Start(ctx context.Context) error {
	<-ctx.Done()

	for _, s := range m.snapshot() {
		s.Close(CloseShutdown, "Server is shutting down.")
	}
	return nil
}

// SessionsByTransport counts live sessions per transport name.
func (m *Manager) SessionsByTransport() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int)
	for _, s := range m.sessions {
		counts[s.conn.Transport()]++
	}
	return counts
}

// MaxQueueDepth reports the deepest outbound queue across live sessions.
func (m *Manager) MaxQueueDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	max := 0
	for _, s := range m.sessions {
		if d := s.QueueDepth(); d > max {
			max = d
		}
	}
	return max
}

// swap installs s as the player's session and returns the one it replaced.
func (m *Manager) swap(s *Session) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.sessions[s.playerId]
	m.sessions[s.playerId] = s
	return prev
}

// remove drops s from the index unless a newer session already took over.
func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.sessions[s.playerId]; ok && cur == s {
		delete(m.sessions, s.playerId)
	}
}

func (m *Manager) snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}
