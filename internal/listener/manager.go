package listener

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/pixil98/go-mudlink/internal"
	"github.com/pixil98/go-mudlink/internal/auth"
	"github.com/pixil98/go-mudlink/internal/session"
)

const tokenPrompt = "Token: "

// Authenticator turns a bearer token into a player identity.
type Authenticator interface {
	Authenticate(token string) (*auth.Identity, error)
}

// Sessions runs the lifetime of an authenticated connection.
type Sessions interface {
	Attach(ctx context.Context, conn session.Conn, identity *auth.Identity) error
}

// Recorder counts rejected connections.
type Recorder interface {
	AuthFailure(kind string)
}

// ConnectionManager authenticates inbound connections and hands them to the
// session layer. Every transport funnels through it.
type ConnectionManager struct {
	auth     Authenticator
	sessions Sessions
	rec      Recorder
}

func NewConnectionManager(auth Authenticator, sessions Sessions, rec Recorder) *ConnectionManager {
	return &ConnectionManager{
		auth:     auth,
		sessions: sessions,
		rec:      rec,
	}
}

// AcceptToken authenticates a connection that presented its token up front,
// the websocket path. A bad token closes the connection with a code that
// tells the client whether to refresh the token or give up.
func (m *ConnectionManager) AcceptToken(ctx context.Context, conn session.Conn, token string) {
	identity, err := m.auth.Authenticate(token)
	if err != nil {
		code := session.CloseInvalidToken
		reason := "Invalid or expired token."
		kind := "invalid_token"
		if errors.Is(err, auth.ErrNoIdentity) {
			code = session.CloseNoIdentity
			reason = "No player is attached to this token."
			kind = "no_identity"
		}
		if m.rec != nil {
			m.rec.AuthFailure(kind)
		}
		slog.WarnContext(ctx, "rejecting connection", "transport", conn.Transport(), "reason", kind)
		_ = conn.Close(code, reason)
		return
	}

	m.runSession(ctx, conn, identity)
}

// AcceptConnection authenticates a line-oriented connection by prompting for
// a token, then runs the session on the same stream.
func (m *ConnectionManager) AcceptConnection(ctx context.Context, lc *lineConn) {
	identity, err := m.promptToken(lc)
	if err != nil {
		if m.rec != nil {
			m.rec.AuthFailure("prompt")
		}
		reason := ""
		if !errors.Is(err, io.EOF) {
			reason = "Too many failed attempts."
			slog.WarnContext(ctx, "rejecting connection", "transport", lc.Transport(), "error", err)
		}
		_ = lc.Close(session.CloseInvalidToken, reason)
		return
	}

	m.runSession(ctx, lc, identity)
}

// promptToken gives the client a few tries to present a valid token. The
// prompt shares the connection's scanner so buffered input carries into the
// session.
func (m *ConnectionManager) promptToken(lc *lineConn) (*auth.Identity, error) {
	var identity *auth.Identity
	_, err := internal.Prompt(lc.scanner, lc, tokenPrompt,
		internal.WithMaxTries(3),
		internal.WithValidator(func(input string) (bool, string) {
			id, err := m.auth.Authenticate(strings.TrimSpace(input))
			if err != nil {
				return false, "Invalid token.\n"
			}
			identity = id
			return true, ""
		}),
	)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

func (m *ConnectionManager) runSession(ctx context.Context, conn session.Conn, identity *auth.Identity) {
	err := m.sessions.Attach(ctx, conn, identity)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.WarnContext(ctx, "player session", "player", identity.ID, "error", err)
	}
}
