package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pixil98/go-mudlink/internal/message"
)

const wsWriteTimeout = 10 * time.Second

type WebsocketListener struct {
	port           uint16
	cm             *ConnectionManager
	allowedOrigins []string
	metricsHandler http.Handler
	upgrader       websocket.Upgrader
}

func NewWebsocketListener(port uint16, cm *ConnectionManager, opts ...WebsocketListenerOpt) *WebsocketListener {
	l := &WebsocketListener{
		port: port,
		cm:   cm,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     l.checkOrigin,
	}

	return l
}

func (l *WebsocketListener) Start(ctx context.Context) error {
	connCtx, cancelConns := context.WithCancel(context.Background())
	defer cancelConns()

	var wg sync.WaitGroup

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		wg.Add(1)
		defer wg.Done()
		l.serveWs(connCtx, w, r)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if l.metricsHandler != nil {
		mux.Handle("/metrics", l.metricsHandler)
	}

	svr := &http.Server{
		Addr:              fmt.Sprintf(":%d", l.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// When the parent context is canceled, stop accepting, then cancel the
	// sessions still running on upgraded sockets.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svr.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutting down websocket server", "error", err)
		}
		cancelConns()
	}()

	slog.InfoContext(ctx, "listening for websocket", "port", l.port)

	err := svr.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("port %d is already in use (another server running?)", l.port)
		}
		return fmt.Errorf("serving websocket on port %d: %w", l.port, err)
	}

	wg.Wait()
	return nil
}

// serveWs upgrades before authenticating so a bad token can be reported
// with a websocket close code the client can actually read.
func (l *WebsocketListener) serveWs(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "remote", r.RemoteAddr, "error", err)
		return
	}

	l.cm.AcceptToken(ctx, newWsConn(ws), bearerToken(r))
}

func (l *WebsocketListener) checkOrigin(r *http.Request) bool {
	if len(l.allowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range l.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// bearerToken pulls the session token from the Authorization header, or the
// query string for clients that can't set headers on websocket dials.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// wsConn adapts a gorilla websocket to the framed connection contract.
// Gorilla connections allow one concurrent writer, so every write path
// shares a mutex.
type wsConn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newWsConn(ws *websocket.Conn) *wsConn {
	// Oversized frames up to the limit still reach the parser, which turns
	// them into protocol errors instead of dropped connections.
	ws.SetReadLimit(4 * message.MaxFrameSize)
	return &wsConn{ws: ws}
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) WriteEnvelope(env *message.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame carrying the code and reason, then tears down
// the socket, which unblocks a pending ReadFrame.
func (c *wsConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
		c.writeMu.Unlock()

		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *wsConn) Transport() string {
	return "websocket"
}
