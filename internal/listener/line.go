package listener

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pixil98/go-mudlink/internal/display"
	"github.com/pixil98/go-mudlink/internal/message"
)

// lineConn adapts a line-oriented stream (telnet, ssh) to the framed
// connection contract: each input line becomes a command frame, each
// envelope renders as wrapped text with a fresh prompt.
type lineConn struct {
	transport string
	rwc       io.ReadWriteCloser
	scanner   *bufio.Scanner

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newLineConn(transport string, rwc io.ReadWriteCloser) *lineConn {
	sc := bufio.NewScanner(rwc)
	sc.Buffer(make([]byte, 0, 4096), message.MaxFrameSize)
	sc.Split(scanLines)
	return &lineConn{
		transport: transport,
		rwc:       rwc,
		scanner:   sc,
	}
}

// scanLines splits on \n or bare \r so telnet (\r\n), plain \n, and
// raw-mode \r input all produce lines.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance = i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			advance++
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ReadFrame reads the next non-empty line and wraps it as a command frame.
// Lines past the scanner's buffer limit end the connection.
func (c *lineConn) ReadFrame() ([]byte, error) {
	for c.scanner.Scan() {
		line := strings.TrimSpace(c.scanner.Text())
		if line == "" {
			continue
		}
		return json.Marshal(&message.Frame{Type: message.FrameCommand, Command: line})
	}
	if err := c.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// WriteEnvelope renders the envelope as text. Envelopes with no text form
// are dropped rather than shown as blank lines.
func (c *lineConn) WriteEnvelope(env *message.Envelope) error {
	text := display.Render(env)
	if text == "" {
		return nil
	}
	_, err := fmt.Fprintf(c, "\n%s\n\n> ", display.Wrap(text))
	return err
}

// Write converts \n to \r\n for protocols that want CRLF line endings and
// serializes concurrent writers. The token prompt writes through here too.
func (c *lineConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	converted := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	_, err := c.rwc.Write(converted)
	// Return the original length so callers aren't confused by the size change
	return len(p), err
}

// Close shows the reason, if any, then closes the underlying stream, which
// unblocks a pending ReadFrame. The code only matters to websocket clients.
func (c *lineConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		if reason != "" {
			_, _ = fmt.Fprintf(c, "\n%s\n", reason)
		}
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}

func (c *lineConn) Transport() string {
	return c.transport
}
