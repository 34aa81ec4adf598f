package listener

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/pixil98/go-testutil"

	"github.com/pixil98/go-mudlink/internal/message"
)

// fakeStream is a scripted client: reads come from the input text, writes
// collect in a buffer.
type fakeStream struct {
	io.Reader

	mu     sync.Mutex
	out    strings.Builder
	closed bool
}

func newFakeStream(input string) *fakeStream {
	return &fakeStream{Reader: strings.NewReader(input)}
}

func (s *fakeStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Write(p)
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("already closed")
	}
	s.closed = true
	return nil
}

func (s *fakeStream) written() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.String()
}

func readCommand(t *testing.T, lc *lineConn) string {
	t.Helper()

	data, err := lc.ReadFrame()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frame, err := message.ParseFrame(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "frame type", frame.Type, message.FrameCommand)
	return frame.Command
}

func TestLineConnReadFrame(t *testing.T) {
	// Telnet CRLF, bare LF, bare CR, and empty lines all in one stream.
	lc := newLineConn("telnet", newFakeStream("say hi\r\nlook\n\r\n   \nwho\r"))

	testutil.AssertEqual(t, "first command", readCommand(t, lc), "say hi")
	testutil.AssertEqual(t, "second command", readCommand(t, lc), "look")
	testutil.AssertEqual(t, "third command", readCommand(t, lc), "who")

	_, err := lc.ReadFrame()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestLineConnWriteEnvelope(t *testing.T) {
	stream := newFakeStream("")
	lc := newLineConn("telnet", stream)

	if err := lc.WriteEnvelope(message.NewSystem("Welcome, Alice!")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "written text", stream.written(), "\r\nWelcome, Alice!\r\n\r\n> ")
}

func TestLineConnSkipsSilentEnvelopes(t *testing.T) {
	stream := newFakeStream("")
	lc := newLineConn("telnet", stream)

	if err := lc.WriteEnvelope(message.New(message.TypePlayerUpdate, "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "written text", stream.written(), "")
}

func TestLineConnClose(t *testing.T) {
	stream := newFakeStream("")
	lc := newLineConn("ssh", stream)

	if err := lc.Close(4009, "You have been idle too long."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stream.closed {
		t.Error("expected the stream to be closed")
	}
	if !strings.Contains(stream.written(), "You have been idle too long.") {
		t.Errorf("expected the reason in %q", stream.written())
	}

	// Repeat closes reuse the first result instead of double-closing.
	if err := lc.Close(1000, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
