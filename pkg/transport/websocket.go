package transport

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketStream adapts a WebSocket connection to the line-oriented stream
// a Connection expects. Each text message carries exactly one JSON-RPC
// message; the newline framing is added on read and removed on write.
type WebSocketStream struct {
	conn *websocket.Conn

	readMu  sync.Mutex
	current []byte

	writeMu sync.Mutex
	partial bytes.Buffer

	closeOnce sync.Once
	closeErr  error
}

// NewWebSocketStream wraps conn. The stream owns conn from then on.
func NewWebSocketStream(conn *websocket.Conn) *WebSocketStream {
	return &WebSocketStream{conn: conn}
}

// Read implements io.Reader. A normal close from the peer reads as io.EOF.
func (s *WebSocketStream) Read(p []byte) (int, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	for len(s.current) == 0 {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				errors.Is(err, websocket.ErrCloseSent) {
				return 0, io.EOF
			}
			return 0, err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		s.current = append(data, '\n')
	}

	n := copy(p, s.current)
	s.current = s.current[n:]
	return n, nil
}

// Write implements io.Writer. Complete lines are sent as one text message
// each; a trailing fragment is held until its newline arrives.
func (s *WebSocketStream) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.partial.Write(p)
	for {
		buffered := s.partial.Bytes()
		i := bytes.IndexByte(buffered, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(buffered[:i])
		if len(line) > 0 {
			if err := s.conn.WriteMessage(websocket.TextMessage, line); err != nil {
				s.partial.Reset()
				return 0, err
			}
		}
		s.partial.Next(i + 1)
	}
	return len(p), nil
}

// Close sends a close frame and closes the underlying connection
func (s *WebSocketStream) Close() error {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.writeMu.Unlock()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

var _ io.ReadWriteCloser = (*WebSocketStream)(nil)
