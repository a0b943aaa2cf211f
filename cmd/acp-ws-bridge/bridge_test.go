package main

import (
	"context"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/transport"
)

type frameLog struct {
	mu     sync.Mutex
	frames map[transport.Direction][]string
}

func (f *frameLog) observe(dir transport.Direction, line []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames[dir] = append(f.frames[dir], string(line))
}

func (f *frameLog) get(dir transport.Direction) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames[dir]...)
}

func catBridge(t *testing.T) (*bridge, string) {
	t.Helper()
	cat, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available")
	}
	b := newBridge(transport.ProcessConfig{Command: cat, StopTimeout: time.Second}, 0, logging.NewNop())
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBridgeShuttlesMessages(t *testing.T) {
	b, url := catBridge(t)
	frames := &frameLog{frames: map[transport.Direction][]string{}}
	closed := make(chan struct{})
	b.observe = func(ctx context.Context) (transport.FrameObserver, func()) {
		return frames.observe, func() { close(closed) }
	}

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	msgs := []string{
		`{"jsonrpc":"2.0","id":0,"method":"initialize","params":{"protocolVersion":1}}`,
		`{"jsonrpc":"2.0","method":"session/cancel","params":{"sessionId":"s"}}`,
	}
	for _, m := range msgs {
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(m)))
		_, got, err := ws.ReadMessage()
		require.NoError(t, err)
		// cat echoes every line back
		assert.Equal(t, m, string(got))
	}

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = ws.Close()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not finish")
	}
	assert.Equal(t, msgs, frames.get(transport.Outbound))
	assert.Equal(t, msgs, frames.get(transport.Inbound))
}

func TestBridgeProcessFailure(t *testing.T) {
	b := newBridge(transport.ProcessConfig{Command: "/nonexistent/acp-agent"}, 0, logging.NewNop())
	srv := httptest.NewServer(b)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	// the socket is closed once the agent fails to start
	_, _, err = ws.ReadMessage()
	assert.Error(t, err)
}
