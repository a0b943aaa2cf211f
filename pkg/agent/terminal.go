package agent

import (
	"context"
	"sync"

	acperrors "github.com/sotayamashita/agent-client-protocol-vscode/pkg/errors"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/transport"
)

// TerminalHandle refers to a terminal created by the client. The terminal
// keeps running after Kill; Release frees it on the client, after which
// every operation but Release returns ErrTerminalReleased.
type TerminalHandle struct {
	ID        string
	SessionID string

	conn *transport.Connection

	mu       sync.Mutex
	released bool
}

func newTerminalHandle(id, sessionID string, conn *transport.Connection) *TerminalHandle {
	return &TerminalHandle{ID: id, SessionID: sessionID, conn: conn}
}

func (t *TerminalHandle) params() *protocol.TerminalRequest {
	return &protocol.TerminalRequest{SessionID: t.SessionID, TerminalID: t.ID}
}

func (t *TerminalHandle) checkReleased() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return acperrors.ErrTerminalReleased
	}
	return nil
}

// CurrentOutput returns the output collected so far
func (t *TerminalHandle) CurrentOutput(ctx context.Context) (*protocol.TerminalOutputResponse, error) {
	if err := t.checkReleased(); err != nil {
		return nil, err
	}
	return transport.Call[protocol.TerminalOutputResponse](ctx, t.conn, protocol.MethodTerminalOutput, t.params())
}

// WaitForExit blocks until the command exits
func (t *TerminalHandle) WaitForExit(ctx context.Context) (*protocol.WaitForTerminalExitResponse, error) {
	if err := t.checkReleased(); err != nil {
		return nil, err
	}
	return transport.Call[protocol.WaitForTerminalExitResponse](ctx, t.conn, protocol.MethodTerminalWaitForExit, t.params())
}

// Kill stops the command without releasing the terminal
func (t *TerminalHandle) Kill(ctx context.Context) error {
	if err := t.checkReleased(); err != nil {
		return err
	}
	_, err := transport.Call[protocol.KillTerminalResponse](ctx, t.conn, protocol.MethodTerminalKill, t.params())
	return err
}

// Release kills the command if it is still running and frees the terminal.
// Only the first call reaches the client; later calls return nil.
func (t *TerminalHandle) Release(ctx context.Context) error {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return nil
	}
	t.released = true
	t.mu.Unlock()

	_, err := transport.Call[protocol.ReleaseTerminalResponse](ctx, t.conn, protocol.MethodTerminalRelease, t.params())
	return err
}

// Close releases the terminal with a background context
func (t *TerminalHandle) Close() error {
	return t.Release(context.Background())
}

// Released reports whether Release has been called
func (t *TerminalHandle) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}
