package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/client"
	acperrors "github.com/sotayamashita/agent-client-protocol-vscode/pkg/errors"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/transport"
)

const testTimeout = 2 * time.Second

// echoAgent streams "Echo: <text>" and ends the turn. With block set, Prompt
// waits for session/cancel instead.
type echoAgent struct {
	conn  *AgentSideConnection
	block bool

	mu       sync.Mutex
	cancels  map[string]chan struct{}
	started  chan string
	extCalls []string
}

func newEchoAgent() *echoAgent {
	return &echoAgent{cancels: make(map[string]chan struct{}), started: make(chan string, 4)}
}

func (a *echoAgent) SetAgentConnection(conn *AgentSideConnection) { a.conn = conn }

func (a *echoAgent) Initialize(ctx context.Context, p *protocol.InitializeRequest) (*protocol.InitializeResponse, error) {
	return &protocol.InitializeResponse{
		ProtocolVersion:   protocol.ProtocolVersion,
		AgentCapabilities: &protocol.AgentCapabilities{},
	}, nil
}

func (a *echoAgent) NewSession(ctx context.Context, p *protocol.NewSessionRequest) (*protocol.NewSessionResponse, error) {
	return &protocol.NewSessionResponse{SessionID: "s1"}, nil
}

func (a *echoAgent) Authenticate(ctx context.Context, p *protocol.AuthenticateRequest) (*protocol.AuthenticateResponse, error) {
	return nil, nil
}

func (a *echoAgent) Prompt(ctx context.Context, p *protocol.PromptRequest) (*protocol.PromptResponse, error) {
	if a.block {
		ch := make(chan struct{})
		a.mu.Lock()
		a.cancels[p.SessionID] = ch
		a.mu.Unlock()
		a.started <- p.SessionID
		select {
		case <-ch:
			return &protocol.PromptResponse{StopReason: protocol.StopReasonCancelled}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var text []string
	for _, block := range p.Prompt {
		if block.Text != nil {
			text = append(text, block.Text.Text)
		}
	}
	err := a.conn.SessionUpdate(ctx, &protocol.SessionNotification{
		SessionID: p.SessionID,
		Update:    protocol.AgentMessageChunk(protocol.TextBlock("Echo: " + strings.Join(text, " "))),
	})
	if err != nil {
		return nil, err
	}
	return &protocol.PromptResponse{StopReason: protocol.StopReasonEndTurn}, nil
}

func (a *echoAgent) Cancel(ctx context.Context, p *protocol.CancelNotification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch, ok := a.cancels[p.SessionID]; ok {
		close(ch)
		delete(a.cancels, p.SessionID)
	}
	return nil
}

// extAgent adds the optional capabilities
type extAgent struct {
	*echoAgent
}

func (a extAgent) SetSessionMode(ctx context.Context, p *protocol.SetSessionModeRequest) (*protocol.SetSessionModeResponse, error) {
	return nil, nil
}

func (a extAgent) ExtMethod(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	a.mu.Lock()
	a.extCalls = append(a.extCalls, method)
	a.mu.Unlock()
	return map[string]json.RawMessage{"echo": params}, nil
}

// recordingClient collects session updates and serves an in-memory file map
type recordingClient struct {
	mu      sync.Mutex
	updates []protocol.SessionNotification
	files   map[string]string
}

func newRecordingClient() *recordingClient {
	return &recordingClient{files: map[string]string{"/ws/a.txt": "hello"}}
}

func (c *recordingClient) RequestPermission(ctx context.Context, p *protocol.RequestPermissionRequest) (*protocol.RequestPermissionResponse, error) {
	if opt, ok := p.FindOption(protocol.PermissionAllowOnce); ok {
		return &protocol.RequestPermissionResponse{Outcome: protocol.SelectOption(opt.OptionID)}, nil
	}
	return &protocol.RequestPermissionResponse{Outcome: protocol.CancelledOutcome()}, nil
}

func (c *recordingClient) SessionUpdate(ctx context.Context, p *protocol.SessionNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, *p)
	return nil
}

func (c *recordingClient) ReadTextFile(ctx context.Context, p *protocol.ReadTextFileRequest) (*protocol.ReadTextFileResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.files[p.Path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return &protocol.ReadTextFileResponse{Content: content}, nil
}

func (c *recordingClient) WriteTextFile(ctx context.Context, p *protocol.WriteTextFileRequest) (*protocol.WriteTextFileResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[p.Path] = p.Content
	return nil, nil
}

func (c *recordingClient) snapshot() []protocol.SessionNotification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.SessionNotification(nil), c.updates...)
}

func connectPair(t *testing.T, a Agent, c client.Client) (*AgentSideConnection, *client.ClientSideConnection) {
	t.Helper()
	agentIn, clientOut := io.Pipe()
	clientIn, agentOut := io.Pipe()

	ac := NewAgentSideConnection(a, agentOut, agentIn, transport.WithLogger(logging.NewNop()))
	cc := client.NewClientSideConnection(c, clientOut, clientIn, transport.WithLogger(logging.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = ac.Start(ctx) }()
	go func() { _ = cc.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-ac.Done()
		<-cc.Done()
		_ = agentOut.Close()
		_ = clientOut.Close()
	})
	return ac, cc
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func TestInitializeNewSessionPrompt(t *testing.T) {
	host := newRecordingClient()
	_, cc := connectPair(t, newEchoAgent(), host)
	ctx := testContext(t)

	init, err := cc.Initialize(ctx, &protocol.InitializeRequest{ProtocolVersion: protocol.ProtocolVersion})
	require.NoError(t, err)
	assert.Equal(t, protocol.ProtocolVersion, init.ProtocolVersion)

	session, err := cc.NewSession(ctx, &protocol.NewSessionRequest{Cwd: "/ws"})
	require.NoError(t, err)
	assert.Equal(t, "s1", session.SessionID)

	resp, err := cc.Prompt(ctx, &protocol.PromptRequest{
		SessionID: session.SessionID,
		Prompt:    []protocol.ContentBlock{protocol.TextBlock("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.StopReasonEndTurn, resp.StopReason)

	// the update is delivered before the prompt result
	updates := host.snapshot()
	require.Len(t, updates, 1)
	assert.Equal(t, "s1", updates[0].SessionID)
	require.NotNil(t, updates[0].Update.AgentMessageChunk)
	assert.Equal(t, "Echo: hi", updates[0].Update.AgentMessageChunk.Content.Text.Text)
}

func TestCancelEndsPromptTurn(t *testing.T) {
	a := newEchoAgent()
	a.block = true
	_, cc := connectPair(t, a, newRecordingClient())
	ctx := testContext(t)

	type result struct {
		resp *protocol.PromptResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := cc.Prompt(ctx, &protocol.PromptRequest{SessionID: "s1", Prompt: []protocol.ContentBlock{}})
		done <- result{resp, err}
	}()

	select {
	case <-a.started:
	case <-ctx.Done():
		t.Fatal("prompt never started")
	}
	require.NoError(t, cc.Cancel(ctx, &protocol.CancelNotification{SessionID: "s1"}))

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, protocol.StopReasonCancelled, r.resp.StopReason)
	case <-ctx.Done():
		t.Fatal("prompt did not return after cancel")
	}
}

func TestOptionalMethodsWithoutImplementation(t *testing.T) {
	_, cc := connectPair(t, newEchoAgent(), newRecordingClient())
	ctx := testContext(t)

	_, err := cc.LoadSession(ctx, &protocol.LoadSessionRequest{SessionID: "s1", Cwd: "/ws"})
	require.Error(t, err)
	assert.True(t, acperrors.IsCode(err, acperrors.CodeMethodNotFound))

	_, err = cc.SetSessionMode(ctx, &protocol.SetSessionModeRequest{SessionID: "s1", ModeID: "ask"})
	assert.True(t, acperrors.IsCode(err, acperrors.CodeMethodNotFound))

	_, err = cc.ExtMethod(ctx, "vendor/info", map[string]int{"a": 1})
	assert.True(t, acperrors.IsCode(err, acperrors.CodeMethodNotFound))
}

func TestOptionalMethodsWithImplementation(t *testing.T) {
	a := extAgent{newEchoAgent()}
	_, cc := connectPair(t, a, newRecordingClient())
	ctx := testContext(t)

	resp, err := cc.SetSessionMode(ctx, &protocol.SetSessionModeRequest{SessionID: "s1", ModeID: "ask"})
	require.NoError(t, err)
	assert.NotNil(t, resp)

	raw, err := cc.ExtMethod(ctx, "vendor/info", map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":{"a":1}}`, string(raw))

	a.mu.Lock()
	assert.Equal(t, []string{"vendor/info"}, a.extCalls)
	a.mu.Unlock()
}

func TestInvalidParamsKeepConnectionUsable(t *testing.T) {
	_, cc := connectPair(t, newEchoAgent(), newRecordingClient())
	ctx := testContext(t)

	_, err := cc.Prompt(ctx, &protocol.PromptRequest{SessionID: "s1"})
	require.Error(t, err)
	reqErr, ok := acperrors.AsRequestError(err)
	require.True(t, ok)
	assert.Equal(t, acperrors.CodeInvalidParams, reqErr.Code())

	session, err := cc.NewSession(ctx, &protocol.NewSessionRequest{Cwd: "/ws"})
	require.NoError(t, err)
	assert.Equal(t, "s1", session.SessionID)
}

func TestAgentCallsClient(t *testing.T) {
	host := newRecordingClient()
	ac, _ := connectPair(t, newEchoAgent(), host)
	ctx := testContext(t)

	file, err := ac.ReadTextFile(ctx, &protocol.ReadTextFileRequest{SessionID: "s1", Path: "/ws/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "hello", file.Content)

	_, err = ac.WriteTextFile(ctx, &protocol.WriteTextFileRequest{SessionID: "s1", Path: "/ws/b.txt", Content: "new"})
	require.NoError(t, err)
	host.mu.Lock()
	assert.Equal(t, "new", host.files["/ws/b.txt"])
	host.mu.Unlock()

	_, err = ac.ReadTextFile(ctx, &protocol.ReadTextFileRequest{SessionID: "s1", Path: "/ws/missing"})
	require.Error(t, err)
	assert.True(t, acperrors.IsCode(err, acperrors.CodeInternalError))

	perm, err := ac.RequestPermission(ctx, &protocol.RequestPermissionRequest{
		SessionID: "s1",
		ToolCall:  protocol.ToolCallUpdate{ToolCallID: "call-1"},
		Options: []protocol.PermissionOption{
			{OptionID: "yes", Name: "Allow", Kind: protocol.PermissionAllowOnce},
			{OptionID: "no", Name: "Reject", Kind: protocol.PermissionRejectOnce},
		},
	})
	require.NoError(t, err)
	require.False(t, perm.Outcome.Cancelled())
	assert.Equal(t, "yes", perm.Outcome.Selected.OptionID)

	// the test client implements no terminal methods
	_, err = ac.CreateTerminal(ctx, &protocol.CreateTerminalRequest{SessionID: "s1", Command: "ls"})
	assert.True(t, acperrors.IsCode(err, acperrors.CodeMethodNotFound))
}

func TestAuthenticateEmptyResultOnWire(t *testing.T) {
	in, peerOut := io.Pipe()
	peerIn, out := io.Pipe()
	ac := NewAgentSideConnection(newEchoAgent(), out, in, transport.WithLogger(logging.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-ac.Done()
	}()
	go func() { _ = ac.Start(ctx) }()

	reader := transport.NewLineReader(peerIn, 0)
	_, err := peerOut.Write([]byte(`{"jsonrpc":"2.0","id":0,"method":"authenticate","params":{"methodId":"token"}}` + "\n"))
	require.NoError(t, err)

	line, err := reader.ReadLine()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":0,"result":{}}`, string(line))
}
