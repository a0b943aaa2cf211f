package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/transport"
)

// Agent is implemented by applications acting as the Agent. Every method
// receives params that already passed validation.
type Agent interface {
	// Initialize negotiates the protocol version and capabilities.
	// It is the first request a client sends.
	Initialize(ctx context.Context, params *protocol.InitializeRequest) (*protocol.InitializeResponse, error)

	// NewSession creates a conversation session rooted at params.Cwd.
	NewSession(ctx context.Context, params *protocol.NewSessionRequest) (*protocol.NewSessionResponse, error)

	// Authenticate runs one of the auth methods advertised by Initialize.
	// A nil response is sent as {}.
	Authenticate(ctx context.Context, params *protocol.AuthenticateRequest) (*protocol.AuthenticateResponse, error)

	// Prompt runs one prompt turn. Progress is streamed with
	// AgentSideConnection.SessionUpdate before the response is returned.
	Prompt(ctx context.Context, params *protocol.PromptRequest) (*protocol.PromptResponse, error)

	// Cancel asks the agent to stop the prompt turn of a session. It is a
	// notification; the pending Prompt should return StopReasonCancelled.
	Cancel(ctx context.Context, params *protocol.CancelNotification) error
}

// SessionLoader is implemented by agents advertising loadSession
type SessionLoader interface {
	LoadSession(ctx context.Context, params *protocol.LoadSessionRequest) (*protocol.LoadSessionResponse, error)
}

// ModeSetter is implemented by agents offering session modes
type ModeSetter interface {
	SetSessionMode(ctx context.Context, params *protocol.SetSessionModeRequest) (*protocol.SetSessionModeResponse, error)
}

// ExtMethodHandler receives "_"-prefixed requests. The method name arrives
// without the prefix.
type ExtMethodHandler interface {
	ExtMethod(ctx context.Context, method string, params json.RawMessage) (interface{}, error)
}

// ExtNotificationHandler receives "_"-prefixed notifications
type ExtNotificationHandler interface {
	ExtNotification(ctx context.Context, method string, params json.RawMessage) error
}

// ConnectionAware agents are handed their connection during construction,
// before any message is read.
type ConnectionAware interface {
	SetAgentConnection(conn *AgentSideConnection)
}

// AgentSideConnection connects an Agent to a client. Inbound calls are
// dispatched to the Agent; the methods of AgentSideConnection call the client.
type AgentSideConnection struct {
	conn  *transport.Connection
	agent Agent
}

// NewAgentSideConnection creates the agent end of a connection that writes
// to w and reads from r. Call Start to begin reading.
func NewAgentSideConnection(agent Agent, w io.Writer, r io.Reader, opts ...transport.Option) *AgentSideConnection {
	c := &AgentSideConnection{agent: agent}
	opts = append([]transport.Option{transport.WithName("agent")}, opts...)
	c.conn = transport.NewConnection(NewRouter(agent), w, r, opts...)
	if aware, ok := agent.(ConnectionAware); ok {
		aware.SetAgentConnection(c)
	}
	return c
}

// NewRouter builds the inbound dispatch table for agent. Optional methods
// are registered only when agent implements the matching interface, so the
// client gets Method not found for the others.
func NewRouter(agent Agent) *transport.Router {
	empty := func(method string) bool { return protocol.AgentMethods[method].EmptyResult }

	r := transport.NewRouter().
		Request(protocol.MethodInitialize, transport.Route(empty(protocol.MethodInitialize), agent.Initialize)).
		Request(protocol.MethodSessionNew, transport.Route(empty(protocol.MethodSessionNew), agent.NewSession)).
		Request(protocol.MethodAuthenticate, transport.Route(empty(protocol.MethodAuthenticate), agent.Authenticate)).
		Request(protocol.MethodSessionPrompt, transport.Route(empty(protocol.MethodSessionPrompt), agent.Prompt)).
		Notification(protocol.MethodSessionCancel, transport.RouteNotification(agent.Cancel))

	if loader, ok := agent.(SessionLoader); ok {
		r.Request(protocol.MethodSessionLoad, transport.Route(empty(protocol.MethodSessionLoad), loader.LoadSession))
	}
	if setter, ok := agent.(ModeSetter); ok {
		r.Request(protocol.MethodSessionSetMode, transport.Route(empty(protocol.MethodSessionSetMode), setter.SetSessionMode))
	}
	if ext, ok := agent.(ExtMethodHandler); ok {
		r.ExtRequest(ext.ExtMethod)
	}
	if ext, ok := agent.(ExtNotificationHandler); ok {
		r.ExtNotification(ext.ExtNotification)
	}
	return r
}

// Start reads from the client until the stream ends, Stop is called or ctx
// is cancelled
func (c *AgentSideConnection) Start(ctx context.Context) error {
	return c.conn.Start(ctx)
}

// Stop shuts the connection down
func (c *AgentSideConnection) Stop(ctx context.Context) error {
	return c.conn.Stop(ctx)
}

// Done is closed once the connection has shut down
func (c *AgentSideConnection) Done() <-chan struct{} {
	return c.conn.Done()
}

// Err returns the reason the connection shut down, if any
func (c *AgentSideConnection) Err() error {
	return c.conn.Err()
}

// Connection exposes the underlying connection
func (c *AgentSideConnection) Connection() *transport.Connection {
	return c.conn
}

// SessionUpdate streams an update to the client
func (c *AgentSideConnection) SessionUpdate(ctx context.Context, params *protocol.SessionNotification) error {
	if err := c.conn.SendNotification(ctx, protocol.MethodSessionUpdate, params); err != nil {
		return fmt.Errorf("session update failed: %w", err)
	}
	return nil
}

// RequestPermission asks the user to authorize a tool call
func (c *AgentSideConnection) RequestPermission(ctx context.Context, params *protocol.RequestPermissionRequest) (*protocol.RequestPermissionResponse, error) {
	return transport.Call[protocol.RequestPermissionResponse](ctx, c.conn, protocol.MethodSessionRequestPermission, params)
}

// ReadTextFile reads a file through the client, including unsaved editor state
func (c *AgentSideConnection) ReadTextFile(ctx context.Context, params *protocol.ReadTextFileRequest) (*protocol.ReadTextFileResponse, error) {
	return transport.Call[protocol.ReadTextFileResponse](ctx, c.conn, protocol.MethodFSReadTextFile, params)
}

// WriteTextFile writes a file through the client
func (c *AgentSideConnection) WriteTextFile(ctx context.Context, params *protocol.WriteTextFileRequest) (*protocol.WriteTextFileResponse, error) {
	return transport.Call[protocol.WriteTextFileResponse](ctx, c.conn, protocol.MethodFSWriteTextFile, params)
}

// CreateTerminal starts a command in a client terminal. The returned handle
// must be released; `defer term.Close()` does that on every path.
func (c *AgentSideConnection) CreateTerminal(ctx context.Context, params *protocol.CreateTerminalRequest) (*TerminalHandle, error) {
	resp, err := transport.Call[protocol.CreateTerminalResponse](ctx, c.conn, protocol.MethodTerminalCreate, params)
	if err != nil {
		return nil, err
	}
	return newTerminalHandle(resp.TerminalID, params.SessionID, c.conn), nil
}

// ExtMethod sends an extension request. The "_" prefix is added to method.
func (c *AgentSideConnection) ExtMethod(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	return c.conn.SendRequest(ctx, protocol.ExtensionMethod(method), params)
}

// ExtNotification sends an extension notification. The "_" prefix is added
// to method.
func (c *AgentSideConnection) ExtNotification(ctx context.Context, method string, params interface{}) error {
	return c.conn.SendNotification(ctx, protocol.ExtensionMethod(method), params)
}
