package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/transport"
)

// Client is implemented by the host application that talks to an agent.
type Client interface {
	// RequestPermission asks the user to authorize a tool call. Return
	// protocol.CancelledOutcome() when the prompt turn was cancelled.
	RequestPermission(ctx context.Context, params *protocol.RequestPermissionRequest) (*protocol.RequestPermissionResponse, error)

	// SessionUpdate receives streamed progress of a prompt turn. Updates
	// arrive in the order the agent sent them.
	SessionUpdate(ctx context.Context, params *protocol.SessionNotification) error

	// ReadTextFile returns file contents, honoring Line and Limit.
	ReadTextFile(ctx context.Context, params *protocol.ReadTextFileRequest) (*protocol.ReadTextFileResponse, error)

	// WriteTextFile writes a file. A nil response is sent as {}.
	WriteTextFile(ctx context.Context, params *protocol.WriteTextFileRequest) (*protocol.WriteTextFileResponse, error)
}

// TerminalCreator is implemented by clients that run commands for the agent
type TerminalCreator interface {
	CreateTerminal(ctx context.Context, params *protocol.CreateTerminalRequest) (*protocol.CreateTerminalResponse, error)
}

// TerminalOutputReader returns the output of a terminal
type TerminalOutputReader interface {
	TerminalOutput(ctx context.Context, params *protocol.TerminalOutputRequest) (*protocol.TerminalOutputResponse, error)
}

// TerminalReleaser frees a terminal
type TerminalReleaser interface {
	ReleaseTerminal(ctx context.Context, params *protocol.ReleaseTerminalRequest) (*protocol.ReleaseTerminalResponse, error)
}

// TerminalWaiter blocks until a terminal command exits
type TerminalWaiter interface {
	WaitForTerminalExit(ctx context.Context, params *protocol.WaitForTerminalExitRequest) (*protocol.WaitForTerminalExitResponse, error)
}

// TerminalKiller stops a terminal command
type TerminalKiller interface {
	KillTerminalCommand(ctx context.Context, params *protocol.KillTerminalRequest) (*protocol.KillTerminalResponse, error)
}

// ExtMethodHandler receives "_"-prefixed requests with the prefix removed
type ExtMethodHandler interface {
	ExtMethod(ctx context.Context, method string, params json.RawMessage) (interface{}, error)
}

// ExtNotificationHandler receives "_"-prefixed notifications with the prefix removed
type ExtNotificationHandler interface {
	ExtNotification(ctx context.Context, method string, params json.RawMessage) error
}

// ConnectionAware clients are handed their connection during construction
type ConnectionAware interface {
	SetClientConnection(conn *ClientSideConnection)
}

// ClientSideConnection connects a Client to an agent
type ClientSideConnection struct {
	conn   *transport.Connection
	client Client
}

// NewClientSideConnection creates the client end of a connection that
// writes to w and reads from r. Call Start to begin reading.
func NewClientSideConnection(client Client, w io.Writer, r io.Reader, opts ...transport.Option) *ClientSideConnection {
	c := &ClientSideConnection{client: client}
	opts = append([]transport.Option{transport.WithName("client")}, opts...)
	c.conn = transport.NewConnection(NewRouter(client), w, r, opts...)
	if aware, ok := client.(ConnectionAware); ok {
		aware.SetClientConnection(c)
	}
	return c
}

// NewRouter builds the inbound dispatch table for client
func NewRouter(client Client) *transport.Router {
	empty := func(method string) bool { return protocol.ClientMethods[method].EmptyResult }

	r := transport.NewRouter().
		Request(protocol.MethodSessionRequestPermission, transport.Route(empty(protocol.MethodSessionRequestPermission), client.RequestPermission)).
		Request(protocol.MethodFSReadTextFile, transport.Route(empty(protocol.MethodFSReadTextFile), client.ReadTextFile)).
		Request(protocol.MethodFSWriteTextFile, transport.Route(empty(protocol.MethodFSWriteTextFile), client.WriteTextFile)).
		Notification(protocol.MethodSessionUpdate, transport.RouteNotification(client.SessionUpdate))

	if h, ok := client.(TerminalCreator); ok {
		r.Request(protocol.MethodTerminalCreate, transport.Route(empty(protocol.MethodTerminalCreate), h.CreateTerminal))
	}
	if h, ok := client.(TerminalOutputReader); ok {
		r.Request(protocol.MethodTerminalOutput, transport.Route(empty(protocol.MethodTerminalOutput), h.TerminalOutput))
	}
	if h, ok := client.(TerminalReleaser); ok {
		r.Request(protocol.MethodTerminalRelease, transport.Route(empty(protocol.MethodTerminalRelease), h.ReleaseTerminal))
	}
	if h, ok := client.(TerminalWaiter); ok {
		r.Request(protocol.MethodTerminalWaitForExit, transport.Route(empty(protocol.MethodTerminalWaitForExit), h.WaitForTerminalExit))
	}
	if h, ok := client.(TerminalKiller); ok {
		r.Request(protocol.MethodTerminalKill, transport.Route(empty(protocol.MethodTerminalKill), h.KillTerminalCommand))
	}
	if h, ok := client.(ExtMethodHandler); ok {
		r.ExtRequest(h.ExtMethod)
	}
	if h, ok := client.(ExtNotificationHandler); ok {
		r.ExtNotification(h.ExtNotification)
	}
	return r
}

// Start reads from the agent until the stream ends, Stop is called or ctx
// is cancelled
func (c *ClientSideConnection) Start(ctx context.Context) error {
	return c.conn.Start(ctx)
}

// Stop shuts the connection down
func (c *ClientSideConnection) Stop(ctx context.Context) error {
	return c.conn.Stop(ctx)
}

// Done is closed once the connection has shut down
func (c *ClientSideConnection) Done() <-chan struct{} {
	return c.conn.Done()
}

// Err returns the reason the connection shut down, if any
func (c *ClientSideConnection) Err() error {
	return c.conn.Err()
}

// Connection exposes the underlying connection
func (c *ClientSideConnection) Connection() *transport.Connection {
	return c.conn
}

// Initialize negotiates the protocol version and capabilities
func (c *ClientSideConnection) Initialize(ctx context.Context, params *protocol.InitializeRequest) (*protocol.InitializeResponse, error) {
	return transport.Call[protocol.InitializeResponse](ctx, c.conn, protocol.MethodInitialize, params)
}

// NewSession creates a session. A nil McpServers is sent as [].
func (c *ClientSideConnection) NewSession(ctx context.Context, params *protocol.NewSessionRequest) (*protocol.NewSessionResponse, error) {
	if params.McpServers == nil {
		p := *params
		p.McpServers = []protocol.McpServer{}
		params = &p
	}
	return transport.Call[protocol.NewSessionResponse](ctx, c.conn, protocol.MethodSessionNew, params)
}

// LoadSession resumes a session. The agent must advertise loadSession.
func (c *ClientSideConnection) LoadSession(ctx context.Context, params *protocol.LoadSessionRequest) (*protocol.LoadSessionResponse, error) {
	if params.McpServers == nil {
		p := *params
		p.McpServers = []protocol.McpServer{}
		params = &p
	}
	return transport.Call[protocol.LoadSessionResponse](ctx, c.conn, protocol.MethodSessionLoad, params)
}

// SetSessionMode switches the mode of a session
func (c *ClientSideConnection) SetSessionMode(ctx context.Context, params *protocol.SetSessionModeRequest) (*protocol.SetSessionModeResponse, error) {
	return transport.Call[protocol.SetSessionModeResponse](ctx, c.conn, protocol.MethodSessionSetMode, params)
}

// Authenticate runs an auth method advertised by the agent
func (c *ClientSideConnection) Authenticate(ctx context.Context, params *protocol.AuthenticateRequest) (*protocol.AuthenticateResponse, error) {
	return transport.Call[protocol.AuthenticateResponse](ctx, c.conn, protocol.MethodAuthenticate, params)
}

// Prompt runs one prompt turn. Session updates for the turn are delivered to
// Client.SessionUpdate before Prompt returns.
func (c *ClientSideConnection) Prompt(ctx context.Context, params *protocol.PromptRequest) (*protocol.PromptResponse, error) {
	return transport.Call[protocol.PromptResponse](ctx, c.conn, protocol.MethodSessionPrompt, params)
}

// Cancel asks the agent to stop the current prompt turn of a session. The
// pending Prompt call still receives its response.
func (c *ClientSideConnection) Cancel(ctx context.Context, params *protocol.CancelNotification) error {
	if err := c.conn.SendNotification(ctx, protocol.MethodSessionCancel, params); err != nil {
		return fmt.Errorf("cancel failed: %w", err)
	}
	return nil
}

// ExtMethod sends an extension request. The "_" prefix is added to method.
func (c *ClientSideConnection) ExtMethod(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	return c.conn.SendRequest(ctx, protocol.ExtensionMethod(method), params)
}

// ExtNotification sends an extension notification. The "_" prefix is added
// to method.
func (c *ClientSideConnection) ExtNotification(ctx context.Context, method string, params interface{}) error {
	return c.conn.SendNotification(ctx, protocol.ExtensionMethod(method), params)
}
