package acp

import (
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/agent"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/client"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/errors"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/transport"
)

// Version represents the current version of the SDK
const Version = "0.1.0"

// ProtocolVersion is the ACP version this SDK speaks
const ProtocolVersion = protocol.ProtocolVersion

// Core interfaces implemented by applications
type (
	Agent  = agent.Agent
	Client = client.Client

	AgentSideConnection  = agent.AgentSideConnection
	ClientSideConnection = client.ClientSideConnection
	TerminalHandle       = agent.TerminalHandle

	RequestError = errors.RequestError
)

// These exports provide direct access to the core SDK components
var (
	// NewAgentSideConnection serves an Agent to a client
	NewAgentSideConnection = agent.NewAgentSideConnection

	// NewClientSideConnection serves a Client to an agent
	NewClientSideConnection = client.NewClientSideConnection

	// StartProcess launches an agent subprocess
	StartProcess = transport.StartProcess

	// NewWebSocketStream carries a connection over a websocket
	NewWebSocketStream = transport.NewWebSocketStream
)

// Connection options
var (
	WithLogger         = transport.WithLogger
	WithMiddleware     = transport.WithMiddleware
	WithMaxLineBytes   = transport.WithMaxLineBytes
	WithWriteQueueSize = transport.WithWriteQueueSize
	WithFrameObserver  = transport.WithFrameObserver
)

// Errors returned to the peer
var (
	ParseError     = errors.ParseError
	InvalidRequest = errors.InvalidRequest
	MethodNotFound = errors.MethodNotFound
	InvalidParams  = errors.InvalidParams
	InternalError  = errors.InternalError
	AuthRequired   = errors.AuthRequired
)
