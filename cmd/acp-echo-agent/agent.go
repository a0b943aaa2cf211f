package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/agent"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
)

// echoAgent answers every prompt with "Echo: <prompt text>"
type echoAgent struct {
	conn   *agent.AgentSideConnection
	logger logging.Logger
	// delay holds the reply back so a cancel can arrive first
	delay time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	cwd    string
	cancel chan struct{}
}

func newEchoAgent(logger logging.Logger, delay time.Duration) *echoAgent {
	return &echoAgent{
		logger:   logger,
		delay:    delay,
		sessions: make(map[string]*session),
	}
}

func (a *echoAgent) SetAgentConnection(conn *agent.AgentSideConnection) {
	a.conn = conn
}

func (a *echoAgent) Initialize(ctx context.Context, params *protocol.InitializeRequest) (*protocol.InitializeResponse, error) {
	a.logger.Info("Initialize",
		logging.Int("client_protocol_version", params.ProtocolVersion),
		logging.Bool("fs_read", params.ClientCapabilities.CanReadFiles()),
	)
	return &protocol.InitializeResponse{
		ProtocolVersion: protocol.ProtocolVersion,
		AgentCapabilities: &protocol.AgentCapabilities{
			LoadSession: false,
		},
		AuthMethods: []protocol.AuthMethod{},
	}, nil
}

func (a *echoAgent) Authenticate(ctx context.Context, params *protocol.AuthenticateRequest) (*protocol.AuthenticateResponse, error) {
	return nil, nil
}

func (a *echoAgent) NewSession(ctx context.Context, params *protocol.NewSessionRequest) (*protocol.NewSessionResponse, error) {
	id := uuid.NewString()
	a.mu.Lock()
	a.sessions[id] = &session{cwd: params.Cwd}
	a.mu.Unlock()

	a.logger.Info("Session created", logging.SessionID(id), logging.String("cwd", params.Cwd))
	return &protocol.NewSessionResponse{SessionID: id}, nil
}

func (a *echoAgent) Prompt(ctx context.Context, params *protocol.PromptRequest) (*protocol.PromptResponse, error) {
	cancel := a.beginTurn(params.SessionID)
	defer a.endTurn(params.SessionID, cancel)

	if a.delay > 0 {
		timer := time.NewTimer(a.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-cancel:
			return &protocol.PromptResponse{StopReason: protocol.StopReasonCancelled}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	err := a.conn.SessionUpdate(ctx, &protocol.SessionNotification{
		SessionID: params.SessionID,
		Update:    protocol.AgentMessageChunk(protocol.TextBlock("Echo: " + promptText(params.Prompt))),
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-cancel:
		return &protocol.PromptResponse{StopReason: protocol.StopReasonCancelled}, nil
	default:
		return &protocol.PromptResponse{StopReason: protocol.StopReasonEndTurn}, nil
	}
}

func (a *echoAgent) Cancel(ctx context.Context, params *protocol.CancelNotification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[params.SessionID]
	if !ok || s.cancel == nil {
		return nil
	}
	close(s.cancel)
	s.cancel = nil
	a.logger.Info("Prompt cancelled", logging.SessionID(params.SessionID))
	return nil
}

// beginTurn registers the cancel channel of a prompt turn. Unknown sessions
// are accepted so clients that skip session/new still get an echo.
func (a *echoAgent) beginTurn(id string) chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[id]
	if !ok {
		s = &session{}
		a.sessions[id] = s
	}
	s.cancel = make(chan struct{})
	return s.cancel
}

func (a *echoAgent) endTurn(id string, cancel chan struct{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[id]; ok && s.cancel == cancel {
		s.cancel = nil
	}
}

func promptText(blocks []protocol.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Text != nil {
			parts = append(parts, b.Text.Text)
		}
	}
	return strings.Join(parts, " ")
}
