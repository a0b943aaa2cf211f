package acp_test

import (
	"context"
	"fmt"
	"io"
	"strings"

	acp "github.com/sotayamashita/agent-client-protocol-vscode"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
)

type shoutAgent struct {
	conn *acp.AgentSideConnection
}

func (a *shoutAgent) SetAgentConnection(conn *acp.AgentSideConnection) { a.conn = conn }

func (a *shoutAgent) Initialize(ctx context.Context, p *protocol.InitializeRequest) (*protocol.InitializeResponse, error) {
	return &protocol.InitializeResponse{ProtocolVersion: acp.ProtocolVersion}, nil
}

func (a *shoutAgent) Authenticate(ctx context.Context, p *protocol.AuthenticateRequest) (*protocol.AuthenticateResponse, error) {
	return nil, nil
}

func (a *shoutAgent) NewSession(ctx context.Context, p *protocol.NewSessionRequest) (*protocol.NewSessionResponse, error) {
	return &protocol.NewSessionResponse{SessionID: "session-1"}, nil
}

func (a *shoutAgent) Prompt(ctx context.Context, p *protocol.PromptRequest) (*protocol.PromptResponse, error) {
	for _, block := range p.Prompt {
		if block.Text == nil {
			continue
		}
		err := a.conn.SessionUpdate(ctx, &protocol.SessionNotification{
			SessionID: p.SessionID,
			Update:    protocol.AgentMessageChunk(protocol.TextBlock(strings.ToUpper(block.Text.Text))),
		})
		if err != nil {
			return nil, err
		}
	}
	return &protocol.PromptResponse{StopReason: protocol.StopReasonEndTurn}, nil
}

func (a *shoutAgent) Cancel(ctx context.Context, p *protocol.CancelNotification) error { return nil }

type printClient struct{}

func (printClient) RequestPermission(ctx context.Context, p *protocol.RequestPermissionRequest) (*protocol.RequestPermissionResponse, error) {
	return &protocol.RequestPermissionResponse{Outcome: protocol.CancelledOutcome()}, nil
}

func (printClient) SessionUpdate(ctx context.Context, p *protocol.SessionNotification) error {
	if chunk := p.Update.AgentMessageChunk; chunk != nil && chunk.Content.Text != nil {
		fmt.Println(chunk.Content.Text.Text)
	}
	return nil
}

func (printClient) ReadTextFile(ctx context.Context, p *protocol.ReadTextFileRequest) (*protocol.ReadTextFileResponse, error) {
	return nil, acp.MethodNotFound(protocol.MethodFSReadTextFile)
}

func (printClient) WriteTextFile(ctx context.Context, p *protocol.WriteTextFileRequest) (*protocol.WriteTextFileResponse, error) {
	return nil, acp.MethodNotFound(protocol.MethodFSWriteTextFile)
}

// An agent and a client connected in memory. Session updates are delivered
// before the prompt response.
func Example() {
	agentIn, clientOut := io.Pipe()
	clientIn, agentOut := io.Pipe()
	quiet := acp.WithLogger(logging.NewNop())

	agentConn := acp.NewAgentSideConnection(&shoutAgent{}, agentOut, agentIn, quiet)
	clientConn := acp.NewClientSideConnection(printClient{}, clientOut, clientIn, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	go agentConn.Start(ctx)
	go clientConn.Start(ctx)
	defer func() {
		cancel()
		<-agentConn.Done()
		<-clientConn.Done()
	}()

	if _, err := clientConn.Initialize(ctx, &protocol.InitializeRequest{ProtocolVersion: acp.ProtocolVersion}); err != nil {
		fmt.Println(err)
		return
	}
	session, err := clientConn.NewSession(ctx, &protocol.NewSessionRequest{Cwd: "/workspace"})
	if err != nil {
		fmt.Println(err)
		return
	}
	resp, err := clientConn.Prompt(ctx, &protocol.PromptRequest{
		SessionID: session.SessionID,
		Prompt:    []protocol.ContentBlock{protocol.TextBlock("hello"), protocol.TextBlock("agent")},
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(resp.StopReason)
	// Output:
	// HELLO
	// AGENT
	// end_turn
}
