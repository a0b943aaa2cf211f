// Package agent implements the Agent side of the Agent Client Protocol.
//
// An application implements Agent and wraps it with NewAgentSideConnection.
// SessionLoader, ModeSetter, ExtMethodHandler and ExtNotificationHandler
// are optional. Agents implementing ConnectionAware receive their
// connection before the first message is read, so Prompt can stream
// updates and call back into the client:
//
//	func (a *EchoAgent) Prompt(ctx context.Context, p *protocol.PromptRequest) (*protocol.PromptResponse, error) {
//	    err := a.conn.SessionUpdate(ctx, &protocol.SessionNotification{
//	        SessionID: p.SessionID,
//	        Update:    protocol.AgentMessageChunk(protocol.TextBlock("hi")),
//	    })
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &protocol.PromptResponse{StopReason: protocol.StopReasonEndTurn}, nil
//	}
//
// # Terminals
//
// CreateTerminal returns a TerminalHandle. Release it when done; Close does
// the same and suits defer.
//
//	term, err := conn.CreateTerminal(ctx, &protocol.CreateTerminalRequest{SessionID: id, Command: "make"})
//	if err != nil {
//	    return err
//	}
//	defer term.Close()
//	exit, err := term.WaitForExit(ctx)
package agent
