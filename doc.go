// Package acp implements the Agent Client Protocol in Go.
//
// ACP connects a code editor (the client) with a coding agent over a
// bidirectional JSON-RPC 2.0 stream, usually the agent's stdin and stdout.
// Each side both serves requests and issues its own. This package re-exports
// the most used pieces of the sub-packages:
//
//   - pkg/agent: the agent side, AgentSideConnection and terminal handles
//   - pkg/client: the client side, ClientSideConnection
//   - pkg/protocol: message records, method catalogs and validation
//   - pkg/transport: the connection engine, framing and process spawning
//   - pkg/errors: JSON-RPC error values
//
// # Writing an Agent
//
// Implement Agent and serve it on stdio:
//
//	conn := acp.NewAgentSideConnection(myAgent, os.Stdout, os.Stdin)
//	if err := conn.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Optional methods such as session/load and session/set_mode are enabled
// by implementing agent.SessionLoader and agent.ModeSetter. An agent that
// implements agent.ConnectionAware receives its connection before the first
// message, which it uses to stream session updates and call the client.
//
// # Driving an Agent
//
// A client spawns the agent and talks to it through its pipes:
//
//	proc, err := acp.StartProcess(ctx, transport.ProcessConfig{Command: "my-agent"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	conn := acp.NewClientSideConnection(myClient, proc.Stdin(), proc.Stdout())
//	go conn.Start(ctx)
//
//	if _, err := conn.Initialize(ctx, &protocol.InitializeRequest{ProtocolVersion: acp.ProtocolVersion}); err != nil {
//	    log.Fatal(err)
//	}
//
// Commands under cmd/ show complete programs: an echo agent, a one-shot
// client and a websocket bridge.
package acp
