// Package client implements the Client side of the Agent Client Protocol.
//
// A host application implements the Client interface: permission prompts,
// session updates and text file access. Terminal support and extension
// methods are optional and detected by type assertion:
//
//   - TerminalCreator, TerminalOutputReader, TerminalReleaser, TerminalWaiter
//     and TerminalKiller serve the terminal/* methods
//   - ExtMethodHandler and ExtNotificationHandler receive "_"-prefixed calls
//
// Methods the Client does not implement are answered with Method not found.
//
// # Connecting to an Agent
//
//	proc, err := transport.StartProcess(ctx, transport.ProcessConfig{Command: "my-agent"})
//	if err != nil {
//	    return err
//	}
//	conn := client.NewClientSideConnection(host, proc.Stdin(), proc.Stdout())
//	go conn.Start(ctx)
//
//	init, err := conn.Initialize(ctx, &protocol.InitializeRequest{
//	    ProtocolVersion: protocol.ProtocolVersion,
//	})
//	session, err := conn.NewSession(ctx, &protocol.NewSessionRequest{Cwd: workspace})
//	resp, err := conn.Prompt(ctx, &protocol.PromptRequest{
//	    SessionID: session.SessionID,
//	    Prompt:    []protocol.ContentBlock{protocol.TextBlock("hello")},
//	})
//
// Session updates streamed during a prompt turn reach Client.SessionUpdate
// before Prompt returns.
package client
