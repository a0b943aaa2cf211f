// Package transport implements the bidirectional JSON-RPC 2.0 connection used
// by both sides of the Agent Client Protocol.
//
// Messages are framed as newline-delimited JSON over any pair of byte
// streams: the standard streams of a process, the pipes of a child process
// or a WebSocket adapted with NewWebSocketStream.
//
// # Connection
//
// A Connection reads one message per line and dispatches it by kind:
//
//   - Requests run concurrently, each in its own goroutine, and always get
//     exactly one response. Handler errors are classified into JSON-RPC
//     error objects and panics become Internal error.
//   - Notifications run one at a time in the order they were received.
//     Their errors are logged and never answered.
//   - Responses are matched to outbound requests by id. Responses for
//     unknown ids are logged and dropped.
//
// Outbound requests get integer ids counting up from 0. SendRequest blocks
// until the response arrives, its context is done or the connection closes.
// All writes go through a single writer so messages never interleave.
//
// # Basic Usage
//
//	handler := transport.HandlerFuncs{
//		OnRequest: func(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
//			return map[string]string{"echo": method}, nil
//		},
//	}
//
//	conn := transport.NewStdioConnection(handler,
//		transport.WithName("agent"),
//		transport.WithMiddleware(transport.LoggingMiddleware(logger)),
//	)
//	go conn.Start(ctx)
//
//	result, err := conn.SendRequest(ctx, "session/request_permission", params)
//
// # Middleware
//
// Middleware wraps the inbound Handler. Chain composes several so that the
// first one listed sees each call first. Outbound traffic is observed with an
// OutboundObserver, and raw frames with a FrameObserver.
package transport
