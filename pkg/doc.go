// Package pkg holds the building blocks of the ACP SDK.
//
// # Sub-packages
//
//   - protocol: message records, method catalogs and validation
//   - errors: JSON-RPC error values and classification of handler errors
//   - transport: the bidirectional connection, line framing, routing,
//     subprocess and websocket streams
//   - agent: the agent side of a connection and terminal handles
//   - client: the client side of a connection
//   - config: YAML and environment configuration of the commands
//   - logging: structured logging
//   - observability: Prometheus metrics and OpenTelemetry tracing
//   - recorder: SQLite recording of wire traffic
//   - auth: API keys and rate limiting for the websocket bridge
//   - utils: goroutine leak detection for tests
package pkg
