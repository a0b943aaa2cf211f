// Package protocol defines the wire types of the Agent Client Protocol.
//
// ACP is a JSON-RPC 2.0 based protocol spoken between a code editor (the
// Client) and an AI coding agent (the Agent), usually over the standard
// pipes of an agent subprocess. Every message is one line of JSON.
//
// # Package Organization
//
//   - jsonrpc.go: the JSON-RPC envelope, error object and message classification
//   - acp.go: method names, the method catalogs and extension method helpers
//   - validate.go: the Validator used to check decoded params and results
//   - initialize.go, session.go, client.go: params and results per method
//   - content.go, tool_call.go, mcp.go: the tagged unions shared by those records
//
// # Tagged Unions
//
// Polymorphic payloads such as content blocks are modeled as structs with
// one pointer per variant. Exactly one pointer is set on a valid value.
// Decoding never fails on an unknown or malformed variant; the problem is
// reported by Validate together with its field path, so that the peer
// receives an "Invalid params" error instead of a parse failure.
//
// # Example Messages
//
// Initialize request:
//
//	{"jsonrpc":"2.0","id":0,"method":"initialize","params":{"protocolVersion":1,"clientCapabilities":{"fs":{"readTextFile":true,"writeTextFile":true}}}}
//
// Session update notification:
//
//	{"jsonrpc":"2.0","method":"session/update","params":{"sessionId":"sess_1","update":{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"Hello"}}}}
package protocol
