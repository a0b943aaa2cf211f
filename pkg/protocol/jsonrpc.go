package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	// JSONRPCVersion is the supported JSON-RPC version
	JSONRPCVersion = "2.0"
)

// ErrorCode represents a JSON-RPC 2.0 error code
type ErrorCode int

// Error codes defined by JSON-RPC 2.0
const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603
)

// ACP-specific error codes
const (
	// AuthRequired indicates the agent needs the client to authenticate first
	AuthRequired ErrorCode = -32000
)

var nullJSON = json.RawMessage("null")

// JSONRPCMessage represents a JSON-RPC 2.0 message
type JSONRPCMessage struct {
	JSONRPC string `json:"jsonrpc"`
}

// Request represents a JSON-RPC 2.0 request.
// The id is kept as raw JSON so that inbound ids are echoed back exactly.
type Request struct {
	JSONRPCMessage
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewRequest creates a new JSON-RPC 2.0 request with a connection-allocated id
func NewRequest(id int64, method string, params interface{}) (*Request, error) {
	paramsJSON, err := marshalPayload(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	return &Request{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             FormatID(id),
		Method:         method,
		Params:         paramsJSON,
	}, nil
}

// Response represents a JSON-RPC 2.0 response. Exactly one of Result and
// Error is set; a successful response with no value carries a JSON null.
type Response struct {
	JSONRPCMessage
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// NewResponse creates a new JSON-RPC 2.0 success response
func NewResponse(id json.RawMessage, result interface{}) (*Response, error) {
	resultJSON, err := marshalPayload(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	if resultJSON == nil {
		resultJSON = nullJSON
	}

	return &Response{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Result:         resultJSON,
	}, nil
}

// NewErrorResponse creates a new JSON-RPC 2.0 error response
func NewErrorResponse(id json.RawMessage, rpcErr *Error) *Response {
	return &Response{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Error:          rpcErr,
	}
}

// Notification represents a JSON-RPC 2.0 notification
type Notification struct {
	JSONRPCMessage
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewNotification creates a new JSON-RPC 2.0 notification
func NewNotification(method string, params interface{}) (*Notification, error) {
	paramsJSON, err := marshalPayload(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	return &Notification{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		Method:         method,
		Params:         paramsJSON,
	}, nil
}

// Error represents a JSON-RPC 2.0 error object
type Error struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// MessageKind classifies a decoded wire line
type MessageKind int

const (
	KindInvalid MessageKind = iota
	KindRequest
	KindNotification
	KindResponse
)

// String returns the kind name used in logs and metrics
func (k MessageKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "invalid"
	}
}

// Message is the decoded envelope of one wire line. Presence of the id and
// method keys decides its kind; an explicit "id": null still counts as present.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`

	hasMethod bool
}

// UnmarshalJSON records key presence while decoding the envelope
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  json.RawMessage `json:"method"`
		Params  json.RawMessage `json:"params"`
		Result  json.RawMessage `json:"result"`
		Error   *Error          `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Message{
		JSONRPC: raw.JSONRPC,
		ID:      raw.ID,
		Params:  raw.Params,
		Result:  raw.Result,
		Error:   raw.Error,
	}
	if len(raw.Method) > 0 {
		if err := json.Unmarshal(raw.Method, &m.Method); err != nil {
			return fmt.Errorf("method must be a string: %w", err)
		}
		m.hasMethod = true
	}
	return nil
}

// Kind classifies the message as request, notification or response
func (m *Message) Kind() MessageKind {
	hasID := len(m.ID) > 0
	switch {
	case m.hasMethod && hasID:
		return KindRequest
	case m.hasMethod:
		return KindNotification
	case hasID:
		return KindResponse
	default:
		return KindInvalid
	}
}

// ParseMessage decodes a single wire line into a Message
func ParseMessage(line []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ExtractID makes a best effort to recover the id of a line that failed to
// decode as a Message. It returns nil when no id can be recovered.
func ExtractID(line []byte) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil
	}
	if len(probe.ID) == 0 || bytes.Equal(probe.ID, nullJSON) {
		return nil
	}
	return probe.ID
}

// FormatID encodes an outbound request id
func FormatID(id int64) json.RawMessage {
	return json.RawMessage(strconv.FormatInt(id, 10))
}

// ParseID decodes an id allocated by this side of the connection.
// Ids of any other JSON type are reported as not ok.
func ParseID(raw json.RawMessage) (int64, bool) {
	id, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func marshalPayload(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}
