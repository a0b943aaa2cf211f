package errors

import (
	"encoding/json"
	stderrors "errors"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
)

// ToProtocolError converts a RequestError to the wire error object
func ToProtocolError(err *RequestError) *protocol.Error {
	if err == nil {
		return nil
	}
	return &protocol.Error{
		Code:    protocol.ErrorCode(err.Code()),
		Message: err.Message(),
		Data:    err.Data(),
	}
}

// FromProtocolError converts an error received from the peer. The result can
// be returned from a handler to forward the error unchanged.
func FromProtocolError(rpcErr *protocol.Error) *RequestError {
	if rpcErr == nil {
		return nil
	}
	return NewError(int(rpcErr.Code), rpcErr.Message, rpcErr.Data)
}

// Classify turns a handler failure into the error sent to the peer.
// A RequestError anywhere in the chain is forwarded unchanged and a
// *protocol.ValidationError becomes Invalid params. Anything else becomes
// Internal error, keeping the message as data: parsed when the message is
// itself JSON, wrapped as {"details": message} otherwise.
func Classify(err error) *RequestError {
	if err == nil {
		return nil
	}
	if reqErr, ok := AsRequestError(err); ok {
		return reqErr
	}

	var verr *protocol.ValidationError
	if stderrors.As(err, &verr) {
		return InvalidParams(verr.Issues)
	}

	msg := err.Error()
	var details interface{}
	if json.Unmarshal([]byte(msg), &details) == nil {
		return WrapError(err, CodeInternalError, "Internal error").WithData(details)
	}
	return WrapError(err, CodeInternalError, "Internal error").WithData(map[string]string{"details": msg})
}

// ToResponse builds the error response for a request id
func ToResponse(err error, id json.RawMessage) *protocol.Response {
	return protocol.NewErrorResponse(id, ToProtocolError(Classify(err)))
}
