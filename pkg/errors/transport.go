package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrConnectionClosed is returned to callers waiting on a connection that
// has shut down, and by sends attempted after shutdown
var ErrConnectionClosed = stderrors.New("connection closed")

// ErrTerminalReleased is returned by operations on a released terminal
var ErrTerminalReleased = stderrors.New("terminal released")

// TransportErrorData contains structured data for transport-related errors
type TransportErrorData struct {
	Transport string `json:"transport"`
	Operation string `json:"operation,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// WriteFailed reports that a message could not be written to the stream
func WriteFailed(operation string, cause error) *RequestError {
	message := fmt.Sprintf("failed to write %s", operation)
	return WrapError(cause, CodeInternalError, message).
		withCategory(CategoryTransport).
		WithData(&TransportErrorData{Transport: "stream", Operation: operation, Reason: reason(cause)})
}

// ConnectionClosed reports that the connection shut down, optionally
// because of cause. errors.Is(err, ErrConnectionClosed) holds for the result.
func ConnectionClosed(cause error) *RequestError {
	wrapped := ErrConnectionClosed
	if cause != nil {
		wrapped = fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
	}
	return WrapError(wrapped, CodeInternalError, "transport stopped").
		withCategory(CategoryTransport).
		WithData(&TransportErrorData{Transport: "stream", Operation: "read", Reason: reason(cause)})
}

// MessageTooLarge reports an inbound line above the configured limit
func MessageTooLarge(size, maxSize int) *RequestError {
	return NewError(CodeParseError, "Parse error", map[string]int{"size": size, "max": maxSize}).
		WithMessage(fmt.Sprintf("message of %d bytes exceeds limit of %d", size, maxSize))
}

func (e *RequestError) withCategory(category Category) *RequestError {
	newErr := *e
	newErr.category = category
	return &newErr
}

func reason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
