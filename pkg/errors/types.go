// Package errors provides the structured error type exchanged over an ACP
// connection. A RequestError maps one-to-one onto a JSON-RPC error object
// and carries a category used for logging and metrics.
package errors

import (
	"encoding/json"
	stderrors "errors"
)

// Category classifies an error by where in the pipeline it arose
type Category string

const (
	// CategoryTransport covers framing and parse failures
	CategoryTransport   Category = "transport"
	CategoryValidation  Category = "validation"
	CategoryRouting     Category = "routing"
	CategoryApplication Category = "application"
	CategoryAuth        Category = "auth"
	// CategoryPeer covers application-defined codes sent by the peer
	CategoryPeer Category = "peer"
)

// Context records where an error was observed. It never goes on the wire.
type Context struct {
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Component string `json:"component,omitempty"`
}

// RequestError is a JSON-RPC error with a code, a message and optional
// data. Values are immutable; the With methods return modified copies.
type RequestError struct {
	code     int
	message  string
	data     interface{}
	category Category
	context  *Context
	cause    error
}

// NewError creates a RequestError, categorized by its code
func NewError(code int, message string, data interface{}) *RequestError {
	return &RequestError{code: code, message: message, data: data, category: categoryOf(code)}
}

// WrapError creates a RequestError caused by err. The cause shows in
// Error() and errors.Is/As but is not sent to the peer.
func WrapError(err error, code int, message string) *RequestError {
	e := NewError(code, message, nil)
	e.cause = err
	return e
}

func (e *RequestError) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *RequestError) Unwrap() error { return e.cause }

func (e *RequestError) Code() int { return e.code }
func (e *RequestError) Message() string { return e.message }
func (e *RequestError) Data() interface{} { return e.data }
func (e *RequestError) Category() Category { return e.category }
func (e *RequestError) Context() *Context { return e.context }

func (e *RequestError) WithContext(ctx *Context) *RequestError {
	c := *e
	c.context = ctx
	return &c
}

func (e *RequestError) WithData(data interface{}) *RequestError {
	c := *e
	c.data = data
	return &c
}

func (e *RequestError) WithMessage(message string) *RequestError {
	c := *e
	c.message = message
	return &c
}

// MarshalJSON renders the error for logs, including the local-only
// category, context and cause. The wire form is protocol.Error.
func (e *RequestError) MarshalJSON() ([]byte, error) {
	out := struct {
		Code     int         `json:"code"`
		Message  string      `json:"message"`
		Category Category    `json:"category"`
		Data     interface{} `json:"data,omitempty"`
		Context  *Context    `json:"context,omitempty"`
		Cause    string      `json:"cause,omitempty"`
	}{Code: e.code, Message: e.message, Category: e.category, Data: e.data, Context: e.context}
	if e.cause != nil {
		out.Cause = e.cause.Error()
	}
	return json.Marshal(out)
}

// AsRequestError finds a RequestError in err's chain
func AsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	if err == nil || !stderrors.As(err, &reqErr) {
		return nil, false
	}
	return reqErr, true
}

// IsCategory reports whether err carries a RequestError of category
func IsCategory(err error, category Category) bool {
	reqErr, ok := AsRequestError(err)
	return ok && reqErr.category == category
}

// IsCode reports whether err carries a RequestError with code
func IsCode(err error, code int) bool {
	reqErr, ok := AsRequestError(err)
	return ok && reqErr.code == code
}
