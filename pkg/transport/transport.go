package transport

import (
	"context"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
)

// Direction tells whether a frame was read or written
type Direction string

const (
	Inbound  Direction = "in"
	Outbound Direction = "out"
)

// FrameObserver is called with every line read from or written to the
// stream, in wire order per direction. It must not retain line.
type FrameObserver func(dir Direction, line []byte)

// Event is a connection occurrence worth counting
type Event string

const (
	EventParseError         Event = "parse_error"
	EventInvalidMessage     Event = "invalid_message"
	EventLineTooLong        Event = "line_too_long"
	EventUnknownResponse    Event = "unknown_response"
	EventWriteFailed        Event = "write_failed"
	EventNotificationFailed Event = "notification_failed"
	EventHandlerPanic       Event = "handler_panic"
)

// EventHook receives connection events. It is called synchronously and
// must be safe for concurrent use.
type EventHook func(Event)

// OutboundObserver is notified around every outbound request and
// notification. The returned function is called with the outcome.
type OutboundObserver interface {
	StartOutbound(ctx context.Context, kind protocol.MessageKind, method string) (context.Context, func(error))
}

// Config holds the settings of a Connection
type Config struct {
	// Name identifies the connection in logs, e.g. "agent" or "client"
	Name string

	// MaxLineBytes bounds the size of one inbound message; 0 is unlimited
	MaxLineBytes int

	// WriteQueueSize is the number of messages that may wait for the writer
	WriteQueueSize int

	Logger     logging.Logger
	Middleware []Middleware
	Frames     FrameObserver
	Events     EventHook
	Outbound   OutboundObserver
}

// DefaultConfig returns the default connection settings
func DefaultConfig() Config {
	return Config{
		Name:           "connection",
		MaxLineBytes:   0,
		WriteQueueSize: 64,
	}
}

// Option configures a Connection
type Option func(*Config)

// WithConfig replaces the whole configuration
func WithConfig(cfg Config) Option {
	return func(c *Config) { *c = cfg }
}

// WithName sets the name used in logs
func WithName(name string) Option {
	return func(c *Config) { c.Name = name }
}

// WithLogger sets the logger. The global logger is used otherwise.
func WithLogger(logger logging.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithMiddleware appends inbound middleware
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Config) { c.Middleware = append(c.Middleware, middleware...) }
}

// WithMaxLineBytes bounds the size of inbound messages
func WithMaxLineBytes(n int) Option {
	return func(c *Config) { c.MaxLineBytes = n }
}

// WithWriteQueueSize sets how many outbound messages may be queued
func WithWriteQueueSize(n int) Option {
	return func(c *Config) { c.WriteQueueSize = n }
}

// WithFrameObserver observes every line on the wire
func WithFrameObserver(observer FrameObserver) Option {
	return func(c *Config) { c.Frames = observer }
}

// WithEventHook receives connection events
func WithEventHook(hook EventHook) Option {
	return func(c *Config) { c.Events = hook }
}

// WithOutboundObserver observes outbound requests and notifications
func WithOutboundObserver(observer OutboundObserver) Option {
	return func(c *Config) { c.Outbound = observer }
}
