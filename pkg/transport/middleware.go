package transport

import (
	"context"
	"encoding/json"
	"time"

	acperrors "github.com/sotayamashita/agent-client-protocol-vscode/pkg/errors"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
)

// Handler receives the inbound calls of a connection. HandleRequest may be
// called concurrently; HandleNotification is called in wire order from the
// read loop and must not wait on responses from the same connection.
type Handler interface {
	HandleRequest(ctx context.Context, method string, params json.RawMessage) (interface{}, error)
	HandleNotification(ctx context.Context, method string, params json.RawMessage) error
}

// RequestHandlerFunc handles one inbound request
type RequestHandlerFunc func(ctx context.Context, method string, params json.RawMessage) (interface{}, error)

// NotificationHandlerFunc handles one inbound notification
type NotificationHandlerFunc func(ctx context.Context, method string, params json.RawMessage) error

// HandlerFuncs adapts plain functions to Handler. A nil OnRequest answers
// every request with Method not found; a nil OnNotification ignores
// notifications.
type HandlerFuncs struct {
	OnRequest      RequestHandlerFunc
	OnNotification NotificationHandlerFunc
}

// HandleRequest implements Handler
func (h HandlerFuncs) HandleRequest(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	if h.OnRequest == nil {
		return nil, acperrors.MethodNotFound(method)
	}
	return h.OnRequest(ctx, method, params)
}

// HandleNotification implements Handler
func (h HandlerFuncs) HandleNotification(ctx context.Context, method string, params json.RawMessage) error {
	if h.OnNotification == nil {
		return nil
	}
	return h.OnNotification(ctx, method, params)
}

// Middleware wraps a Handler to add behavior around inbound calls
type Middleware func(Handler) Handler

// Chain composes middleware so that the first one is the outermost
func Chain(middleware ...Middleware) Middleware {
	return func(h Handler) Handler {
		for i := len(middleware) - 1; i >= 0; i-- {
			h = middleware[i](h)
		}
		return h
	}
}

// LoggingMiddleware logs every inbound call with its duration. Failures are
// logged at warn level, successes at debug level.
func LoggingMiddleware(logger logging.Logger) Middleware {
	return func(next Handler) Handler {
		return &loggingHandler{next: next, logger: logger}
	}
}

type loggingHandler struct {
	next   Handler
	logger logging.Logger
}

func (h *loggingHandler) HandleRequest(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	start := time.Now()
	result, err := h.next.HandleRequest(ctx, method, params)

	logger := h.logger.WithContext(ctx).WithFields(
		logging.Method(method),
		logging.Duration("duration", time.Since(start)),
	)
	if err != nil {
		logger.WithError(err).Warn("Request failed")
	} else {
		logger.Debug("Request handled")
	}
	return result, err
}

func (h *loggingHandler) HandleNotification(ctx context.Context, method string, params json.RawMessage) error {
	start := time.Now()
	err := h.next.HandleNotification(ctx, method, params)

	logger := h.logger.WithFields(
		logging.Method(method),
		logging.Duration("duration", time.Since(start)),
	)
	if err != nil {
		logger.WithError(err).Warn("Notification failed")
	} else {
		logger.Debug("Notification handled")
	}
	return err
}
