package transport

import (
	"context"
	"encoding/json"
	"reflect"

	acperrors "github.com/sotayamashita/agent-client-protocol-vscode/pkg/errors"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
)

// ExtRequestFunc receives an extension request with the "_" prefix removed
type ExtRequestFunc func(ctx context.Context, method string, params json.RawMessage) (interface{}, error)

// ExtNotificationFunc receives an extension notification with the "_" prefix removed
type ExtNotificationFunc func(ctx context.Context, method string, params json.RawMessage) error

// Router is a Handler that dispatches on method name. Unknown methods are
// answered with Method not found. Methods carrying the extension prefix go
// to the extension handlers with the prefix stripped; an extension
// notification without a handler is ignored.
type Router struct {
	requests        map[string]RequestHandlerFunc
	notifications   map[string]NotificationHandlerFunc
	extRequest      ExtRequestFunc
	extNotification ExtNotificationFunc
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{
		requests:      make(map[string]RequestHandlerFunc),
		notifications: make(map[string]NotificationHandlerFunc),
	}
}

// Request registers the handler for a request method
func (r *Router) Request(method string, fn RequestHandlerFunc) *Router {
	r.requests[method] = fn
	return r
}

// Notification registers the handler for a notification method
func (r *Router) Notification(method string, fn NotificationHandlerFunc) *Router {
	r.notifications[method] = fn
	return r
}

// ExtRequest sets the handler for "_"-prefixed requests
func (r *Router) ExtRequest(fn ExtRequestFunc) *Router {
	r.extRequest = fn
	return r
}

// ExtNotification sets the handler for "_"-prefixed notifications
func (r *Router) ExtNotification(fn ExtNotificationFunc) *Router {
	r.extNotification = fn
	return r
}

// Handles reports whether method has a registered request or notification handler
func (r *Router) Handles(method string) bool {
	_, req := r.requests[method]
	_, notif := r.notifications[method]
	return req || notif
}

// HandleRequest implements Handler
func (r *Router) HandleRequest(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	if fn, ok := r.requests[method]; ok {
		return fn(ctx, method, params)
	}
	if protocol.IsExtension(method) && r.extRequest != nil {
		return r.extRequest(ctx, protocol.StripExtension(method), params)
	}
	return nil, acperrors.MethodNotFound(method)
}

// HandleNotification implements Handler
func (r *Router) HandleNotification(ctx context.Context, method string, params json.RawMessage) error {
	if fn, ok := r.notifications[method]; ok {
		return fn(ctx, method, params)
	}
	if protocol.IsExtension(method) {
		if r.extNotification == nil {
			return nil
		}
		return r.extNotification(ctx, protocol.StripExtension(method), params)
	}
	return acperrors.MethodNotFound(method)
}

// Route adapts a typed handler to a RequestHandlerFunc. Params are decoded
// and validated before fn runs; a validation failure reaches the peer as
// Invalid params. When emptyResult is set a nil result is sent as {}.
func Route[P any, PT interface {
	*P
	protocol.Validatable
}, R any](emptyResult bool, fn func(ctx context.Context, params PT) (R, error)) RequestHandlerFunc {
	return func(ctx context.Context, method string, raw json.RawMessage) (interface{}, error) {
		params := PT(new(P))
		if err := protocol.DecodeParams(method, raw, params); err != nil {
			return nil, err
		}
		result, err := fn(ctx, params)
		if err != nil {
			return nil, err
		}
		if isNil(result) {
			if emptyResult {
				return protocol.EmptyObject{}, nil
			}
			return nil, nil
		}
		return result, nil
	}
}

// RouteNotification adapts a typed notification handler
func RouteNotification[P any, PT interface {
	*P
	protocol.Validatable
}](fn func(ctx context.Context, params PT) error) NotificationHandlerFunc {
	return func(ctx context.Context, method string, raw json.RawMessage) error {
		params := PT(new(P))
		if err := protocol.DecodeParams(method, raw, params); err != nil {
			return err
		}
		return fn(ctx, params)
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
