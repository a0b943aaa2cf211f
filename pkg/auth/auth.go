// Package auth guards the HTTP surface of the websocket bridge. Clients
// present an API key before their websocket is upgraded, and each client
// is limited in how many agent processes it can open per minute.
package auth

import (
	"context"
	"net/http"
)

// Provider checks a credential presented by a bridge client
type Provider interface {
	// Validate returns the user owning credential, or an *Error
	Validate(ctx context.Context, credential string) (*User, error)
	// Scheme names the credential type, e.g. "apikey"
	Scheme() string
}

// User is an authenticated bridge client
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Reason classifies why a client was turned away
type Reason string

const (
	ReasonMissing     Reason = "authentication_required"
	ReasonInvalid     Reason = "invalid_credentials"
	ReasonRevoked     Reason = "credentials_revoked"
	ReasonRateLimited Reason = "rate_limited"
)

// Status is the HTTP status answering a refusal for r
func (r Reason) Status() int {
	if r == ReasonRateLimited {
		return http.StatusTooManyRequests
	}
	return http.StatusUnauthorized
}

// Error is returned by providers and limiters. Two errors match under
// errors.Is when their reasons are equal.
type Error struct {
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return e.Detail
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

func refuse(reason Reason, detail string) *Error {
	return &Error{Reason: reason, Detail: detail}
}

type userKey struct{}

// ContextWithUser returns a context carrying the authenticated user
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the user stored by HTTPMiddleware
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userKey{}).(*User)
	return user, ok
}
