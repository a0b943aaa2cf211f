package auth

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
)

// MiddlewareConfig configures HTTPMiddleware. A nil Provider admits
// every request and a nil Limiter disables rate limiting.
type MiddlewareConfig struct {
	Provider Provider
	Limiter  *RateLimiter
	Logger   logging.Logger
}

// HTTPMiddleware authenticates requests before they reach next. Refusals
// carry the reason in the X-Auth-Error header. Clients are rate limited
// per user when authenticated and per remote IP otherwise.
func HTTPMiddleware(config MiddlewareConfig) func(http.Handler) http.Handler {
	logger := config.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.Component("auth"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + remoteIP(r)
			if config.Provider != nil {
				user, err := config.Provider.Validate(r.Context(), credential(r))
				if err != nil {
					logger.WithError(err).Warn("Authentication failed",
						logging.String("remote_addr", r.RemoteAddr),
						logging.String("scheme", config.Provider.Scheme()))
					w.Header().Set("WWW-Authenticate", `Bearer realm="acp"`)
					deny(w, err)
					return
				}
				key = "user:" + user.ID
				r = r.WithContext(ContextWithUser(r.Context(), user))
			}

			if config.Limiter != nil && !config.Limiter.Allow(key) {
				logger.Warn("Connection rate exceeded", logging.String("client", key))
				deny(w, refuse(ReasonRateLimited, "too many connections"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, err error) {
	reason := ReasonInvalid
	var authErr *Error
	if errors.As(err, &authErr) {
		reason = authErr.Reason
	}
	w.Header().Set("X-Auth-Error", string(reason))
	http.Error(w, err.Error(), reason.Status())
}

// credential reads an "Authorization: Bearer|ApiKey" header, falling back
// to the token query parameter since browser websockets cannot set headers
func credential(r *http.Request) string {
	if scheme, value, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok {
		switch strings.ToLower(scheme) {
		case "bearer", "apikey":
			return strings.TrimSpace(value)
		}
	}
	return r.URL.Query().Get("token")
}

func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
