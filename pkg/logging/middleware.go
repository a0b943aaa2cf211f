package logging

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPMiddleware logs one entry per HTTP request. The request id comes
// from X-Request-ID or is generated, is echoed back and is available to
// the handler through RequestIDFromContext. Websocket upgrades are
// logged when the socket closes, with status 101.
func HTTPMiddleware(logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			began := time.Now()
			next.ServeHTTP(rec, r.WithContext(ContextWithRequestID(r.Context(), id)))

			l := logger.WithFields(
				Component("http"),
				RequestID(id),
				String("http_method", r.Method),
				String("path", r.URL.Path),
				String("remote_addr", r.RemoteAddr),
				Int("status", rec.status),
				Int("bytes", rec.written),
				Duration("duration", time.Since(began)),
			)
			switch {
			case rec.upgraded:
				l.Info("Websocket closed")
			case rec.status >= http.StatusInternalServerError:
				l.Error("Request failed")
			case rec.status >= http.StatusBadRequest:
				l.Warn("Request rejected")
			default:
				l.Info("Request served")
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status   int
	written  int
	upgraded bool
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.written += n
	return n, err
}

// Hijack is required by websocket upgraders
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("logging: response writer cannot be hijacked")
	}
	r.upgraded = true
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
