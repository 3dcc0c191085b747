package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rentranks/rentranks-front/internal/cookie"
	jsonwriter "github.com/rentranks/rentranks-front/internal/json"
	"github.com/rentranks/rentranks-front/internal/log"
	"github.com/rentranks/rentranks-front/internal/session"
)

// MiddlewareFunc is a function that wraps an http.Handler
type MiddlewareFunc func(http.Handler) http.Handler

// ChainMiddleware chains multiple middleware functions
func ChainMiddleware(h http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for _, mw := range middlewares {
		h = mw(h)
	}
	return h
}

type contextKey string

const (
	requestIDContextKey contextKey = "request_id"
	sessionContextKey   contextKey = "session_projection"
	sessionIDContextKey contextKey = "session_id"
)

// RequestIDFromContext returns the request ID, or "" when none was assigned.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// ProjectionFromContext returns the session projection attached by the
// session middleware. Handlers below the middleware always find one;
// it is the signed-out projection for anonymous requests.
func ProjectionFromContext(ctx context.Context) session.Projection {
	proj, ok := ctx.Value(sessionContextKey).(session.Projection)
	if !ok {
		return session.SignedOut
	}
	return proj
}

// sessionIDFromContext returns the browser's session ID, or "" when the
// request carried no valid session cookie.
func sessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDContextKey).(string)
	return id
}

// NewRequestIDMiddleware assigns each request a UUID, echoed in the
// X-Request-ID response header.
func NewRequestIDMiddleware() MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// responseWriterDelegator wraps http.ResponseWriter to capture status and bytes written
// while properly delegating all optional interfaces through Unwrap
type responseWriterDelegator struct {
	http.ResponseWriter
	status      int
	written     int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriterDelegator {
	return &responseWriterDelegator{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

func (r *responseWriterDelegator) Status() int {
	return r.status
}

func (r *responseWriterDelegator) BytesWritten() int {
	return r.written
}

func (r *responseWriterDelegator) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseWriterDelegator) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter for interface detection
func (r *responseWriterDelegator) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Flush implements http.Flusher
func (r *responseWriterDelegator) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Verify interfaces
var _ http.ResponseWriter = (*responseWriterDelegator)(nil)
var _ http.Flusher = (*responseWriterDelegator)(nil)

// NewLoggerMiddleware adds request/response logging
func NewLoggerMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			fields := map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       wrapped.BytesWritten(),
				"remote_addr": r.RemoteAddr,
			}

			if requestID := RequestIDFromContext(r.Context()); requestID != "" {
				fields["request_id"] = requestID
			}
			if r.URL.RawQuery != "" {
				fields["query"] = r.URL.RawQuery
			}

			log.LogInfoWithFields(prefix, "request", fields)
		})
	}
}

// NewRecoverMiddleware recovers from panics
func NewRecoverMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Logf("<%s> Recovered from panic: %v", prefix, err)
					jsonwriter.WriteInternalServerError(w, "Internal Server Error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NewSessionMiddleware resolves the browser's session cookie into a
// projection and attaches it to the request context. Requests without a
// cookie, or with one that fails verification, proceed as signed out;
// bad cookies are cleared so the browser stops sending them.
func NewSessionMiddleware(sessions *session.Manager, cookies *SessionCookies) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value, err := cookie.GetSession(r)
			if err != nil {
				next.ServeHTTP(w, r.WithContext(withProjection(r.Context(), "", session.SignedOut)))
				return
			}

			sessionID, err := cookies.Verify(value)
			if err != nil {
				log.LogDebug("Invalid session cookie: %v", err)
				cookie.ClearSession(w)
				next.ServeHTTP(w, r.WithContext(withProjection(r.Context(), "", session.SignedOut)))
				return
			}

			proj, err := sessions.Session(r.Context(), sessionID)
			if err != nil {
				log.LogErrorWithFields("server", "Failed to resolve session", map[string]any{
					"error": err.Error(),
				})
				proj = session.SignedOut
			}
			if !proj.Authenticated {
				cookie.ClearSession(w)
			}

			next.ServeHTTP(w, r.WithContext(withProjection(r.Context(), sessionID, proj)))
		})
	}
}

func withProjection(ctx context.Context, sessionID string, proj session.Projection) context.Context {
	ctx = context.WithValue(ctx, sessionIDContextKey, sessionID)
	return context.WithValue(ctx, sessionContextKey, proj)
}
