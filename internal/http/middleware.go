package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/observability/statsd"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Metrics returns a middleware that emits request counts, latency, and an
// in-flight gauge to the configured StatsD sink. A nil sink produces a
// pass-through middleware.
func Metrics(sink statsd.Sink) func(http.Handler) http.Handler {
	var inflight atomic.Int64
	return func(next http.Handler) http.Handler {
		if sink == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sink.Gauge(statsd.MetricHTTPInflight, float64(inflight.Add(1)), nil)
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			sink.Gauge(statsd.MetricHTTPInflight, float64(inflight.Add(-1)), nil)

			tags := map[string]string{
				"method": r.Method,
				"status": strconv.Itoa(ww.status),
			}
			sink.Count(statsd.MetricHTTPRequests, 1, tags)
			sink.Timing(statsd.MetricHTTPRequestDuration, time.Since(start), tags)
		})
	}
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLevel returns the route guard middleware: it resolves the portal
// session from the request cookie, recomputes the authorization level, and
// gates the protected view. The two denial states stay distinct: a missing
// identity asks the caller to log in (401), an insufficient level reports
// forbidden (403). The middleware only reads session state; it never
// mutates it.
func RequireLevel(authSvc AuthServiceInterface, required domainauth.Level) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := resolveRequestAuth(r, authSvc)

			in := domainauth.GuardInput{}
			if auth != nil {
				identity := auth.Authz.Identity
				in.Identity = &identity
				in.Level = auth.Authz.Level
			}

			switch domainauth.Decide(in, required) {
			case domainauth.DecisionWaiting:
				// Per-request resolution has already completed by the time a
				// decision is made, so the waiting state maps to "try again".
				w.Header().Set("Retry-After", "1")
				WriteError(w, ErrorParams{
					Code:    http.StatusServiceUnavailable,
					ErrCode: "session_loading",
					Err:     errors.New("session is still loading"),
				})
			case domainauth.DecisionSignIn:
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
			case domainauth.DecisionForbidden:
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_level",
					Err:     errors.New("your access level is insufficient"),
				})
			case domainauth.DecisionAllow:
				ctx := SetAuthInContext(r.Context(), auth)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// OptionalAuth returns a middleware that attaches authorization information
// when a valid session is present and continues without it otherwise.
func OptionalAuth(authSvc AuthServiceInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := resolveRequestAuth(r, authSvc); auth != nil {
				r = r.WithContext(SetAuthInContext(r.Context(), auth))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveRequestAuth retrieves the session from the request cookie and
// recomputes its authorization. Returns nil for unauthenticated requests.
func resolveRequestAuth(r *http.Request, authSvc AuthServiceInterface) *RequestAuth {
	sessionCookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}

	session, err := authSvc.GetSession(r.Context(), sessionCookie.Value)
	if err != nil {
		return nil
	}

	authz := authSvc.Authorize(r.Context(), session)
	return &RequestAuth{Session: session, Authz: authz}
}
