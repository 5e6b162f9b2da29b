package logger

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RequestIDHeader carries the request id back to the client.
const RequestIDHeader = "X-Request-Id"

// RequestLogger attaches a request scoped logger to the context and logs every
// request once it completes. Handlers retrieve the logger with zerolog.Ctx.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := hlog.AccessHandler(logAccess)(next)
		h = hlog.UserAgentHandler("user_agent")(h)
		h = hlog.MethodHandler("method")(h)
		h = requestIDHandler(h)
		return hlog.NewHandler(logger)(h)
	}
}

// requestIDHandler tags the request logger with a time ordered id and the
// path, and echoes the id in the response.
func requestIDHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := newRequestID()
		w.Header().Set(RequestIDHeader, id)

		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("request_id", id).Str("path", r.URL.Path)
		})

		next.ServeHTTP(w, r)
	})
}

func logAccess(r *http.Request, status, size int, duration time.Duration) {
	if status == 0 {
		status = http.StatusOK
	}

	log := hlog.FromRequest(r)
	event := log.Info()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}

	event.
		Int("status", status).
		Int("bytes", size).
		Dur("duration", duration).
		Msg("http request")
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
