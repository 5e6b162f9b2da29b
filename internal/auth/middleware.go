package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apphttp "github.com/msmm/aitools/internal/http"
	"github.com/msmm/aitools/internal/store"
	"github.com/rs/zerolog"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "session_token"

type contextKey string

const identityContextKey contextKey = "identity"

// IdentityFromContext extracts the identity from the request context.
// This should be called from handlers protected by RequireSession.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

// ContextWithIdentity returns a copy of ctx carrying id.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IsAPIRoute reports whether a path is served as JSON rather than a page.
func IsAPIRoute(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// SessionToken returns the session cookie value, or "" when absent.
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

type unauthenticatedResponse struct {
	Success       bool   `json:"success"`
	Authenticated bool   `json:"authenticated"`
	Message       string `json:"message"`
}

// RequireSession is a middleware that protects routes by requiring a valid session.
// API requests are rejected with a 401 JSON body, everything else is redirected to loginPath.
// Storage failures are treated as unauthenticated.
func RequireSession(sessions *Sessions, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context())

			token := SessionToken(r)
			if token == "" {
				reject(w, r, loginPath, "Authentication required")
				return
			}

			session, err := sessions.Resolve(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, store.ErrSessionExpired):
					logger.Debug().Msg("Session expired")
				case errors.Is(err, store.ErrSessionNotFound):
					logger.Debug().Msg("Unknown session")
				default:
					// fails closed: a storage error rejects like a missing
					// session instead of answering 500
					logger.Error().Err(err).Str("op", "resolve").Msg("Failed to resolve session")
				}
				reject(w, r, loginPath, "Invalid or expired session")
				return
			}

			logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("username", session.Username)
			})

			ctx := ContextWithIdentity(r.Context(), Identity{UserID: session.UserID, Username: session.Username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, loginPath, message string) {
	if IsAPIRoute(r.URL.Path) {
		apphttp.WriteJSON(w, r, http.StatusUnauthorized, unauthenticatedResponse{
			Success:       false,
			Authenticated: false,
			Message:       message,
		})
		return
	}

	http.Redirect(w, r, loginPath, http.StatusFound)
}
