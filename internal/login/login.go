package login

import (
	"errors"
	"net/http"
	"time"

	"github.com/msmm/aitools/internal/auth"
	apphttp "github.com/msmm/aitools/internal/http"
	"github.com/msmm/aitools/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Handler serves the /api/auth endpoint: POST logs in, GET reports the
// current session and DELETE logs out.
type Handler struct {
	credentials  *auth.Credentials
	sessions     *auth.Sessions
	secureCookie bool
}

// NewHandler creates a login handler. secureCookie controls the Secure flag
// on the session cookie and should only be disabled for plain HTTP development.
func NewHandler(credentials *auth.Credentials, sessions *auth.Sessions, secureCookie bool) *Handler {
	return &Handler{
		credentials:  credentials,
		sessions:     sessions,
		secureCookie: secureCookie,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Username string `json:"username,omitempty"`
}

type statusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.login(w, r)
	case http.MethodGet:
		h.status(w, r)
	case http.MethodDelete:
		h.logout(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		apphttp.WriteJSON(w, r, http.StatusMethodNotAllowed, loginResponse{Success: false, Message: "Method not allowed"})
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	var req loginRequest
	if err := apphttp.DecodeJSON(w, r, &req); err != nil {
		logger.Debug().Err(err).Msg("Invalid login body")
		apphttp.WriteJSON(w, r, http.StatusBadRequest, loginResponse{Success: false, Message: "Invalid request body"})
		return
	}

	if req.Username == "" || req.Password == "" {
		apphttp.WriteJSON(w, r, http.StatusBadRequest, loginResponse{Success: false, Message: "Username and password are required"})
		return
	}

	id, err := h.credentials.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			logger.Warn().
				Str("op", "login").
				Str("username", req.Username).
				Str("client_ip", apphttp.ClientIPFromContext(r.Context())).
				Msg("Login failed")
			recordLogin(r, "invalid")
			apphttp.WriteJSON(w, r, http.StatusUnauthorized, loginResponse{Success: false, Message: "Invalid credentials"})
			return
		}

		logger.Error().Err(err).Str("op", "login").Str("username", req.Username).Msg("Login error")
		recordLogin(r, "error")
		apphttp.WriteJSON(w, r, http.StatusInternalServerError, loginResponse{Success: false, Message: "Server error"})
		return
	}

	session, err := h.sessions.Issue(r.Context(), *id)
	if err != nil {
		logger.Error().Err(err).Str("op", "login").Str("username", id.Username).Msg("Failed to issue session")
		recordLogin(r, "error")
		apphttp.WriteJSON(w, r, http.StatusInternalServerError, loginResponse{Success: false, Message: "Server error"})
		return
	}

	http.SetCookie(w, h.sessionCookie(session.SessionID, int(h.sessions.TTL()/time.Second)))

	logger.Info().Str("op", "login").Str("username", id.Username).Msg("Login successful")
	recordLogin(r, "success")

	apphttp.WriteJSON(w, r, http.StatusOK, loginResponse{
		Success:  true,
		Message:  "Login successful",
		Username: id.Username,
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Resolve(r.Context(), auth.SessionToken(r))
	if err != nil {
		// storage errors also report signed out rather than 500, so the
		// page falls back to the login form
		apphttp.WriteJSON(w, r, http.StatusUnauthorized, statusResponse{Authenticated: false})
		return
	}

	apphttp.WriteJSON(w, r, http.StatusOK, statusResponse{Authenticated: true, Username: session.Username})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Revoke(r.Context(), auth.SessionToken(r)); err != nil {
		// the cookie is cleared regardless, the row will be swept once it expires
		zerolog.Ctx(r.Context()).Error().Err(err).Str("op", "logout").Msg("Failed to revoke session")
	}

	http.SetCookie(w, h.sessionCookie("", -1))

	apphttp.WriteJSON(w, r, http.StatusOK, loginResponse{Success: true, Message: "Logout successful"})
}

func (h *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// Health reports that the auth service is up.
func Health(w http.ResponseWriter, r *http.Request) {
	apphttp.WriteJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "auth",
	})
}

func recordLogin(r *http.Request, outcome string) {
	telemetry.GetMetrics().LoginsTotal.Add(r.Context(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}
