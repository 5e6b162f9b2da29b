package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/msmm/aitools/internal/auth"
	"github.com/msmm/aitools/internal/store/memory"
	"github.com/msmm/aitools/internal/writeup"
)

func newTestRoutes(t *testing.T) http.Handler {
	t.Helper()

	sessionStore := memory.NewSessionStore()
	credentials := auth.NewCredentials(memory.NewUserStore(sessionStore), auth.WithBcryptCost(bcrypt.MinCost))
	sessions := auth.NewSessions(sessionStore)

	_, err := credentials.Provision(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	cmd := &ServerCmd{CORSOrigins: []string{"http://localhost:8080"}}
	return cmd.routes(credentials, sessions, writeup.NewHandler(writeup.NewWriter(nil), nil), zerolog.Nop())
}

func do(h http.Handler, method, path string, body []byte, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestRoutes_Unauthenticated(t *testing.T) {
	h := newTestRoutes(t)

	rec := do(h, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","service":"auth"}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/login.html", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = do(h, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/login.html", rec.Header().Get("Location"))

	rec = do(h, http.MethodPost, "/api/writeup/description", []byte(`{}`), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodGet, "/api/auth", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRoutes_LoginFlow(t *testing.T) {
	h := newTestRoutes(t)

	body, err := json.Marshal(map[string]string{"username": "alice", "password": "correct-horse"})
	require.NoError(t, err)

	rec := do(h, http.MethodPost, "/api/auth", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)

	rec = do(h, http.MethodGet, "/", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/api/auth", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"authenticated":true,"username":"alice"}`, rec.Body.String())

	rec = do(h, http.MethodPost, "/api/writeup/description", []byte(`{"documents_text":"x"}`), cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodDelete, "/api/auth", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/", nil, cookie)
	require.Equal(t, http.StatusFound, rec.Code)
}

func TestRoutes_WrongPassword(t *testing.T) {
	h := newTestRoutes(t)

	rec := do(h, http.MethodPost, "/api/auth", []byte(`{"username":"alice","password":"wrong-password"}`), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, rec.Result().Cookies())
}

func TestRoutes_CORSPreflight(t *testing.T) {
	h := newTestRoutes(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
