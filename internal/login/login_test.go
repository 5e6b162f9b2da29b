package login

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/msmm/aitools/internal/auth"
	"github.com/msmm/aitools/internal/models"
	"github.com/msmm/aitools/internal/store"
	"github.com/msmm/aitools/internal/store/memory"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	handler  *Handler
	sessions *memory.SessionStore
}

// createTestHandler creates a login handler over memory stores with alice provisioned
func createTestHandler(t *testing.T) testEnv {
	sessionStore := memory.NewSessionStore()
	creds := auth.NewCredentials(memory.NewUserStore(sessionStore), auth.WithBcryptCost(bcrypt.MinCost))

	_, err := creds.Provision(context.Background(), "alice", "s3cretpw")
	require.NoError(t, err)

	return testEnv{
		handler:  NewHandler(creds, auth.NewSessions(sessionStore), true),
		sessions: sessionStore,
	}
}

var errDatabaseDown = errors.New("dial tcp 10.0.0.5:5432: connection refused")

type brokenSessionStore struct {
	store.SessionStore
}

func (brokenSessionStore) Create(context.Context, *models.Session) error { return errDatabaseDown }

func (brokenSessionStore) Get(context.Context, string) (*models.Session, error) {
	return nil, errDatabaseDown
}

type brokenUserStore struct {
	store.UserStore
}

func (brokenUserStore) GetByUsername(context.Context, string) (*models.User, error) {
	return nil, errDatabaseDown
}

func doRequest(h http.Handler, method, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/auth", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestLogin(t *testing.T) {
	t.Run("valid credentials set the session cookie", func(t *testing.T) {
		env := createTestHandler(t)

		rec := doRequest(env.handler, http.MethodPost, `{"username":"alice","password":"s3cretpw"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		require.Equal(t, true, body["success"])
		require.Equal(t, "Login successful", body["message"])
		require.Equal(t, "alice", body["username"])

		cookie := sessionCookie(rec)
		require.NotNil(t, cookie)
		require.NotEmpty(t, cookie.Value)
		require.True(t, cookie.HttpOnly)
		require.True(t, cookie.Secure)
		require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
		require.Equal(t, "/", cookie.Path)
		require.Equal(t, 86400, cookie.MaxAge)
		require.Equal(t, 1, env.sessions.Len())
	})

	t.Run("wrong password creates no session", func(t *testing.T) {
		env := createTestHandler(t)

		rec := doRequest(env.handler, http.MethodPost, `{"username":"alice","password":"wrongpass"}`)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decode(t, rec)
		require.Equal(t, false, body["success"])
		require.Equal(t, "Invalid credentials", body["message"])
		require.Nil(t, sessionCookie(rec))
		require.Equal(t, 0, env.sessions.Len())
	})

	t.Run("unknown user", func(t *testing.T) {
		env := createTestHandler(t)

		rec := doRequest(env.handler, http.MethodPost, `{"username":"mallory","password":"s3cretpw"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("storage failures", func(t *testing.T) {
		sessionStore := memory.NewSessionStore()
		creds := auth.NewCredentials(memory.NewUserStore(sessionStore), auth.WithBcryptCost(bcrypt.MinCost))
		_, err := creds.Provision(context.Background(), "alice", "s3cretpw")
		require.NoError(t, err)

		handlers := map[string]*Handler{
			"session store": NewHandler(creds, auth.NewSessions(brokenSessionStore{sessionStore}), true),
			"user store":    NewHandler(auth.NewCredentials(brokenUserStore{}, auth.WithBcryptCost(bcrypt.MinCost)), auth.NewSessions(sessionStore), true),
		}

		for name, h := range handlers {
			t.Run(name, func(t *testing.T) {
				rec := doRequest(h, http.MethodPost, `{"username":"alice","password":"s3cretpw"}`)

				require.Equal(t, http.StatusInternalServerError, rec.Code)
				require.JSONEq(t, `{"success":false,"message":"Server error"}`, rec.Body.String())
				require.NotContains(t, rec.Body.String(), "connection refused")
				require.Nil(t, sessionCookie(rec))
			})
		}
		require.Equal(t, 0, sessionStore.Len())

		// session lookups fail closed
		rec := doRequest(handlers["session store"], http.MethodGet, "", &http.Cookie{Name: auth.SessionCookieName, Value: "tok"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.JSONEq(t, `{"authenticated":false}`, rec.Body.String())
	})

	t.Run("missing fields", func(t *testing.T) {
		env := createTestHandler(t)

		for _, body := range []string{`{}`, `{"username":"alice"}`, `{"password":"s3cretpw"}`, ``, `not json`} {
			rec := doRequest(env.handler, http.MethodPost, body)
			require.Equal(t, http.StatusBadRequest, rec.Code, body)
			require.Equal(t, false, decode(t, rec)["success"])
		}
	})
}

func TestStatus(t *testing.T) {
	env := createTestHandler(t)

	rec := doRequest(env.handler, http.MethodGet, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, false, decode(t, rec)["authenticated"])

	login := doRequest(env.handler, http.MethodPost, `{"username":"alice","password":"s3cretpw"}`)
	cookie := sessionCookie(login)
	require.NotNil(t, cookie)

	rec = doRequest(env.handler, http.MethodGet, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, true, body["authenticated"])
	require.Equal(t, "alice", body["username"])
}

func TestLogout(t *testing.T) {
	env := createTestHandler(t)

	login := doRequest(env.handler, http.MethodPost, `{"username":"alice","password":"s3cretpw"}`)
	cookie := sessionCookie(login)
	require.NotNil(t, cookie)

	rec := doRequest(env.handler, http.MethodDelete, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Logout successful", decode(t, rec)["message"])

	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)
	require.Less(t, cleared.MaxAge, 0)
	require.Equal(t, 0, env.sessions.Len())

	// the old token no longer authenticates
	rec = doRequest(env.handler, http.MethodGet, "", cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// logging out without a session still succeeds
	rec = doRequest(env.handler, http.MethodDelete, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	env := createTestHandler(t)

	rec := doRequest(env.handler, http.MethodPut, "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "Method not allowed", decode(t, rec)["message"])
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","service":"auth"}`, rec.Body.String())
}
