//go:build integration

package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/msmm/aitools/internal/store"
	"github.com/msmm/aitools/internal/store/postgres"
)

// setupPostgresForAuth starts PostgreSQL, applies migrations and returns
// credentials and sessions backed by it.
func setupPostgresForAuth(t *testing.T, ctx context.Context) (*Credentials, *Sessions, *testClock) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := postgres.NewPool(ctx, &postgres.PoolConfig{ConnString: connString, MaxConns: 5, MinConns: 1})
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(ctx, pool))

	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(ctx)
	})

	clock := &testClock{now: time.Now().UTC().Truncate(time.Microsecond)}
	creds := NewCredentials(postgres.NewUserStore(pool), WithBcryptCost(bcrypt.MinCost))
	creds.now = clock.Now
	sessions := NewSessions(postgres.NewSessionStore(pool), WithClock(clock.Now))

	return creds, sessions, clock
}

func TestIntegration_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	creds, sessions, clock := setupPostgresForAuth(t, ctx)

	_, err := creds.Provision(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	_, err = creds.Provision(ctx, "alice", "another-horse")
	require.ErrorIs(t, err, ErrConflict)

	_, err = creds.Verify(ctx, "alice", "wrong-horse")
	require.ErrorIs(t, err, ErrUnauthenticated)

	id, err := creds.Verify(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	session, err := sessions.Issue(ctx, *id)
	require.NoError(t, err)
	require.WithinDuration(t, clock.Now().Add(DefaultSessionTTL), session.ExpiresAt, 5*time.Second)

	resolved, err := sessions.Resolve(ctx, session.SessionID)
	require.NoError(t, err)
	require.Equal(t, id.UserID, resolved.UserID)
	require.Equal(t, "alice", resolved.Username)

	// expired on read
	clock.Advance(DefaultSessionTTL + time.Minute)
	_, err = sessions.Resolve(ctx, session.SessionID)
	require.ErrorIs(t, err, store.ErrSessionExpired)
	_, err = sessions.Resolve(ctx, session.SessionID)
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	// revoke is idempotent
	fresh, err := sessions.Issue(ctx, *id)
	require.NoError(t, err)
	require.NoError(t, sessions.Revoke(ctx, fresh.SessionID))
	require.NoError(t, sessions.Revoke(ctx, fresh.SessionID))
}

func TestIntegration_SweepAndCascade(t *testing.T) {
	ctx := context.Background()
	creds, sessions, clock := setupPostgresForAuth(t, ctx)

	_, err := creds.Provision(ctx, "bob", "correct-horse")
	require.NoError(t, err)
	id, err := creds.Verify(ctx, "bob", "correct-horse")
	require.NoError(t, err)

	old, err := sessions.Issue(ctx, *id)
	require.NoError(t, err)

	clock.Advance(DefaultSessionTTL + time.Hour)
	current, err := sessions.Issue(ctx, *id)
	require.NoError(t, err)

	removed, err := sessions.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = sessions.Resolve(ctx, old.SessionID)
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	// the middleware accepts the surviving session until the user is deleted
	handler := RequireSession(sessions, "/login.html")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	request := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/writeup/documents", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: current.SessionID})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusNoContent, request())

	require.NoError(t, creds.Remove(ctx, "bob"))
	require.Equal(t, http.StatusUnauthorized, request())
}
