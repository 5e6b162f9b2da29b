package memory

import (
	"context"
	"testing"
	"time"

	"github.com/msmm/aitools/internal/models"
	"github.com/msmm/aitools/internal/store"
	"github.com/stretchr/testify/require"
)

var _ store.UserStore = (*UserStore)(nil)

func TestMemoryUserStore_Create(t *testing.T) {
	t.Run("assigns ids in order", func(t *testing.T) {
		st := NewUserStore(nil)
		ctx := context.Background()

		alice := &models.User{Username: "alice", PasswordHash: "h1"}
		bob := &models.User{Username: "bob", PasswordHash: "h2"}

		require.NoError(t, st.Create(ctx, alice))
		require.NoError(t, st.Create(ctx, bob))

		require.Equal(t, int64(1), alice.UserID)
		require.Equal(t, int64(2), bob.UserID)
		require.False(t, alice.CreatedAt.IsZero())
	})

	t.Run("duplicate username returns error", func(t *testing.T) {
		st := NewUserStore(nil)
		ctx := context.Background()

		require.NoError(t, st.Create(ctx, &models.User{Username: "alice", PasswordHash: "h1"}))

		err := st.Create(ctx, &models.User{Username: "alice", PasswordHash: "h2"})
		require.ErrorIs(t, err, store.ErrUserAlreadyExists)

		got, err := st.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, "h1", got.PasswordHash)
	})
}

func TestMemoryUserStore_GetByUsername(t *testing.T) {
	st := NewUserStore(nil)
	ctx := context.Background()

	_, err := st.GetByUsername(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrUserNotFound)

	require.NoError(t, st.Create(ctx, &models.User{Username: "alice", PasswordHash: "h1"}))

	got, err := st.GetByUsername(ctx, "alice")
	require.NoError(t, err)

	// returned value is a copy
	got.PasswordHash = "tampered"
	again, err := st.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "h1", again.PasswordHash)
}

func TestMemoryUserStore_TouchLastLogin(t *testing.T) {
	st := NewUserStore(nil)
	ctx := context.Background()

	alice := &models.User{Username: "alice", PasswordHash: "h1"}
	require.NoError(t, st.Create(ctx, alice))

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, st.TouchLastLogin(ctx, alice.UserID, at))

	got, err := st.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	require.Equal(t, at, *got.LastLogin)

	require.ErrorIs(t, st.TouchLastLogin(ctx, 42, at), store.ErrUserNotFound)
}

func TestMemoryUserStore_DeleteCascadesSessions(t *testing.T) {
	sessions := NewSessionStore()
	st := NewUserStore(sessions)
	ctx := context.Background()

	alice := &models.User{Username: "alice", PasswordHash: "h1"}
	bob := &models.User{Username: "bob", PasswordHash: "h2"}
	require.NoError(t, st.Create(ctx, alice))
	require.NoError(t, st.Create(ctx, bob))

	now := time.Now()
	require.NoError(t, sessions.Create(ctx, &models.Session{SessionID: "a1", UserID: alice.UserID, Username: "alice", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, sessions.Create(ctx, &models.Session{SessionID: "a2", UserID: alice.UserID, Username: "alice", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, sessions.Create(ctx, &models.Session{SessionID: "b1", UserID: bob.UserID, Username: "bob", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	require.NoError(t, st.Delete(ctx, "alice"))
	require.Equal(t, 1, sessions.Len())

	_, err := sessions.Get(ctx, "b1")
	require.NoError(t, err)

	require.ErrorIs(t, st.Delete(ctx, "alice"), store.ErrUserNotFound)
}

func TestMemoryUserStore_List(t *testing.T) {
	st := NewUserStore(nil)
	ctx := context.Background()

	users, err := st.List(ctx)
	require.NoError(t, err)
	require.Empty(t, users)

	for _, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, st.Create(ctx, &models.User{Username: name, PasswordHash: "h"}))
	}

	users, err = st.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	require.Equal(t, "alice", users[0].Username)
	require.Equal(t, "bob", users[1].Username)
	require.Equal(t, "carol", users[2].Username)
}
