package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/msmm/aitools/internal/store"
	"github.com/stretchr/testify/require"
)

func TestMapPostgresError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		contains string
	}{
		{
			name:     "duplicate username",
			err:      &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: usernameConstraint},
			sentinel: store.ErrUserAlreadyExists,
		},
		{
			name:     "session for deleted user",
			err:      fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: sessionUserConstraint, Detail: "Key (user_id)=(7) is not present"}),
			sentinel: store.ErrUserNotFound,
			contains: "user_id",
		},
		{
			name:     "blank username check",
			err:      &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "users_username_not_blank"},
			contains: "constraint users_username_not_blank violated",
		},
		{
			name:     "deadlock",
			err:      &pgconn.PgError{Code: pgerrcode.DeadlockDetected},
			contains: "retryable",
		},
		{
			name:     "too many connections",
			err:      &pgconn.PgError{Code: pgerrcode.TooManyConnections},
			contains: "resource limit",
		},
		{
			name:     "unclassified",
			err:      &pgconn.PgError{Code: pgerrcode.UndefinedTable, Message: `relation "users" does not exist`},
			contains: "[42P01]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapPostgresError(tt.err)
			require.Error(t, got)
			if tt.sentinel != nil {
				require.ErrorIs(t, got, tt.sentinel)
			} else {
				var pgErr *pgconn.PgError
				require.True(t, errors.As(got, &pgErr), "server error must stay reachable")
			}
			if tt.contains != "" {
				require.ErrorContains(t, got, tt.contains)
			}
		})
	}
}

func TestMapPostgresError_PassThrough(t *testing.T) {
	require.NoError(t, mapPostgresError(nil))
	require.Same(t, context.Canceled, mapPostgresError(context.Canceled))
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: usernameConstraint}

	require.True(t, isUniqueViolation(dup, usernameConstraint))
	require.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", dup), ""))
	require.False(t, isUniqueViolation(dup, "other_key"))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: pgerrcode.CheckViolation}, ""))
	require.False(t, isUniqueViolation(errors.New("plain"), ""))
}
