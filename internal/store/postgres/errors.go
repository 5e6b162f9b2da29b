package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/msmm/aitools/internal/store"
)

const (
	usernameConstraint    = "users_username_key"
	sessionUserConstraint = "sessions_user_id_fkey"
)

// errorClasses groups server error codes that callers treat alike.
var errorClasses = map[string]string{
	pgerrcode.SerializationFailure:                    "transaction conflict (retryable)",
	pgerrcode.DeadlockDetected:                        "transaction conflict (retryable)",
	pgerrcode.ConnectionException:                     "database connection error",
	pgerrcode.ConnectionDoesNotExist:                  "database connection error",
	pgerrcode.ConnectionFailure:                       "database connection error",
	pgerrcode.CannotConnectNow:                        "database connection error",
	pgerrcode.SQLClientUnableToEstablishSQLConnection: "database connection error",
	pgerrcode.AdminShutdown:                           "database server unavailable",
	pgerrcode.CrashShutdown:                           "database server unavailable",
	pgerrcode.QueryCanceled:                           "query canceled",
	pgerrcode.TooManyConnections:                      "database resource limit",
	pgerrcode.InsufficientResources:                   "database resource limit",
	pgerrcode.DiskFull:                                "database resource limit",
	pgerrcode.OutOfMemory:                             "database resource limit",
}

// isUniqueViolation reports whether err is a unique violation of constraint.
// An empty constraint matches any unique violation.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// mapPostgresError turns server errors into store sentinels where one
// exists and otherwise annotates them with their class. Errors that did not
// come from the server are returned unchanged.
func mapPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) {
		return err
	}

	switch {
	case pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == usernameConstraint:
		return store.ErrUserAlreadyExists
	case pgErr.Code == pgerrcode.ForeignKeyViolation && pgErr.ConstraintName == sessionUserConstraint:
		// user deleted between login and session insert
		return fmt.Errorf("%w: %s", store.ErrUserNotFound, pgErr.Detail)
	case pgErr.Code == pgerrcode.UniqueViolation, pgErr.Code == pgerrcode.CheckViolation, pgErr.Code == pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("constraint %s violated: %w", pgErr.ConstraintName, err)
	}

	if class, ok := errorClasses[pgErr.Code]; ok {
		return fmt.Errorf("%s: %w", class, err)
	}

	return fmt.Errorf("postgres error [%s] %s: %w", pgErr.Code, pgErr.Message, err)
}
