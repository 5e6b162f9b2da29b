package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/msmm/aitools/internal/models"
	"github.com/msmm/aitools/internal/store"
	"github.com/rs/zerolog/log"
)

// UserStore implements store.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new PostgreSQL-backed user store.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{
		pool: pool,
	}
}

// Create inserts a user and populates UserID and CreatedAt from the database.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING user_id, created_at
	`

	err := s.pool.QueryRow(ctx, query, user.Username, user.PasswordHash).Scan(&user.UserID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, usernameConstraint) {
			return store.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", mapPostgresError(err))
	}

	log.Debug().
		Int64("user_id", user.UserID).
		Str("username", user.Username).
		Msg("Created user")

	return nil
}

// GetByUsername retrieves a user by username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT user_id, username, password_hash, created_at, last_login
		FROM users
		WHERE username = $1
	`

	var user models.User
	err := s.pool.QueryRow(ctx, query, username).Scan(
		&user.UserID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.LastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", mapPostgresError(err))
	}

	return &user, nil
}

// TouchLastLogin records a successful login.
func (s *UserStore) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	query := `UPDATE users SET last_login = $2 WHERE user_id = $1`

	result, err := s.pool.Exec(ctx, query, userID, at)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}

	return nil
}

// Delete removes a user. The sessions foreign key cascades.
func (s *UserStore) Delete(ctx context.Context, username string) error {
	query := `DELETE FROM users WHERE username = $1`

	result, err := s.pool.Exec(ctx, query, username)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}

	log.Debug().Str("username", username).Msg("Deleted user")

	return nil
}

// List returns all users ordered by username.
func (s *UserStore) List(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT user_id, username, password_hash, created_at, last_login
		FROM users
		ORDER BY username
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.UserID,
			&user.Username,
			&user.PasswordHash,
			&user.CreatedAt,
			&user.LastLogin,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}
