package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var schemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PoolConfig configures the pgx pool shared by the user and session stores.
// Zero values are replaced by ApplyDefaults.
type PoolConfig struct {
	// ConnString is a postgres:// URL or key=value DSN.
	ConnString string

	// Schema, when set, is created if missing and placed first on the
	// search_path of every connection.
	Schema string

	// ApplicationName is reported in pg_stat_activity.
	ApplicationName string

	MaxConns          int32         // default 20
	MinConns          int32         // default 2
	MaxConnLifetime   time.Duration // default 1h
	MaxConnIdleTime   time.Duration // default 30m
	HealthCheckPeriod time.Duration // default 1m
	ConnectTimeout    time.Duration // default 10s
}

// Validate checks that the pool configuration is valid.
func (c *PoolConfig) Validate() error {
	if c.ConnString == "" {
		return errors.New("connection string is required")
	}
	if c.Schema != "" && !schemaNamePattern.MatchString(c.Schema) {
		return fmt.Errorf("invalid schema name %q", c.Schema)
	}
	if c.MaxConns < 0 || c.MinConns < 0 {
		return errors.New("connection counts must not be negative")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min conns (%d) exceeds max conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *PoolConfig) ApplyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 20
	}
	if c.MinConns == 0 {
		c.MinConns = min(2, c.MaxConns)
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = time.Minute
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "aitools"
	}
}

// NewPool builds the pool and pings the server so configuration errors
// surface at startup rather than on the first login.
func NewPool(ctx context.Context, cfg *PoolConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, errors.New("pool config is required")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName

	if cfg.Schema != "" {
		poolConfig.AfterConnect = useSchema(cfg.Schema)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Debug().
		Str("host", poolConfig.ConnConfig.Host).
		Str("database", poolConfig.ConnConfig.Database).
		Str("schema", cfg.Schema).
		Int32("max_conns", cfg.MaxConns).
		Msg("PostgreSQL pool ready")

	return pool, nil
}

func useSchema(schema string) func(context.Context, *pgx.Conn) error {
	ident := pgx.Identifier{schema}.Sanitize()
	return func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+ident); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", schema, err)
		}
		if _, err := conn.Exec(ctx, "SET search_path TO "+ident+", public"); err != nil {
			return fmt.Errorf("failed to set search_path: %w", err)
		}
		return nil
	}
}
