package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/msmm/aitools/internal/auth"
	"github.com/msmm/aitools/internal/logger"
	postgresstore "github.com/msmm/aitools/internal/store/postgres"
)

type Globals struct {
	Debug      bool
	Version    string
	ConnString string
	Schema     string

	// Stdin and Stdout default to the process streams
	Stdin  io.Reader
	Stdout io.Writer
}

func (g *Globals) stdin() io.Reader {
	if g.Stdin != nil {
		return g.Stdin
	}
	return os.Stdin
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}

// credentials connects to PostgreSQL, applies pending migrations and
// returns the credential service with a function closing the pool.
func (g *Globals) credentials(ctx context.Context) (*auth.Credentials, func(), error) {
	logger.Setup(g.Debug)

	pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
		ConnString:      g.ConnString,
		Schema:          g.Schema,
		ApplicationName: "usersctl",
		MaxConns:        2,
		MinConns:        1,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := postgresstore.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return auth.NewCredentials(postgresstore.NewUserStore(pool)), pool.Close, nil
}
