package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filippo.io/csrf"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/msmm/aitools/internal/auth"
	"github.com/msmm/aitools/internal/bootstrap"
	httpmiddleware "github.com/msmm/aitools/internal/http"
	"github.com/msmm/aitools/internal/logger"
	"github.com/msmm/aitools/internal/login"
	"github.com/msmm/aitools/internal/store"
	memorystore "github.com/msmm/aitools/internal/store/memory"
	postgresstore "github.com/msmm/aitools/internal/store/postgres"
	"github.com/msmm/aitools/internal/telemetry"
	"github.com/msmm/aitools/internal/website"
	"github.com/msmm/aitools/internal/writeup"
)

const shutdownTimeout = 15 * time.Second

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"AITOOLS_LISTEN"`
	Cert   string `help:"path to TLS cert file, plain HTTP when empty" default:"" env:"AITOOLS_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"AITOOLS_TLS_KEY"`

	TrustProxy bool `help:"take the client IP from X-Forwarded-For / X-Real-IP" default:"false" env:"AITOOLS_TRUST_PROXY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:8080" env:"AITOOLS_CORS_ORIGINS"`

	// Session configuration
	SessionTTL    time.Duration `help:"session lifetime" default:"24h" env:"AITOOLS_SESSION_TTL"`
	SweepSchedule string        `help:"cron schedule for removing expired sessions" default:"@every 1h" env:"AITOOLS_SWEEP_SCHEDULE"`
	SecureCookie  bool          `help:"mark the session cookie Secure" default:"true" negatable:"" env:"AITOOLS_SECURE_COOKIE"`
	SeedFile      string        `help:"YAML file of users to create on startup" default:"" env:"AITOOLS_SEED_FILE" type:"path"`

	Tracing bool `help:"enable OpenTelemetry metrics and tracing" default:"false" env:"AITOOLS_TRACING"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"AITOOLS_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Writeup       WriteupFlags       `embed:"" prefix:"writeup-"`
}

type PostgresStoreFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`
	Schema     string `help:"schema holding the users and sessions tables" default:"" env:"AITOOLS_POSTGRES_SCHEMA"`

	MaxConns        int32         `help:"maximum number of pooled connections" default:"20"`
	MinConns        int32         `help:"minimum number of pooled connections" default:"2"`
	MaxConnLifetime time.Duration `help:"recycle connections older than this" default:"1h"`
	MaxConnIdleTime time.Duration `help:"close connections idle longer than this" default:"30m"`

	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"AITOOLS_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (s *PostgresStoreFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:      s.ConnString,
		Schema:          s.Schema,
		MaxConns:        s.MaxConns,
		MinConns:        s.MinConns,
		MaxConnLifetime: s.MaxConnLifetime,
		MaxConnIdleTime: s.MaxConnIdleTime,
		ApplicationName: "aitools-server",
	}
}

// WriteupFlags configures the text generation backend and document template.
type WriteupFlags struct {
	APIKey             string        `help:"Gemini API key, generation is disabled when empty" env:"GEMINI_API_KEY"`
	Model              string        `help:"Gemini model" default:"gemini-2.5-flash" env:"AITOOLS_WRITEUP_MODEL"`
	QuoteTimeout       time.Duration `help:"timeout for quote extraction calls" default:"20s"`
	DescriptionTimeout time.Duration `help:"timeout for description calls" default:"45s"`
	Template           string        `help:"docx template with {{ field }} placeholders, built-in layout when empty" default:"" env:"AITOOLS_WRITEUP_TEMPLATE" type:"path"`
}

func (c *ServerCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "aitools-server", Version: globals.Version})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Failed to shutdown telemetry")
				}
			}()
		}
	}

	userStore, sessionStore, closeStores, err := c.createStores(ctx, log)
	if err != nil {
		return err
	}
	defer closeStores()

	credentials := auth.NewCredentials(userStore)
	sessions := auth.NewSessions(sessionStore, auth.WithTTL(c.SessionTTL))

	seeded, err := bootstrap.Bootstrap(ctx, bootstrap.Config{Credentials: credentials, SeedFile: c.SeedFile})
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	if c.SeedFile != "" {
		log.Info().Strs("created", seeded.Created).Strs("existing", seeded.Existing).Msg("Seed users processed")
	}

	sweeper, err := auth.NewSweeper(ctx, sessions, c.SweepSchedule)
	if err != nil {
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}
	defer sweeper.Stop()

	writeupHandler, err := c.createWriteup(ctx, log)
	if err != nil {
		return err
	}

	handler := c.routes(credentials, sessions, writeupHandler, log)

	srv := newHTTPServer(c.Listen, handler, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.serve(srv, log)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return <-errCh
}

func (c *ServerCmd) serve(srv *http.Server, log zerolog.Logger) error {
	var err error
	if c.Cert != "" || c.Key != "" {
		if c.Cert == "" || c.Key == "" {
			return errors.New("both TLS certificate and key are required (--cert and --key)")
		}
		if _, statErr := os.Stat(c.Cert); statErr != nil {
			return fmt.Errorf("TLS certificate not found at %s: %w", c.Cert, statErr)
		}
		if _, statErr := os.Stat(c.Key); statErr != nil {
			return fmt.Errorf("TLS key not found at %s: %w", c.Key, statErr)
		}
		log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
		err = srv.ListenAndServeTLS(c.Cert, c.Key)
	} else {
		if c.SecureCookie {
			log.Warn().Msg("Serving plain HTTP with Secure cookies, browsers will only send them through a TLS proxy")
		}
		log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
		err = srv.ListenAndServe()
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// routes builds the full handler chain: public auth and health endpoints,
// session protected writeup API and pages, CORS for the API and CSRF for pages.
func (c *ServerCmd) routes(credentials *auth.Credentials, sessions *auth.Sessions, writeupHandler *writeup.Handler, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	requireSession := auth.RequireSession(sessions, website.LoginPath)

	// Public routes
	mux.Handle("/api/auth", login.NewHandler(credentials, sessions, c.SecureCookie))
	mux.HandleFunc("GET /health", login.Health)

	// Protected routes
	writeupMux := http.NewServeMux()
	writeupHandler.Register(writeupMux, "/api/writeup")
	mux.Handle("/api/writeup/", requireSession(writeupMux))
	website.Register(mux, requireSession)

	protection := csrf.New()
	apiHandler := withCORS(c.CORSOrigins, mux)
	pageHandler := httpmiddleware.SecurityHeaders()(protection.Handler(mux))

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.IsAPIRoute(r.URL.Path) {
			apiHandler.ServeHTTP(w, r)
		} else {
			pageHandler.ServeHTTP(w, r)
		}
	})
	handler = httpmiddleware.ClientIPMiddleware(c.TrustProxy)(handler)
	return logger.RequestLogger(log)(handler)
}

// createStores returns the user and session stores for the configured
// backend along with a function releasing their resources.
func (c *ServerCmd) createStores(ctx context.Context, log zerolog.Logger) (store.UserStore, store.SessionStore, func(), error) {
	switch c.StoreType {
	case "postgres":
		if err := c.PostgresStore.Validate(); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to validate postgres flags: %w", err)
		}

		pool, err := postgresstore.NewPool(ctx, c.PostgresStore.poolConfig())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		log.Info().Str("schema", c.PostgresStore.Schema).Msg("Using PostgreSQL stores")
		return postgresstore.NewUserStore(pool), postgresstore.NewSessionStore(pool), pool.Close, nil

	default:
		sessions := memorystore.NewSessionStore()
		log.Warn().Msg("Using in-memory stores, users and sessions are lost on restart")
		return memorystore.NewUserStore(sessions), sessions, func() {}, nil
	}
}

func (c *ServerCmd) createWriteup(ctx context.Context, log zerolog.Logger) (*writeup.Handler, error) {
	var gen writeup.Generator
	if c.Writeup.APIKey != "" {
		g, err := writeup.NewGenAIGenerator(ctx, c.Writeup.APIKey, c.Writeup.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create text generator: %w", err)
		}
		gen = g
		log.Info().Str("model", g.Name()).Msg("Text generation enabled")
	} else {
		log.Warn().Msg("No Gemini API key configured, quotes fall back to text search and descriptions are disabled")
	}

	tmpl, err := writeup.LoadTemplate(c.Writeup.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to load document template: %w", err)
	}

	writer := writeup.NewWriter(gen, writeup.WithTimeouts(c.Writeup.QuoteTimeout, c.Writeup.DescriptionTimeout))
	return writeup.NewHandler(writer, tmpl), nil
}

// withCORS adds CORS support to the API handlers.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true, // Required for cookie-based authentication
	})
	return middleware.Handler(h)
}
