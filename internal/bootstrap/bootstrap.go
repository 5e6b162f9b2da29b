package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/msmm/aitools/internal/auth"
)

// Bootstrap provisions every user listed in the seed file.
// Users that already exist are left untouched, so it is safe to run on every start.
func Bootstrap(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("Credentials is required")
	}
	if cfg.SeedFile == "" {
		return &Result{}, nil
	}
	if cfg.Getenv == nil {
		cfg.Getenv = os.Getenv
	}

	seed, err := LoadSeedFile(cfg.SeedFile)
	if err != nil {
		return nil, err
	}

	return SeedUsers(ctx, cfg.Credentials, seed.Users, cfg.Getenv)
}

// LoadSeedFile reads and parses a YAML seed file
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	return &seed, nil
}

// SeedUsers provisions users in order, stopping at the first failure
// other than the user already existing.
func SeedUsers(ctx context.Context, creds *auth.Credentials, users []SeedUser, getenv func(string) string) (*Result, error) {
	res := &Result{}

	for _, u := range users {
		password := u.Password
		if u.PasswordEnv != "" {
			password = getenv(u.PasswordEnv)
			if password == "" {
				return nil, fmt.Errorf("seed user %q: environment variable %s is empty", u.Username, u.PasswordEnv)
			}
		}

		_, err := creds.Provision(ctx, u.Username, password)
		switch {
		case errors.Is(err, auth.ErrConflict):
			res.Existing = append(res.Existing, u.Username)
		case err != nil:
			return nil, fmt.Errorf("seed user %q: %w", u.Username, err)
		default:
			res.Created = append(res.Created, u.Username)
			log.Info().Str("username", u.Username).Msg("Seeded user")
		}
	}

	return res, nil
}
