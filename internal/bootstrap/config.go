package bootstrap

import (
	"github.com/msmm/aitools/internal/auth"
)

// Config holds configuration for seeding users at startup
type Config struct {
	// Credentials provisions the seeded accounts
	Credentials *auth.Credentials

	// SeedFile is the path to a YAML file listing the users to create.
	// An empty path disables seeding.
	SeedFile string

	// Getenv resolves password_env references, defaults to os.Getenv
	Getenv func(string) string
}

// SeedFile is the YAML document read from Config.SeedFile.
//
//	users:
//	  - username: admin
//	    password_env: ADMIN_PASSWORD
//	  - username: alice
//	    password: correct-horse
type SeedFile struct {
	Users []SeedUser `yaml:"users"`
}

// SeedUser is one account to provision. PasswordEnv takes precedence over
// Password so secrets can stay out of the file.
type SeedUser struct {
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`
}

// Result reports what a seeding run did
type Result struct {
	Created  []string
	Existing []string
}
