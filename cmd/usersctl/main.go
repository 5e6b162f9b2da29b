package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/msmm/aitools/cmd/usersctl/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug      bool   `help:"Enable debug mode." env:"AITOOLS_DEBUG"`
		ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING" required:""`
		Schema     string `help:"schema holding the users and sessions tables" default:"" env:"AITOOLS_POSTGRES_SCHEMA"`
		Version    kong.VersionFlag

		Add    commands.AddCmd    `cmd:"" help:"Create a user"`
		List   commands.ListCmd   `cmd:"" help:"List users"`
		Delete commands.DeleteCmd `cmd:"" help:"Delete a user and all of their sessions"`
	}
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("usersctl"),
		kong.Description("Manage users of the MSMM AI tools."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:      cli.Debug,
		Version:    version,
		ConnString: cli.ConnString,
		Schema:     cli.Schema,
	})
	cmd.FatalIfErrorf(err)
}
