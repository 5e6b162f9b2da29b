package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/msmm/aitools/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode." env:"AITOOLS_DEBUG"`
		Version kong.VersionFlag
		Server  commands.ServerCmd `cmd:"" default:"withargs" help:"Start the server (website + API)"`
	}
)

func main() {
	// .env is optional, real environment variables win
	_ = godotenv.Load()

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
