package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/msmm/aitools/internal/auth"
)

// protectedUsername needs --yes before it can be deleted.
const protectedUsername = "admin"

type DeleteCmd struct {
	Username string `arg:"" help:"Username to delete"`
	Yes      bool   `help:"Confirm deleting the admin user" short:"y"`
}

func (d *DeleteCmd) Run(ctx context.Context, globals *Globals) error {
	if err := d.confirm(); err != nil {
		return err
	}

	creds, closeFn, err := globals.credentials(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	return d.run(ctx, creds, globals)
}

func (d *DeleteCmd) confirm() error {
	if d.Username == protectedUsername && !d.Yes {
		return fmt.Errorf("refusing to delete %q without --yes", protectedUsername)
	}
	return nil
}

func (d *DeleteCmd) run(ctx context.Context, creds *auth.Credentials, globals *Globals) error {
	if err := d.confirm(); err != nil {
		return err
	}

	err := creds.Remove(ctx, d.Username)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		return fmt.Errorf("user %q not found", d.Username)
	case err != nil:
		return fmt.Errorf("failed to delete user %q: %w", d.Username, err)
	}

	fmt.Fprintf(globals.stdout(), "User %q deleted\n", d.Username)
	return nil
}
