package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/msmm/aitools/internal/auth"
)

type ListCmd struct{}

func (l *ListCmd) Run(ctx context.Context, globals *Globals) error {
	creds, closeFn, err := globals.credentials(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	return l.run(ctx, creds, globals)
}

func (l *ListCmd) run(ctx context.Context, creds *auth.Credentials, globals *Globals) error {
	users, err := creds.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Fprintln(globals.stdout(), "No users found.")
		return nil
	}

	w := tabwriter.NewWriter(globals.stdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tCREATED\tLAST LOGIN")

	for _, u := range users {
		lastLogin := "never"
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.UserID, u.Username, u.CreatedAt.Format(time.RFC3339), lastLogin)
	}

	return w.Flush()
}
