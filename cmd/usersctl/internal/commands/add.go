package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/msmm/aitools/internal/auth"
)

type AddCmd struct {
	Username string `arg:"" help:"Username to create"`
	Password string `help:"Password, read from stdin when empty" env:"USERSCTL_PASSWORD"`
}

func (a *AddCmd) Run(ctx context.Context, globals *Globals) error {
	creds, closeFn, err := globals.credentials(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	return a.run(ctx, creds, globals)
}

func (a *AddCmd) run(ctx context.Context, creds *auth.Credentials, globals *Globals) error {
	password := a.Password
	if password == "" {
		var err error
		password, err = readPassword(globals.stdin(), globals.stdout())
		if err != nil {
			return err
		}
	}

	user, err := creds.Provision(ctx, a.Username, password)
	switch {
	case errors.Is(err, auth.ErrConflict):
		return fmt.Errorf("user %q already exists", a.Username)
	case errors.Is(err, auth.ErrValidation):
		return err
	case err != nil:
		return fmt.Errorf("failed to add user %q: %w", a.Username, err)
	}

	fmt.Fprintf(globals.stdout(), "User %q added (id %d)\n", user.Username, user.UserID)
	return nil
}

// readPassword prompts twice without echo on a terminal, otherwise reads
// the first line of in.
func readPassword(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		fmt.Fprint(out, "Confirm password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("no password given (use --password, USERSCTL_PASSWORD or stdin)")
	}
	return password, nil
}
