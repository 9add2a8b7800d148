package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/clustervision/lunactl/internal/session"
)

func (e *env) newLoginCmd() *cobra.Command {
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the daemon password in the system keyring",
		Long: `Verify a username and password against the daemon and store the password
in the system keyring for later invocations.

The password is taken from LUNA_PASSWORD, from stdin with --password-stdin,
or prompted for on the terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			username := strings.TrimSpace(a.Session.Username())
			if username == "" {
				return fmt.Errorf("no username configured; pass --username or set api.username")
			}

			password, err := e.readPassword(username, passwordStdin)
			if err != nil {
				return err
			}

			sess := session.New(session.Options{
				Auth:      a.Client,
				CachePath: a.Config.TokenFile,
				Endpoint:  a.Client.BaseURL(),
				Username:  username,
				Password:  password,
				Logger:    a.Logger,
			})
			if _, err := sess.Refresh(cmd.Context()); err != nil {
				return err
			}
			if err := session.StorePassword(username, password); err != nil {
				a.Presenter.Error(fmt.Sprintf("password not stored: %v", err))
			}
			a.Presenter.Success(fmt.Sprintf("Logged in as %s.", username))
			return nil
		},
	}
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func (e *env) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached token and stored password",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			if err := a.Session.Logout(); err != nil {
				return err
			}
			a.Presenter.Success(fmt.Sprintf("Logged out %s.", a.Session.Username()))
			return nil
		},
	}
}

// readPassword picks the first available source: LUNA_PASSWORD, stdin when
// asked to, a form when both ends are terminals, then a bare prompt.
func (e *env) readPassword(username string, fromStdin bool) (string, error) {
	if password := e.v.GetString("password"); password != "" {
		return password, nil
	}
	if fromStdin {
		line, err := bufio.NewReader(e.opts.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		return nonEmptyPassword(strings.TrimRight(line, "\r\n"))
	}

	stdin, ok := e.opts.Stdin.(*os.File)
	if !ok || !term.IsTerminal(int(stdin.Fd())) {
		return "", fmt.Errorf("no terminal to prompt on; use --password-stdin or LUNA_PASSWORD")
	}

	if isTerminal(e.opts.Stdout) {
		var password string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Password for " + username).
					Value(&password).
					Password(true).
					Validate(func(s string) error {
						if s == "" {
							return errors.New("password cannot be empty")
						}
						return nil
					}),
			),
		)
		if err := form.Run(); err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return nonEmptyPassword(password)
	}

	fmt.Fprintf(e.opts.Stderr, "Password for %s: ", username)
	raw, err := term.ReadPassword(int(stdin.Fd()))
	fmt.Fprintln(e.opts.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return nonEmptyPassword(string(raw))
}

func nonEmptyPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return password, nil
}

func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}
