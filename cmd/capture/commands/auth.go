package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/benvon/capture/internal/auth"
	"github.com/benvon/capture/internal/session"
	"github.com/spf13/cobra"
)

// settlePollInterval is how often a command checks whether the session reacted to a sign-in or sign-out.
const settlePollInterval = 25 * time.Millisecond

// NewAuthCmd creates the auth command group
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in to sync with the remote store",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthSignupCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthStatusCmd())

	return cmd
}

type credentialFlags struct {
	email    string
	password string
}

func (c *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.email, "email", "", "Account email (required)")
	cmd.Flags().StringVar(&c.password, "password", "", "Account password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
}

func (c *credentialFlags) resolve(in io.Reader, out io.Writer) (string, string, error) {
	email := strings.TrimSpace(c.email)
	if email == "" {
		return "", "", fmt.Errorf("--email is required")
	}
	password := c.password
	if password == "" {
		fmt.Fprint(out, "Password: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return "", "", fmt.Errorf("password is required")
	}
	return email, password, nil
}

// waitForState polls the session until it reaches want or ctx ends.
func waitForState(ctx context.Context, ctrl *session.Controller, want session.State) bool {
	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()
	for {
		if ctrl.State() == want {
			return true
		}
		select {
		case <-ctx.Done():
			return ctrl.State() == want
		case <-ticker.C:
		}
	}
}

// settle waits for the session to react to a sign-in and reports the result.
func settle(cmd *cobra.Command, app *App, user auth.User) {
	ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.FetchTimeout+app.Config.SessionWatchdog)
	defer cancel()

	w := cmd.OutOrStdout()
	if waitForState(ctx, app.Session, session.StateAuthenticated) {
		snap := app.Coordinator.Snapshot()
		fmt.Fprintf(w, "%s as %s (%d projects, %d open tasks)\n",
			successStyle.Render("signed in"), user.Email, len(snap.Projects), len(snap.Tasks))
		return
	}
	fmt.Fprintf(w, "%s as %s, but the remote state could not be loaded; working locally\n",
		warningStyle.Render("signed in"), user.Email)
}

func newAuthLoginCmd() *cobra.Command {
	var creds credentialFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in; creations made offline are uploaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			email, password, err := creds.resolve(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			sess, err := app.Provider.SignIn(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("sign in failed: %w", err)
			}
			settle(cmd, app, sess.User)
			return nil
		},
	}
	creds.register(cmd)

	return cmd
}

func newAuthSignupCmd() *cobra.Command {
	var creds credentialFlags

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			email, password, err := creds.resolve(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			sess, err := app.Provider.SignUp(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("sign up failed: %w", err)
			}
			settle(cmd, app, sess.User)
			return nil
		},
	}
	creds.register(cmd)

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and return to the local data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			if err := app.Provider.SignOut(cmd.Context()); err != nil {
				return fmt.Errorf("sign out failed: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.SessionWatchdog)
			defer cancel()
			waitForState(ctx, app.Session, session.StateLocal)

			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session and sync status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			switch {
			case !app.Config.RemoteConfigured():
				fmt.Fprintln(w, "Mode:    local only (remote sync not configured)")
			case app.Session.State() == session.StateAuthenticated:
				user := app.Session.User()
				fmt.Fprintf(w, "Mode:    %s as %s\n", successStyle.Render("synced"), user.Email)
			case app.Session.User() != nil:
				fmt.Fprintf(w, "Mode:    %s (signed in as %s, remote unreachable)\n",
					warningStyle.Render("offline"), app.Session.User().Email)
			default:
				fmt.Fprintln(w, "Mode:    local (signed out)")
			}

			projects, tasks := app.Pending.Len()
			fmt.Fprintf(w, "Pending: %d projects, %d tasks waiting for sync\n", projects, tasks)
			fmt.Fprintf(w, "Store:   %s\n", app.Config.Store)
			return nil
		},
	}
}
