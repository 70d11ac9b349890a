package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/spf13/cobra"
)

func newLoginCommand(a *app) *cobra.Command {
	var email, password, from string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with any email and password",
		Example: `  gogate login --email alice@example.com --password secret
  gogate login --email alice@example.com --password secret --from /dashboard`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.store.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logged in as %s <%s>\n", sess.Identity.DisplayName, sess.Identity.Email)
			fmt.Fprintf(out, "Continue to %s\n", a.store.ResolveDestination(from))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (not checked)")
	cmd.Flags().StringVar(&from, "from", "", "pending destination remembered by the guard")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newSignupCommand(a *app) *cobra.Command {
	var email, password, name, from string

	cmd := &cobra.Command{
		Use:     "signup",
		Short:   "Create an account and log in",
		Example: `  gogate signup --email bob@x.io --password pw --name "Bob Smith"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.store.Signup(cmd.Context(), email, password, name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Signed up as %s <%s>\n", sess.Identity.DisplayName, sess.Identity.Email)
			fmt.Fprintf(out, "Continue to %s\n", a.store.ResolveDestination(from))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (not checked)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&from, "from", "", "pending destination remembered by the guard")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.store.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newStatusCommand(a *app) *cobra.Command {
	var route string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if err := printStatus(out, a.store); err != nil {
				return err
			}
			if err := printStorage(out, a.store.StorageStatus(cmd.Context())); err != nil {
				return err
			}
			if route != "" {
				d := a.store.CheckRoute(cmd.Context(), route)
				if d.Allow {
					fmt.Fprintf(out, "Route %s: allowed\n", route)
				} else {
					fmt.Fprintf(out, "Route %s: redirect to %s\n", route, d.Target)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&route, "route", "", "also report whether this location would be allowed")

	return cmd
}

func printStatus(out io.Writer, store *goGate.Store) error {
	sess, ok := store.Session()
	if !ok {
		fmt.Fprintln(out, "Not logged in")
		return nil
	}

	fmt.Fprintf(out, "Logged in as %s <%s>\n", sess.Identity.DisplayName, sess.Identity.Email)
	fmt.Fprintf(out, "User ID: %s\n", sess.Identity.ID)
	fmt.Fprintf(out, "Token: %s\n", sess.Token)

	cfg := store.Config()
	if cfg.Token.Mode != goGate.TokenJWT {
		return nil
	}

	m, err := goGate.NewJWTManager(cfg.Token)
	if err != nil {
		return err
	}
	claims, err := m.Parse(sess.Token)
	if err != nil {
		return errors.Join(errors.New("stored token does not verify"), err)
	}
	fmt.Fprintf(out, "Token ID: %s\n", claims.ID)
	if claims.IssuedAt != nil {
		fmt.Fprintf(out, "Issued: %s\n", claims.IssuedAt.Time.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

func printStorage(out io.Writer, st goGate.StorageStatus) error {
	where := st.Backend
	if st.Location != "" {
		where += " " + st.Location
	}
	fmt.Fprintf(out, "Storage: %s (keys %s, %s)\n", where, st.TokenKey, st.IdentityKey)
	if st.Err != nil {
		return fmt.Errorf("storage unreachable: %w", st.Err)
	}
	if st.Latency > 0 {
		fmt.Fprintf(out, "Storage ping: %s\n", st.Latency.Round(time.Microsecond))
	}
	return nil
}
