// Package cli implements the gogate command: a terminal front end for the
// session store and a small HTML demo server.
package cli

import (
	"context"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/spf13/cobra"
)

// app carries state shared by every subcommand.
type app struct {
	envFile  string
	settings settings
	flags    settings

	store   *goGate.Store
	cleanup func()
}

// NewRootCommand returns the gogate command tree.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "gogate",
		Short: "Simulated login, signup, and guarded routes",
		Long: `gogate keeps one client session: log in or sign up (any credentials are
accepted after a short simulated delay), inspect it, log out, or serve a demo
site whose restricted pages send visitors to the login form and back.

Configuration is read from flags, GOGATE_* environment variables, and an
optional .env file, in that order of precedence.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.open,
		PersistentPostRunE: a.close,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading GOGATE_* variables")
	pf.StringVar(&a.flags.Storage, "storage", "", "session storage: file, redis, or memory-redis")
	pf.StringVar(&a.flags.StateFile, "state-file", "", "session file for --storage=file")
	pf.StringVar(&a.flags.RedisAddr, "redis-addr", "", "redis address for --storage=redis")
	pf.StringVar(&a.flags.TokenMode, "token-mode", "", "token format: timestamp or jwt")
	pf.DurationVar(&a.flags.Delay, "delay", 0, "simulated authentication delay")
	pf.BoolVar(&a.flags.Audit, "audit", false, "write audit events as JSON lines to stderr")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newLoginCommand(a),
		newSignupCommand(a),
		newLogoutCommand(a),
		newStatusCommand(a),
		newServeCommand(a),
	)

	return root, a
}

// Execute runs the root command with ctx. The store is closed even when the
// command fails.
func Execute(ctx context.Context) error {
	root, a := newRootCommand()
	defer func() { _ = a.close(nil, nil) }()
	return root.ExecuteContext(ctx)
}

func (a *app) open(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(a.envFile)
	if err != nil {
		return err
	}
	a.settings = a.applyFlags(cmd, s)

	store, cleanup, err := openStore(cmd.Context(), a.settings, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.store = store
	a.cleanup = cleanup
	return nil
}

func (a *app) close(*cobra.Command, []string) error {
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
	return nil
}

// applyFlags overlays only the flags the user actually set.
func (a *app) applyFlags(cmd *cobra.Command, s settings) settings {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("storage") {
		s.Storage = a.flags.Storage
	}
	if changed("state-file") {
		s.StateFile = a.flags.StateFile
	}
	if changed("redis-addr") {
		s.RedisAddr = a.flags.RedisAddr
	}
	if changed("token-mode") {
		s.TokenMode = a.flags.TokenMode
	}
	if changed("delay") {
		s.Delay = a.flags.Delay
	}
	if changed("audit") {
		s.Audit = a.flags.Audit
	}
	if changed("log-level") {
		s.LogLevel = a.flags.LogLevel
	}
	if changed("addr") {
		s.Addr = a.flags.Addr
	}
	return s
}

const shutdownTimeout = 10 * time.Second
