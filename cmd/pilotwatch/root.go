package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kiranshivaraju/pilotwatch/internal/config"
	"github.com/kiranshivaraju/pilotwatch/internal/gateway"
	"github.com/kiranshivaraju/pilotwatch/internal/session"
	"github.com/spf13/cobra"
)

// app is the state shared by every subcommand. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	stdout io.Writer
	stderr io.Writer

	verbose    bool
	apiURL     string
	loggingOut bool

	cfg     *config.Config
	logger  *slog.Logger
	session *session.Session
	client  *gateway.HTTPClient
	closers []func() error
}

// newRootCmd builds the command tree. The caller closes the returned app
// after execution; cobra skips post-run hooks when a command fails.
func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "pilotwatch",
		Short: "Amazon Pilot competitor analysis client",
		Long: `pilotwatch talks to the Amazon Pilot API: log in, manage competitor
analysis groups and generate competitive positioning reports.

Configuration comes from PILOT_* environment variables. Run the sandbox
gateway (cmd/sandbox) for a local API with a demo account.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "API base URL (overrides PILOT_API_BASE_URL)")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newGroupsCmd(a),
		newReportCmd(a),
	)
	return root, a
}

// execute runs root and releases what setup opened, whatever the outcome.
func execute(ctx context.Context, root *cobra.Command, a *app) error {
	defer a.close()
	return root.ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.apiURL != "" {
		cfg.API.BaseURL = a.apiURL
	}
	a.cfg = cfg

	level, _ := cfg.Log.SlogLevel()
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	store, err := a.openStore()
	if err != nil {
		return err
	}
	a.session = session.New(store)
	if err := a.session.Init(cmd.Context()); err != nil {
		return fmt.Errorf("init session: %w", err)
	}
	a.session.OnTeardown(func() {
		if a.loggingOut {
			return
		}
		fmt.Fprintln(a.stderr, warnStyle.Render("Session expired. Run `pilotwatch login` again."))
	})

	a.client = gateway.NewHTTPClient(cfg.API.BaseURL, cfg.API.GatewayURL, a.session, cfg.API.RequestTimeout).
		WithLogger(a.logger)
	return nil
}

func (a *app) openStore() (session.TokenStore, error) {
	if a.cfg.Session.Backend != config.SessionBackendRedis {
		return session.NewFileStore(a.cfg.Session.File), nil
	}
	rs, err := session.NewRedisStore(a.cfg.Redis.URL, a.cfg.Session.Profile)
	if err != nil {
		return nil, fmt.Errorf("create redis session store: %w", err)
	}
	a.closers = append(a.closers, rs.Close)
	return rs, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil && a.logger != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// requireLogin fails fast when no session is established.
func (a *app) requireLogin() error {
	if !a.session.LoggedIn() {
		return errNotLoggedIn
	}
	return nil
}
