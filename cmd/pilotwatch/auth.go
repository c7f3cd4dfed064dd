package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/kiranshivaraju/pilotwatch/pkg/models"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in; run `pilotwatch login` first")

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Long: `Log in with email and password. The password may also come from
PILOT_PASSWORD so it stays out of shell history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("PILOT_PASSWORD")
			}
			resp, err := a.client.Login(cmd.Context(), models.LoginRequest{Email: email, Password: password})
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if err := a.session.Establish(cmd.Context(), *resp); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			fmt.Fprintf(a.stdout, "%s Logged in as %s\n", successStyle.Render("✓"), resp.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (or set PILOT_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.loggingOut = true
			if err := a.session.Teardown(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			fmt.Fprintln(a.stdout, "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			profile, err := a.client.Profile(cmd.Context())
			if err != nil {
				return fmt.Errorf("profile: %w", err)
			}
			u := profile.User
			fmt.Fprintln(a.stdout, titleStyle.Render(u.Email))
			fmt.Fprintf(a.stdout, "  id       %s\n", u.ID)
			if u.CompanyName != "" {
				fmt.Fprintf(a.stdout, "  company  %s\n", u.CompanyName)
			}
			fmt.Fprintf(a.stdout, "  plan     %s\n", u.Plan)
			return nil
		},
	}
}
