package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/birbparty/shelf/sdk"
)

func credentialFlags(cmd *cobra.Command, creds *sdk.Credentials) {
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "password (default $SHELF_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
}

func resolvePassword(creds *sdk.Credentials) error {
	if creds.Password == "" {
		creds.Password = os.Getenv("SHELF_PASSWORD")
	}
	if creds.Password == "" {
		return errors.New("a password is required: pass --password or set SHELF_PASSWORD")
	}
	return nil
}

func newLoginCmd(app *App) *cobra.Command {
	var creds sdk.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolvePassword(&creds); err != nil {
				return err
			}
			if _, err := app.Client.Login(cmd.Context(), creds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", creds.Username)
			return nil
		},
	}
	credentialFlags(cmd, &creds)
	return cmd
}

func newRegisterCmd(app *App) *cobra.Command {
	var creds sdk.Credentials
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolvePassword(&creds); err != nil {
				return err
			}
			if _, err := app.Client.Register(cmd.Context(), creds); err != nil {
				return err
			}
			if app.Client.Session().Snapshot().Authenticated() {
				fmt.Fprintf(cmd.OutOrStdout(), "Registered and signed in as %s\n", creds.Username)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s, run `shelf login` to sign in\n", creds.Username)
			}
			return nil
		},
	}
	credentialFlags(cmd, &creds)
	cmd.Flags().StringVar(&creds.Email, "email", "", "contact address")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var profile json.RawMessage
			if err := app.Client.CurrentUser(cmd.Context(), &profile); err != nil {
				if errors.Is(err, sdk.ErrNoProfile) {
					return fmt.Errorf("not signed in: %w", sdk.ErrAuthRequired)
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), profile)
		},
	}
}

func newPingCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the backend answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Client.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is reachable\n", app.Config.BaseURL)
			return nil
		},
	}
}
