// Package cli implements the shelf command line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/birbparty/shelf/internal/telemetry"
	"github.com/birbparty/shelf/sdk"
)

// Exit codes
const (
	exitOK        = 0
	exitFailure   = 1
	exitAuth      = 3
	exitTransient = 4
)

type options struct {
	configPath string
	baseURL    string
	debug      bool
	push       bool
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	app := &App{}
	err := NewRootCmd(app).ExecuteContext(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if closeErr := app.Close(closeCtx); closeErr != nil {
		fmt.Fprintln(os.Stderr, "Warning:", closeErr)
	}
	_ = telemetry.Shutdown(closeCtx)

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return exitOK
}

// NewRootCmd builds the command tree around app. The app is opened before
// any subcommand runs; the caller closes it.
func NewRootCmd(app *App) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "shelf",
		Short:         "Command line client for the shelf catalogue",
		Long:          `shelf talks to a catalogue backend: sign in, browse and search products, and move the catalogue in and out as files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.Open(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default is ~/.config/shelf/config.toml)")
	flags.StringVar(&opts.baseURL, "base-url", "", "backend URL, overrides the config file")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&opts.push, "push", false, "push this run's metrics to the Pushgateway")

	root.AddCommand(
		newLoginCmd(app),
		newRegisterCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newPingCmd(app),
		newListCmd(app),
		newSearchCmd(app),
		newCreateCmd(app),
		newDeleteCmd(app),
		newExportCmd(app),
		newImportCmd(app),
		newArchiveCmd(app),
		newWatchCmd(app),
	)
	return root
}

// exitCode maps a failure onto the process exit code
func exitCode(err error) int {
	switch {
	case errors.Is(err, sdk.ErrAuthRequired), errors.Is(err, sdk.ErrSessionExpired):
		return exitAuth
	}
	switch sdk.KindOf(err) {
	case sdk.FailureAuth:
		return exitAuth
	case sdk.FailureTransient:
		return exitTransient
	}
	return exitFailure
}
