package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/birbparty/shelf/internal/cleanup"
	"github.com/birbparty/shelf/internal/storage"
)

func openArchive() (*storage.ExportArchiver, error) {
	scfg, err := storage.NewConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return storage.NewExportArchiver(scfg)
}

func newArchiveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage exports archived in object storage",
	}
	cmd.AddCommand(newArchiveListCmd(), newArchivePruneCmd(app))
	return cmd
}

func newArchiveListCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			archiver, err := openArchive()
			if err != nil {
				return err
			}

			var keys []string
			if date == "" {
				keys, err = archiver.ListAll(cmd.Context())
			} else {
				day, parseErr := time.Parse("2006-01-02", date)
				if parseErr != nil {
					return fmt.Errorf("invalid --date: %w", parseErr)
				}
				keys, err = archiver.List(cmd.Context(), day)
			}
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "only exports archived on this day (YYYY-MM-DD)")
	return cmd
}

func newArchivePruneCmd(app *App) *cobra.Command {
	ccfg := cleanup.LoadConfig()
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete exports older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			archiver, err := openArchive()
			if err != nil {
				return err
			}

			report, err := cleanup.NewService(archiver, ccfg, app.Logger).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			verb := "Pruned"
			if ccfg.DryRun {
				verb = "Would prune"
			}
			for _, key := range report.Pruned {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, key)
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d export(s) could not be deleted", len(report.Failed))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&ccfg.Retention, "retention", ccfg.Retention, "keep exports this long")
	cmd.Flags().BoolVar(&ccfg.DryRun, "dry-run", ccfg.DryRun, "report what would be deleted")
	return cmd
}
