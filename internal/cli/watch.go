package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/birbparty/shelf/internal/events"
)

func newWatchCmd(app *App) *cobra.Command {
	var consumer string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print session events published over NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.bus == nil {
				return errors.New("watch needs NATS: set SHELF_NATS_URL or [events] nats_url")
			}

			out := cmd.OutOrStdout()
			sub, err := app.bus.SubscribeSessions(consumer, func(msg *events.SessionMessage) {
				line := fmt.Sprintf("%s\t%s", msg.Timestamp.Format(time.RFC3339), msg.Type)
				if msg.Path != "" {
					line += "\t" + msg.Path
				}
				fmt.Fprintln(out, line)
			})
			if err != nil {
				return err
			}
			defer func() { _ = sub.Unsubscribe() }()

			<-cmd.Context().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&consumer, "consumer", "shelf-watch", "durable consumer name")
	return cmd
}
