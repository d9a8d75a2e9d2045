package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/capture/internal/queue"
	"github.com/spf13/cobra"
)

const dbCommandTimeout = 30 * time.Second

// NewDBCmd creates the remote store maintenance commands
func NewDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Remote store maintenance",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the remote tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			if app.DB == nil {
				return fmt.Errorf("remote store is not configured or not reachable")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), dbCommandTimeout)
			defer cancel()
			if err := app.DB.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Verify the remote store and change feed are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), dbCommandTimeout)
			defer cancel()

			w := cmd.OutOrStdout()
			healthy := true
			if app.DB == nil {
				fmt.Fprintln(w, "database:    not connected")
				healthy = false
			} else if err := app.DB.HealthCheck(ctx); err != nil {
				fmt.Fprintf(w, "database:    %s\n", errorStyle.Render(err.Error()))
				healthy = false
			} else {
				fmt.Fprintln(w, "database:    ok")
			}

			if _, ok := app.Feed.(queue.NopFeed); ok {
				fmt.Fprintln(w, "change feed: not configured")
			} else if err := app.Feed.HealthCheck(ctx); err != nil {
				fmt.Fprintf(w, "change feed: %s\n", errorStyle.Render(err.Error()))
				healthy = false
			} else {
				fmt.Fprintln(w, "change feed: ok")
			}

			if !healthy {
				return ErrReported
			}
			return nil
		},
	})

	return cmd
}
