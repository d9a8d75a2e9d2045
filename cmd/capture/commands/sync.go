package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benvon/capture/internal/queue"
	"github.com/spf13/cobra"
)

// NewSyncCmd creates the sync command
func NewSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload pending creations and reload the remote state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}

			report, err := app.Coordinator.Sync(cmd.Context())
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			w := cmd.OutOrStdout()
			if report.PendingProjects+report.PendingTasks > 0 {
				if report.ReplayErr != nil {
					fmt.Fprintf(w, "%s %d projects, %d tasks: %v\n", warningStyle.Render("upload failed, kept for next sync:"),
						report.PendingProjects, report.PendingTasks, report.ReplayErr)
				} else {
					fmt.Fprintf(w, "%s %d projects, %d tasks\n", successStyle.Render("uploaded"),
						report.PendingProjects, report.PendingTasks)
				}
			}
			if report.Provisioned {
				fmt.Fprintln(w, dimStyle.Render("created a default project for this account"))
			}
			fmt.Fprintf(w, "%s %d projects, %d open tasks, %d completed\n",
				successStyle.Render("synced"), report.Projects, report.Tasks, report.History)
			return nil
		},
	}
}

// NewFollowCmd creates the follow command
func NewFollowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow",
		Short: "Stay running and reload whenever another device changes the data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			if _, ok := app.Feed.(queue.NopFeed); ok {
				return fmt.Errorf("no change feed configured (set RABBITMQ_URL)")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, dimStyle.Render("following changes, press Ctrl+C to stop"))
			return app.Coordinator.Follow(ctx, app.Feed, func(n queue.ChangeNotice) {
				snap := app.Coordinator.Snapshot()
				fmt.Fprintf(w, "%s %s %s: %d projects, %d open tasks\n",
					dimStyle.Render(n.At.Local().Format("15:04:05")),
					successStyle.Render("reloaded after"),
					n.Op, len(snap.Projects), len(snap.Tasks))
			})
		},
	}
}
