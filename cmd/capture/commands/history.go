package commands

import (
	"fmt"

	"github.com/benvon/capture/internal/coordinator"
	"github.com/benvon/capture/internal/models"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command group
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Completed tasks of the active project",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryRestoreCmd())
	cmd.AddCommand(newHistoryRemoveCmd())

	return cmd
}

func activeHistoryItem(app *App, ref string) (models.HistoryItem, error) {
	project, ok := app.Coordinator.ActiveProject()
	if !ok {
		return models.HistoryItem{}, coordinator.ErrNoActiveProject
	}
	item, err := resolveHistory(app.Coordinator.History(project.ID), ref)
	if err != nil {
		return models.HistoryItem{}, fmt.Errorf("history item: %w", err)
	}
	return item, nil
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List completed tasks, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			project, ok := app.Coordinator.ActiveProject()
			if !ok {
				return coordinator.ErrNoActiveProject
			}
			printHistory(cmd.OutOrStdout(), project, app.Coordinator.History(project.ID))
			return nil
		},
	}
}

func newHistoryRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <item>",
		Short: "Move a completed task back to the open tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			item, err := activeHistoryItem(app, args[0])
			if err != nil {
				return err
			}

			out, err := app.Coordinator.RestoreTask(cmd.Context(), item.ID)
			return acknowledge(cmd.OutOrStdout(), out, err, oneLine(item.Text))
		},
	}
}

func newHistoryRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <item>",
		Aliases: []string{"delete"},
		Short:   "Permanently delete a completed task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			item, err := activeHistoryItem(app, args[0])
			if err != nil {
				return err
			}

			out, err := app.Coordinator.DeleteHistoryItem(cmd.Context(), item.ID)
			return acknowledge(cmd.OutOrStdout(), out, err, oneLine(item.Text))
		},
	}
}
