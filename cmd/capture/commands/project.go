package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewProjectCmd creates the project command group
func NewProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
		Long:  "List, create, rename, delete and select projects. Projects are referenced by position, name or id prefix.",
	}

	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectAddCmd())
	cmd.AddCommand(newProjectRenameCmd())
	cmd.AddCommand(newProjectRemoveCmd())
	cmd.AddCommand(newProjectUseCmd())

	return cmd
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects; the active one is marked",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}

			snap := app.Coordinator.Snapshot()
			counts := make(map[string]int, len(snap.Projects))
			for _, t := range snap.Tasks {
				counts[t.ProjectID]++
			}
			printProjects(cmd.OutOrStdout(), snap.Projects, snap.ActiveProjectID, counts)
			return nil
		},
	}
}

func newProjectAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project and make it active",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}

			project, out, err := app.Coordinator.AddProject(cmd.Context(), strings.Join(args, " "))
			return acknowledge(cmd.OutOrStdout(), out, err, fmt.Sprintf("project %q", project.Name))
		},
	}
}

func newProjectRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <project> <new name>",
		Short: "Rename a project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}

			project, err := resolveProject(app.Coordinator.Projects(), args[0])
			if err != nil {
				return fmt.Errorf("project: %w", err)
			}

			out, err := app.Coordinator.RenameProject(cmd.Context(), project.ID, strings.Join(args[1:], " "))
			return acknowledge(cmd.OutOrStdout(), out, err, fmt.Sprintf("project %q", project.Name))
		},
	}
}

func newProjectRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <project>",
		Aliases: []string{"delete"},
		Short:   "Delete a project with its tasks and history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}

			project, err := resolveProject(app.Coordinator.Projects(), args[0])
			if err != nil {
				return fmt.Errorf("project: %w", err)
			}

			out, err := app.Coordinator.DeleteProject(cmd.Context(), project.ID)
			return acknowledge(cmd.OutOrStdout(), out, err, fmt.Sprintf("deleted project %q", project.Name))
		},
	}
}

func newProjectUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <project>",
		Short: "Select the active project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}

			project, err := resolveProject(app.Coordinator.Projects(), args[0])
			if err != nil {
				return fmt.Errorf("project: %w", err)
			}
			if err := app.Coordinator.SetActiveProject(project.ID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Active project: %s\n", activeStyle.Render(project.Name))
			return nil
		},
	}
}
