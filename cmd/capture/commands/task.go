package commands

import (
	"fmt"
	"strings"

	"github.com/benvon/capture/internal/coordinator"
	"github.com/benvon/capture/internal/models"
	"github.com/spf13/cobra"
)

// NewTaskCmd creates the task command group
func NewTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage the tasks of the active project",
		Long: "Capture, edit, complete and prioritize tasks. Tasks are referenced by their position " +
			"in 'task list' (unfiltered) or by id prefix.",
	}

	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskEditCmd())
	cmd.AddCommand(newTaskDoneCmd())
	cmd.AddCommand(newTaskRemoveCmd())
	cmd.AddCommand(newTaskShiftCmd("up", models.DirectionUp, "Raise a task's priority one level"))
	cmd.AddCommand(newTaskShiftCmd("down", models.DirectionDown, "Lower a task's priority one level"))
	cmd.AddCommand(newTaskSetCmd())
	cmd.AddCommand(newTaskCopyCmd())
	cmd.AddCommand(newTaskOrderCmd())

	return cmd
}

// activeTask resolves ref against the active project's tasks in list order.
func activeTask(app *App, ref string) (models.Task, error) {
	project, ok := app.Coordinator.ActiveProject()
	if !ok {
		return models.Task{}, coordinator.ErrNoActiveProject
	}
	task, err := resolveTask(app.Coordinator.Tasks(project.ID, models.FilterAll), ref)
	if err != nil {
		return models.Task{}, fmt.Errorf("task: %w", err)
	}
	return task, nil
}

func newTaskListCmd() *cobra.Command {
	var filter, projectRef string
	var manual bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List open tasks, most urgent and newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}

			project, ok := app.Coordinator.ActiveProject()
			if projectRef != "" {
				project, err = resolveProject(app.Coordinator.Projects(), projectRef)
				if err != nil {
					return fmt.Errorf("project: %w", err)
				}
			} else if !ok {
				return coordinator.ErrNoActiveProject
			}

			f := models.PriorityFilter(strings.ToLower(filter))
			switch f {
			case models.FilterAll, models.FilterNow, models.FilterLater:
			default:
				return fmt.Errorf("unknown filter %q (use all, now or later)", filter)
			}

			var tasks []models.Task
			if manual {
				for _, t := range app.Coordinator.TasksInOrder(project.ID) {
					if f.Matches(t.Priority) {
						tasks = append(tasks, t)
					}
				}
			} else {
				tasks = app.Coordinator.Tasks(project.ID, f)
			}
			printTasks(cmd.OutOrStdout(), project, tasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", string(models.FilterAll), "Show all, now or later tasks")
	cmd.Flags().StringVar(&projectRef, "project", "", "List another project instead of the active one")
	cmd.Flags().BoolVar(&manual, "manual", false, "Show the manual order set with 'task order'")

	return cmd
}

func newTaskAddCmd() *cobra.Command {
	var later bool
	var priority string

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Capture a task in the active project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}

			p := models.Priority(strings.ToLower(priority))
			if later {
				p = models.PriorityLater
			}

			task, out, err := app.Coordinator.AddTask(cmd.Context(), strings.Join(args, " "), p)
			return acknowledge(cmd.OutOrStdout(), out, err, fmt.Sprintf("%s %s", priorityBadge(task.Priority), shortID(task.ID)))
		},
	}

	cmd.Flags().BoolVar(&later, "later", false, "Capture with priority 'later'")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Priority: now or later (default from config)")

	return cmd
}

func newTaskEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <task> <new text>",
		Short: "Replace a task's text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			task, err := activeTask(app, args[0])
			if err != nil {
				return err
			}

			out, err := app.Coordinator.EditTask(cmd.Context(), task.ID, strings.Join(args[1:], " "))
			return acknowledge(cmd.OutOrStdout(), out, err, shortID(task.ID))
		},
	}
}

func newTaskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "done <task>",
		Aliases: []string{"complete"},
		Short:   "Complete a task, moving it to the history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			task, err := activeTask(app, args[0])
			if err != nil {
				return err
			}

			out, err := app.Coordinator.CompleteTask(cmd.Context(), task.ID)
			return acknowledge(cmd.OutOrStdout(), out, err, oneLine(task.Text))
		},
	}
}

func newTaskRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <task>",
		Aliases: []string{"delete"},
		Short:   "Delete a task without completing it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			task, err := activeTask(app, args[0])
			if err != nil {
				return err
			}

			out, err := app.Coordinator.DeleteTask(cmd.Context(), task.ID)
			return acknowledge(cmd.OutOrStdout(), out, err, oneLine(task.Text))
		},
	}
}

func newTaskShiftCmd(use string, dir models.Direction, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			task, err := activeTask(app, args[0])
			if err != nil {
				return err
			}

			out, err := app.Coordinator.ShiftPriority(cmd.Context(), task.ID, dir)
			return acknowledge(cmd.OutOrStdout(), out, err, priorityBadge(models.ShiftPriority(task.Priority, dir)))
		},
	}
}

func newTaskSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set <task> <now|later>",
		Short:     "Set a task's priority",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(models.PriorityNow), string(models.PriorityLater)},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			task, err := activeTask(app, args[0])
			if err != nil {
				return err
			}

			p := models.Priority(strings.ToLower(args[1]))
			out, err := app.Coordinator.SetPriority(cmd.Context(), task.ID, p)
			return acknowledge(cmd.OutOrStdout(), out, err, priorityBadge(p))
		},
	}
}

func newTaskCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <task>",
		Short: "Copy a task's text to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			task, err := activeTask(app, args[0])
			if err != nil {
				return err
			}

			if err := app.Coordinator.CopyTask(task.ID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("copied"), oneLine(task.Text))
			return nil
		},
	}
}

func newTaskOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order <task>...",
		Short: "Set the manual order of the active project's tasks",
		Long:  "List every task of the active project once, in the wanted order. The manual order is kept on this device only.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := mustApp(cmd)
			if err != nil {
				return err
			}
			project, ok := app.Coordinator.ActiveProject()
			if !ok {
				return coordinator.ErrNoActiveProject
			}

			ids := make([]string, 0, len(args))
			for _, ref := range args {
				task, err := activeTask(app, ref)
				if err != nil {
					return err
				}
				ids = append(ids, task.ID)
			}

			if err := app.Coordinator.ReorderTasks(project.ID, ids); err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), project, app.Coordinator.TasksInOrder(project.ID))
			return nil
		},
	}
}
