package coordinator

import (
	"context"
	"fmt"
	"slices"

	"github.com/benvon/capture/internal/logger"
	"github.com/benvon/capture/internal/models"
	"github.com/benvon/capture/internal/queue"
	"github.com/benvon/capture/internal/validation"
	"go.uber.org/zap"
)

func indexTask(tasks []models.Task, id string) int {
	return slices.IndexFunc(tasks, func(t models.Task) bool { return t.ID == id })
}

func indexHistory(items []models.HistoryItem, id string) int {
	return slices.IndexFunc(items, func(h models.HistoryItem) bool { return h.ID == id })
}

// AddTask creates a task in the active project. An empty priority uses the configured default.
func (c *Coordinator) AddTask(ctx context.Context, text string, priority models.Priority) (models.Task, Outcome, error) {
	text = validation.SanitizeText(text)
	if text == "" {
		return models.Task{}, Outcome{Op: "add_task"}, ErrEmptyText
	}
	if priority == "" {
		priority = c.defaultPriority
	}
	if !priority.Valid() {
		return models.Task{}, Outcome{Op: "add_task"}, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}

	task := models.Task{ID: c.newID(), Text: text, CreatedAt: c.now().UTC(), Priority: priority}

	out, err := c.mutate(ctx, mutation{
		op:       "add_task",
		kind:     queue.KindTask,
		entityID: task.ID,
		touches:  touchTasks,
		apply: func(s *models.Snapshot) error {
			if !s.HasProject(s.ActiveProjectID) {
				return ErrNoActiveProject
			}
			task.ProjectID = s.ActiveProjectID
			s.Tasks = append([]models.Task{task}, s.Tasks...)
			return nil
		},
		writes: []write{func(ctx context.Context, userID string) error {
			return c.remote.InsertTask(ctx, userID, task)
		}},
		offline: func() error {
			return c.pending.EnqueueTask(task)
		},
	})
	if err == nil {
		c.logger.Debug("task_added",
			zap.String("task_id", task.ID),
			zap.String("preview", logger.SanitizeDebugContent(task.Text)))
	}
	return task, out, err
}

// EditTask replaces a task's text.
func (c *Coordinator) EditTask(ctx context.Context, id, text string) (Outcome, error) {
	text = validation.SanitizeText(text)
	if text == "" {
		return Outcome{Op: "edit_task"}, ErrEmptyText
	}

	var edited models.Task
	return c.mutate(ctx, mutation{
		op:       "edit_task",
		kind:     queue.KindTask,
		entityID: id,
		touches:  touchTasks,
		apply: func(s *models.Snapshot) error {
			idx := indexTask(s.Tasks, id)
			if idx < 0 {
				return ErrNotFound
			}
			edited = s.Tasks[idx]
			edited.Text = text
			s.Tasks[idx] = edited
			return nil
		},
		writes: []write{func(ctx context.Context, userID string) error {
			return c.remote.UpdateTaskText(ctx, userID, id, text)
		}},
		offline: func() error {
			_, err := c.pending.RefreshTask(edited)
			return err
		},
	})
}

// DeleteTask permanently removes an open task.
func (c *Coordinator) DeleteTask(ctx context.Context, id string) (Outcome, error) {
	return c.mutate(ctx, mutation{
		op:       "delete_task",
		kind:     queue.KindTask,
		entityID: id,
		touches:  touchTasks,
		apply: func(s *models.Snapshot) error {
			idx := indexTask(s.Tasks, id)
			if idx < 0 {
				return ErrNotFound
			}
			s.Tasks = slices.Delete(s.Tasks, idx, idx+1)
			return nil
		},
		writes: []write{func(ctx context.Context, userID string) error {
			return c.remote.DeleteTask(ctx, userID, id)
		}},
		offline: func() error {
			return c.pending.ForgetTask(id)
		},
	})
}

// CompleteTask moves a task to the history. Remotely this is a task delete and a history
// insert issued together; if either fails both collections are restored.
func (c *Coordinator) CompleteTask(ctx context.Context, id string) (Outcome, error) {
	var item models.HistoryItem
	return c.mutate(ctx, mutation{
		op:       "complete_task",
		kind:     queue.KindHistory,
		entityID: id,
		touches:  touchTasks | touchHistory,
		apply: func(s *models.Snapshot) error {
			idx := indexTask(s.Tasks, id)
			if idx < 0 {
				return ErrNotFound
			}
			item = s.Tasks[idx].Complete(c.now().UTC())
			s.Tasks = slices.Delete(s.Tasks, idx, idx+1)
			s.History = append([]models.HistoryItem{item}, s.History...)
			return nil
		},
		writes: []write{
			func(ctx context.Context, userID string) error {
				return c.remote.DeleteTask(ctx, userID, id)
			},
			func(ctx context.Context, userID string) error {
				return c.remote.InsertHistory(ctx, userID, item)
			},
		},
		offline: func() error {
			// history is local-only until the next remote load
			return c.pending.ForgetTask(id)
		},
	})
}

// RestoreTask moves a history item back to the open tasks with its original id, text,
// project and priority.
func (c *Coordinator) RestoreTask(ctx context.Context, id string) (Outcome, error) {
	var task models.Task
	return c.mutate(ctx, mutation{
		op:       "restore_task",
		kind:     queue.KindTask,
		entityID: id,
		touches:  touchTasks | touchHistory,
		apply: func(s *models.Snapshot) error {
			idx := indexHistory(s.History, id)
			if idx < 0 {
				return ErrNotFound
			}
			if !s.HasProject(s.History[idx].ProjectID) {
				return ErrNotFound
			}
			task = s.History[idx].Restore()
			s.History = slices.Delete(s.History, idx, idx+1)
			s.Tasks = append([]models.Task{task}, s.Tasks...)
			return nil
		},
		writes: []write{
			func(ctx context.Context, userID string) error {
				return c.remote.DeleteHistory(ctx, userID, id)
			},
			func(ctx context.Context, userID string) error {
				return c.remote.InsertTask(ctx, userID, task)
			},
		},
	})
}

// DeleteHistoryItem permanently removes a completed task.
func (c *Coordinator) DeleteHistoryItem(ctx context.Context, id string) (Outcome, error) {
	return c.mutate(ctx, mutation{
		op:       "delete_history_item",
		kind:     queue.KindHistory,
		entityID: id,
		touches:  touchHistory,
		apply: func(s *models.Snapshot) error {
			idx := indexHistory(s.History, id)
			if idx < 0 {
				return ErrNotFound
			}
			s.History = slices.Delete(s.History, idx, idx+1)
			return nil
		},
		writes: []write{func(ctx context.Context, userID string) error {
			return c.remote.DeleteHistory(ctx, userID, id)
		}},
	})
}

// ShiftPriority moves a task one level up or down, clamped at both ends.
func (c *Coordinator) ShiftPriority(ctx context.Context, id string, dir models.Direction) (Outcome, error) {
	return c.changePriority(ctx, "shift_priority", id, func(current models.Priority) models.Priority {
		return models.ShiftPriority(current, dir)
	})
}

// SetPriority sets a task's priority to an absolute level.
func (c *Coordinator) SetPriority(ctx context.Context, id string, p models.Priority) (Outcome, error) {
	if !p.Valid() {
		return Outcome{Op: "set_priority"}, fmt.Errorf("%w: %q", ErrInvalidPriority, p)
	}
	return c.changePriority(ctx, "set_priority", id, func(models.Priority) models.Priority { return p })
}

func (c *Coordinator) changePriority(ctx context.Context, op, id string, next func(models.Priority) models.Priority) (Outcome, error) {
	c.mu.Lock()
	idx := indexTask(c.snap.Tasks, id)
	if idx < 0 {
		c.mu.Unlock()
		return Outcome{Op: op}, ErrNotFound
	}
	current := c.snap.Tasks[idx].Priority
	c.mu.Unlock()

	target := next(current)
	if target == current {
		return Outcome{Op: op, Status: StatusUnchanged}, nil
	}

	var changed models.Task
	return c.mutate(ctx, mutation{
		op:       op,
		kind:     queue.KindTask,
		entityID: id,
		touches:  touchTasks,
		apply: func(s *models.Snapshot) error {
			idx := indexTask(s.Tasks, id)
			if idx < 0 {
				return ErrNotFound
			}
			changed = s.Tasks[idx]
			changed.Priority = target
			s.Tasks[idx] = changed
			return nil
		},
		writes: []write{func(ctx context.Context, userID string) error {
			return c.remote.UpdateTaskPriority(ctx, userID, id, target)
		}},
		offline: func() error {
			_, err := c.pending.RefreshTask(changed)
			return err
		},
	})
}

// CopyTask writes a task's text to the clipboard.
func (c *Coordinator) CopyTask(id string) error {
	c.mu.Lock()
	idx := indexTask(c.snap.Tasks, id)
	var text string
	if idx >= 0 {
		text = c.snap.Tasks[idx].Text
	}
	c.mu.Unlock()

	if idx < 0 {
		return ErrNotFound
	}
	if c.clipboard == nil {
		return fmt.Errorf("failed to copy task: no clipboard available")
	}

	c.fireFeedback("copy_task")
	if err := c.clipboard.WriteText(text); err != nil {
		return fmt.Errorf("failed to copy task: %w", err)
	}
	return nil
}

// ReorderTasks sets the manual order of a project's tasks. ids must list every task of the
// project exactly once. The project's tasks move ahead of all other tasks, which keep their
// relative order. The order is local only.
func (c *Coordinator) ReorderTasks(projectID string, ids []string) error {
	c.mu.Lock()

	var own, others []models.Task
	for _, t := range c.snap.Tasks {
		if t.ProjectID == projectID {
			own = append(own, t)
		} else {
			others = append(others, t)
		}
	}
	if len(ids) != len(own) {
		c.mu.Unlock()
		return ErrInvalidOrder
	}

	byID := make(map[string]models.Task, len(own))
	for _, t := range own {
		byID[t.ID] = t
	}
	ordered := make([]models.Task, 0, len(c.snap.Tasks))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			c.mu.Unlock()
			return ErrInvalidOrder
		}
		delete(byID, id)
		ordered = append(ordered, t)
	}

	c.snap.Tasks = append(ordered, others...)
	c.mu.Unlock()

	c.persist()
	return nil
}
