package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/capture/internal/database"
	"github.com/benvon/capture/internal/models"
	"github.com/benvon/capture/internal/validation"
)

// Single-entity writes used by the mutation coordinator. Deletes of rows that are already
// gone succeed: the end state is the one the caller asked for.

// InsertProject creates a project for userID
func (g *Gateway) InsertProject(ctx context.Context, userID string, p models.Project) error {
	if err := validation.Project(p); err != nil {
		return err
	}
	if _, err := g.repos.Projects.Insert(ctx, projectToRow(userID, p)); err != nil {
		return err
	}
	return nil
}

// RenameProject changes a project's name
func (g *Gateway) RenameProject(ctx context.Context, userID, id, name string) error {
	return g.repos.Projects.UpdateName(ctx, userID, id, name)
}

// DeleteProject deletes a project; the remote store cascades to its tasks and history
func (g *Gateway) DeleteProject(ctx context.Context, userID, id string) error {
	return ignoreNotFound(g.repos.Projects.Delete(ctx, userID, id))
}

// InsertTask creates an open task
func (g *Gateway) InsertTask(ctx context.Context, userID string, t models.Task) error {
	if err := validation.Task(t); err != nil {
		return err
	}
	if _, err := g.repos.Tasks.Insert(ctx, taskToRow(userID, t)); err != nil {
		return err
	}
	return nil
}

// UpdateTaskText changes a task's text
func (g *Gateway) UpdateTaskText(ctx context.Context, userID, id, text string) error {
	return g.repos.Tasks.UpdateText(ctx, userID, id, text)
}

// UpdateTaskPriority stores a task's priority as its numeric weight
func (g *Gateway) UpdateTaskPriority(ctx context.Context, userID, id string, p models.Priority) error {
	if err := validation.ValidatePriority(string(p)); err != nil {
		return err
	}
	return g.repos.Tasks.UpdatePriority(ctx, userID, id, models.ToWeight(p))
}

// DeleteTask deletes an open task
func (g *Gateway) DeleteTask(ctx context.Context, userID, id string) error {
	return ignoreNotFound(g.repos.Tasks.Delete(ctx, userID, id))
}

// InsertHistory records a completed task
func (g *Gateway) InsertHistory(ctx context.Context, userID string, h models.HistoryItem) error {
	if err := validation.HistoryItem(h); err != nil {
		return err
	}
	if _, err := g.repos.History.Insert(ctx, historyToRow(userID, h)); err != nil {
		return fmt.Errorf("failed to insert history item: %w", err)
	}
	return nil
}

// DeleteHistory deletes a history item
func (g *Gateway) DeleteHistory(ctx context.Context, userID, id string) error {
	return ignoreNotFound(g.repos.History.Delete(ctx, userID, id))
}

func ignoreNotFound(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	return err
}
