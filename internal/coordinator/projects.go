package coordinator

import (
	"context"
	"slices"

	"github.com/benvon/capture/internal/models"
	"github.com/benvon/capture/internal/queue"
	"github.com/benvon/capture/internal/validation"
)

// AddProject creates a project and makes it the active one.
func (c *Coordinator) AddProject(ctx context.Context, name string) (models.Project, Outcome, error) {
	name = validation.SanitizeText(name)
	if name == "" {
		return models.Project{}, Outcome{Op: "add_project"}, ErrEmptyName
	}

	project := models.Project{ID: c.newID(), Name: name, CreatedAt: c.now().UTC()}
	if err := validation.Project(project); err != nil {
		return models.Project{}, Outcome{Op: "add_project"}, err
	}

	out, err := c.mutate(ctx, mutation{
		op:       "add_project",
		kind:     queue.KindProject,
		entityID: project.ID,
		touches:  touchProjects | touchActive,
		apply: func(s *models.Snapshot) error {
			s.Projects = append(s.Projects, project)
			s.ActiveProjectID = project.ID
			return nil
		},
		writes: []write{func(ctx context.Context, userID string) error {
			return c.remote.InsertProject(ctx, userID, project)
		}},
		offline: func() error {
			return c.pending.EnqueueProject(project)
		},
	})
	return project, out, err
}

// RenameProject changes a project's name.
func (c *Coordinator) RenameProject(ctx context.Context, id, name string) (Outcome, error) {
	name = validation.SanitizeText(name)
	if name == "" {
		return Outcome{Op: "rename_project"}, ErrEmptyName
	}

	var renamed models.Project
	return c.mutate(ctx, mutation{
		op:       "rename_project",
		kind:     queue.KindProject,
		entityID: id,
		touches:  touchProjects,
		apply: func(s *models.Snapshot) error {
			idx := slices.IndexFunc(s.Projects, func(p models.Project) bool { return p.ID == id })
			if idx < 0 {
				return ErrNotFound
			}
			renamed = s.Projects[idx]
			renamed.Name = name
			if err := validation.Project(renamed); err != nil {
				return err
			}
			s.Projects[idx] = renamed
			return nil
		},
		writes: []write{func(ctx context.Context, userID string) error {
			return c.remote.RenameProject(ctx, userID, id, name)
		}},
		offline: func() error {
			_, err := c.pending.RefreshProject(renamed)
			return err
		},
	})
}

// DeleteProject deletes a project together with its tasks and history. The last project
// cannot be deleted. When the active project is deleted the first remaining one becomes active.
func (c *Coordinator) DeleteProject(ctx context.Context, id string) (Outcome, error) {
	return c.mutate(ctx, mutation{
		op:       "delete_project",
		kind:     queue.KindProject,
		entityID: id,
		touches:  touchProjects | touchTasks | touchHistory | touchActive,
		apply: func(s *models.Snapshot) error {
			if !s.HasProject(id) {
				return ErrNotFound
			}
			if len(s.Projects) <= 1 {
				return ErrLastProject
			}
			s.Projects = slices.DeleteFunc(s.Projects, func(p models.Project) bool { return p.ID == id })
			s.Tasks = slices.DeleteFunc(s.Tasks, func(t models.Task) bool { return t.ProjectID == id })
			s.History = slices.DeleteFunc(s.History, func(h models.HistoryItem) bool { return h.ProjectID == id })
			if s.ActiveProjectID == id {
				s.ActiveProjectID = s.Projects[0].ID
			}
			return nil
		},
		writes: []write{func(ctx context.Context, userID string) error {
			return c.remote.DeleteProject(ctx, userID, id)
		}},
		offline: func() error {
			return c.pending.ForgetProject(id)
		},
	})
}

// SetActiveProject selects the project new tasks go to. It is a local preference and is never mirrored.
func (c *Coordinator) SetActiveProject(id string) error {
	c.mu.Lock()
	if !c.snap.HasProject(id) {
		c.mu.Unlock()
		return ErrNotFound
	}
	c.snap.ActiveProjectID = id
	c.mu.Unlock()

	c.persist()
	return nil
}
