package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/store"
)

// ErrFeatureDisabled is returned when an entity kind is turned off in the
// workspace.
var ErrFeatureDisabled = errors.New("feature disabled")

// InitRequest describes a new workspace and its default project.
type InitRequest struct {
	Name        string
	Timezone    string
	Features    model.Features
	ProjectKey  string
	ProjectName string
}

// InitWorkspace creates a workspace together with the project that
// receives metric and person tasks. Creating a second workspace with the
// same name fails with store.ErrAlreadyExists.
func (a *App) InitWorkspace(ctx context.Context, req InitRequest) (model.Workspace, model.Project, error) {
	if req.Timezone == "" {
		req.Timezone = a.Config.Workspace.Timezone
	}
	if req.ProjectKey == "" {
		req.ProjectKey = "inbox"
	}
	if req.ProjectName == "" {
		req.ProjectName = "Inbox"
	}

	var (
		ws      model.Workspace
		project model.Project
	)
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		if _, err := uow.Workspaces.FindByName(ctx, req.Name); err == nil {
			return fmt.Errorf("workspace %q: %w", req.Name, store.ErrAlreadyExists)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		now := a.now()
		w, err := model.NewWorkspace(req.Name, req.Timezone, req.Features, a.source, now)
		if err != nil {
			return err
		}
		if w, err = uow.Workspaces.Create(ctx, w); err != nil {
			return err
		}
		p, err := model.NewProject(w.RefID, req.ProjectKey, req.ProjectName, nil, a.source, now)
		if err != nil {
			return err
		}
		if project, err = uow.Projects.Create(ctx, p); err != nil {
			return err
		}
		ws, err = uow.Workspaces.Save(ctx, w.ChangeDefaultProject(project.RefID, a.source, now))
		return err
	})
	if err != nil {
		return model.Workspace{}, model.Project{}, err
	}
	a.logger.Printf("created workspace %q (%s) with default project %q", ws.Name, ws.RefID, project.Key)
	return ws, project, nil
}

func requireFeature(enabled bool, what string) error {
	if !enabled {
		return fmt.Errorf("%w: %s", ErrFeatureDisabled, what)
	}
	return nil
}
