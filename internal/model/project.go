package model

import (
	"fmt"
	"time"
)

// Project groups recurring tasks, big plans and inbox tasks.
type Project struct {
	Entity

	WorkspaceRefID string `json:"workspace_ref_id"`

	// Key is the natural key users filter by; unique per workspace.
	Key  string `json:"key"`
	Name string `json:"name"`

	// ParentProjectRefID is nil for top-level projects.
	ParentProjectRefID *string `json:"parent_project_ref_id,omitempty"`
}

// NewProject validates and builds a project.
func NewProject(workspaceRefID, key, name string, parent *string, src EventSource, now time.Time) (Project, error) {
	k, err := ValidateKey(key)
	if err != nil {
		return Project{}, err
	}
	n, err := ValidateName(name)
	if err != nil {
		return Project{}, err
	}
	p := Project{WorkspaceRefID: workspaceRefID, Key: k, Name: n, ParentProjectRefID: parent}
	p.Entity = newEntity(EntityProject, src, now, p.Fields())
	return p, nil
}

// ProjectFields are the fields sync may change.
type ProjectFields struct {
	Name               string  `json:"name"`
	ParentProjectRefID *string `json:"parent_project_ref_id,omitempty"`
}

// Fields returns the syncable fields.
func (p Project) Fields() ProjectFields {
	return ProjectFields{Name: p.Name, ParentProjectRefID: p.ParentProjectRefID}
}

// Update applies f, recording an event only when something changed.
func (p Project) Update(f ProjectFields, src EventSource, now time.Time) (Project, error) {
	n, err := ValidateName(f.Name)
	if err != nil {
		return p, err
	}
	if f.ParentProjectRefID != nil && *f.ParentProjectRefID == p.RefID {
		return p, fmt.Errorf("project %s cannot be its own parent", p.RefID)
	}
	if n == p.Name && sameString(f.ParentProjectRefID, p.ParentProjectRefID) {
		return p, nil
	}
	p.Name, p.ParentProjectRefID = n, f.ParentProjectRefID
	p.Entity = p.record(EventUpdated, src, now, p.Fields())
	return p, nil
}

// Archive marks the project archived.
func (p Project) Archive(src EventSource, now time.Time) Project {
	p.Entity = p.archive(src, now)
	return p
}
