package model

import (
	"fmt"
	"time"
)

// Features toggles the optional parts of a workspace.
type Features struct {
	BigPlans  bool `json:"big_plans"`
	Metrics   bool `json:"metrics"`
	Persons   bool `json:"persons"`
	Vacations bool `json:"vacations"`
}

// DefaultFeatures enables everything.
func DefaultFeatures() Features {
	return Features{BigPlans: true, Metrics: true, Persons: true, Vacations: true}
}

// Workspace is the root container every other entity belongs to.
type Workspace struct {
	Entity

	Name string `json:"name"`

	// Timezone is an IANA name; all user-visible dates resolve in it.
	Timezone string `json:"timezone"`

	// DefaultProjectRefID receives metric and person generated tasks.
	DefaultProjectRefID string `json:"default_project_ref_id"`

	Features Features `json:"features"`
}

// NewWorkspace builds a workspace. The default project is attached once
// it has been created, with ChangeDefaultProject.
func NewWorkspace(name, timezone string, features Features, src EventSource, now time.Time) (Workspace, error) {
	n, err := ValidateName(name)
	if err != nil {
		return Workspace{}, err
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return Workspace{}, fmt.Errorf("%w: %q", ErrInvalidTimezone, timezone)
	}
	w := Workspace{Name: n, Timezone: timezone, Features: features}
	w.Entity = newEntity(EntityWorkspace, src, now, w.fields())
	return w, nil
}

// Location resolves the workspace timezone, falling back to UTC.
func (w Workspace) Location() *time.Location {
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ChangeDefaultProject points generated metric and person tasks at projectRefID.
func (w Workspace) ChangeDefaultProject(projectRefID string, src EventSource, now time.Time) Workspace {
	if w.DefaultProjectRefID == projectRefID {
		return w
	}
	w.DefaultProjectRefID = projectRefID
	w.Entity = w.record("ChangedDefaultProject", src, now, map[string]string{
		"default_project_ref_id": projectRefID,
	})
	return w
}

// Update renames the workspace or changes its timezone.
func (w Workspace) Update(name, timezone string, src EventSource, now time.Time) (Workspace, error) {
	n, err := ValidateName(name)
	if err != nil {
		return w, err
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return w, fmt.Errorf("%w: %q", ErrInvalidTimezone, timezone)
	}
	if n == w.Name && timezone == w.Timezone {
		return w, nil
	}
	w.Name, w.Timezone = n, timezone
	w.Entity = w.record(EventUpdated, src, now, w.fields())
	return w, nil
}

func (w Workspace) fields() map[string]any {
	return map[string]any{"name": w.Name, "timezone": w.Timezone, "features": w.Features}
}
