package workspaceform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/lifeplan/internal/app"
	"github.com/nhle/lifeplan/internal/model"
)

func TestNewFillsDefaults(t *testing.T) {
	m := New(app.InitRequest{Name: "Life", Features: model.Features{Metrics: true, Vacations: true}}, 80, 24)

	assert.Equal(t, app.InitRequest{
		Name:        "Life",
		Timezone:    "UTC",
		Features:    model.Features{Metrics: true, Vacations: true},
		ProjectKey:  "inbox",
		ProjectName: "Inbox",
	}, m.Request())
}

func TestRequestTrimsFields(t *testing.T) {
	fb := &formBindings{
		name:        "  Work ",
		timezone:    " Europe/Berlin",
		features:    []string{featureBigPlans, featurePersons},
		projectKey:  "ops ",
		projectName: " Operations",
	}

	assert.Equal(t, app.InitRequest{
		Name:        "Work",
		Timezone:    "Europe/Berlin",
		Features:    model.Features{BigPlans: true, Persons: true},
		ProjectKey:  "ops",
		ProjectName: "Operations",
	}, fb.request())
}

func TestValidators(t *testing.T) {
	assert.Error(t, validateRequired("Name")("   "))
	assert.NoError(t, validateRequired("Name")("Life"))
	assert.NoError(t, validateTimezone("UTC"))
	assert.Error(t, validateTimezone("Mars/Olympus"))
}
