// Package workspaceform asks for the settings of a new workspace.
package workspaceform

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/lifeplan/internal/app"
	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/theme"
)

// ErrCancelled is returned by Prompt when the user aborts the form.
var ErrCancelled = errors.New("workspace form cancelled")

const (
	featureBigPlans  = "big_plans"
	featureMetrics   = "metrics"
	featurePersons   = "persons"
	featureVacations = "vacations"
)

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	name        string
	timezone    string
	features    []string
	projectKey  string
	projectName string
}

// Model is the Bubble Tea model of the workspace init form.
type Model struct {
	form      *huh.Form
	fb        *formBindings
	width     int
	height    int
	submitted bool
}

// New creates a form prefilled from defaults.
func New(defaults app.InitRequest, width, height int) Model {
	fb := &formBindings{
		name:        defaults.Name,
		timezone:    defaults.Timezone,
		features:    featureValues(defaults.Features),
		projectKey:  defaults.ProjectKey,
		projectName: defaults.ProjectName,
	}
	if fb.timezone == "" {
		fb.timezone = "UTC"
	}
	if fb.projectKey == "" {
		fb.projectKey = "inbox"
	}
	if fb.projectName == "" {
		fb.projectName = "Inbox"
	}
	m := Model{fb: fb, width: width, height: height}
	m.form = m.buildForm()
	return m
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update forwards messages to the form and quits once it is completed or
// aborted.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = size.Width
		m.height = size.Height
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.submitted = true
		return m, tea.Quit
	case huh.StateAborted:
		return m, tea.Quit
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("New Workspace") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// Request converts the current field values.
func (m Model) Request() app.InitRequest {
	return m.fb.request()
}

// Prompt runs the form on the terminal and returns the filled request.
func Prompt(defaults app.InitRequest) (app.InitRequest, error) {
	final, err := tea.NewProgram(New(defaults, 80, 24)).Run()
	if err != nil {
		return app.InitRequest{}, err
	}
	m, ok := final.(Model)
	if !ok || !m.submitted {
		return app.InitRequest{}, ErrCancelled
	}
	return m.Request(), nil
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Placeholder("Life").
				Value(&m.fb.name).
				Validate(validateRequired("Name")),
			huh.NewInput().
				Title("Timezone").
				Placeholder("Europe/Berlin").
				Value(&m.fb.timezone).
				Validate(validateTimezone),
			huh.NewMultiSelect[string]().
				Title("Features").
				Options(
					huh.NewOption("Big plans", featureBigPlans),
					huh.NewOption("Metrics", featureMetrics),
					huh.NewOption("Persons", featurePersons),
					huh.NewOption("Vacations", featureVacations),
				).
				Value(&m.fb.features),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Default project key").
				Description("Receives metric and person tasks").
				Value(&m.fb.projectKey).
				Validate(validateRequired("Project key")),
			huh.NewInput().
				Title("Default project name").
				Value(&m.fb.projectName).
				Validate(validateRequired("Project name")),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (fb *formBindings) request() app.InitRequest {
	req := app.InitRequest{
		Name:        strings.TrimSpace(fb.name),
		Timezone:    strings.TrimSpace(fb.timezone),
		ProjectKey:  strings.TrimSpace(fb.projectKey),
		ProjectName: strings.TrimSpace(fb.projectName),
	}
	for _, f := range fb.features {
		switch f {
		case featureBigPlans:
			req.Features.BigPlans = true
		case featureMetrics:
			req.Features.Metrics = true
		case featurePersons:
			req.Features.Persons = true
		case featureVacations:
			req.Features.Vacations = true
		}
	}
	return req
}

func featureValues(f model.Features) []string {
	var out []string
	if f.BigPlans {
		out = append(out, featureBigPlans)
	}
	if f.Metrics {
		out = append(out, featureMetrics)
	}
	if f.Persons {
		out = append(out, featurePersons)
	}
	if f.Vacations {
		out = append(out, featureVacations)
	}
	return out
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func (m Model) formHeight() int {
	return max(m.height-4, 10)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateTimezone(s string) error {
	if _, err := time.LoadLocation(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("unknown timezone, use an IANA name like Europe/Berlin")
	}
	return nil
}
