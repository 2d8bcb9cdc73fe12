package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/lifeplan/internal/theme"
)

// Console streams human readable progress to a writer. The reporter
// serializes calls, so lines from concurrent scopes never interleave.
type Console struct {
	w io.Writer
}

// NewConsole returns a console sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) SectionStarted(path []string) {
	indent := strings.Repeat("  ", len(path)-1)
	style := theme.SubHeaderStyle
	if len(path) == 1 {
		style = theme.HeaderStyle
	}
	fmt.Fprintln(c.w, indent+style.Render(path[len(path)-1]))
}

func (c *Console) SectionEnded([]string) {}

func (c *Console) EntryDone(e Entry) {
	depth := 1
	if e.Section != "" {
		depth = strings.Count(e.Section, " / ") + 2
	}
	indent := strings.Repeat("  ", depth-1)

	fmt.Fprintln(c.w, indent+FormatEntry(e))
	for _, step := range e.Steps {
		fmt.Fprintln(c.w, indent+"    "+theme.HelpStyle.Render(step))
	}
}

// FormatEntry renders the one-line summary of e: the action, the entity,
// its short ref id and the local and external change markers.
func FormatEntry(e Entry) string {
	line := fmt.Sprintf("%s %s %q",
		theme.ChangeStyle(string(e.Action)).Render(fmt.Sprintf("%-9s", e.Action)),
		e.EntityType,
		e.Name,
	)
	if e.RefID != "" {
		line += " " + theme.HelpStyle.Render(shortID(e.RefID))
	}
	line += " " + marker("local", e.LocalChange) + " " + marker("external", e.ExternalChange)
	if e.Failed() {
		line += " " + theme.ErrorStyle.Render("failed: "+e.Error)
	}
	return line
}

func marker(label string, changed bool) string {
	if changed {
		return lipgloss.NewStyle().Foreground(theme.ColorGreen).Render(label + "✓")
	}
	return lipgloss.NewStyle().Foreground(theme.ColorSubtle).Render(label + "·")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// JSON writes one JSON object per finished entry.
type JSON struct {
	enc *json.Encoder
}

// NewJSON returns a sink encoding entries to w.
func NewJSON(w io.Writer) *JSON {
	return &JSON{enc: json.NewEncoder(w)}
}

func (j *JSON) SectionStarted([]string) {}
func (j *JSON) SectionEnded([]string)   {}

func (j *JSON) EntryDone(e Entry) {
	_ = j.enc.Encode(e)
}
