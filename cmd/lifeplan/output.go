package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/pflag"

	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/schedule"
	"github.com/nhle/lifeplan/internal/theme"
	"github.com/nhle/lifeplan/internal/timeline"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// output prints v as JSON with --json, or calls human otherwise.
func (c *cli) output(w io.Writer, v any, human func(w io.Writer)) error {
	if c.jsonOut {
		return printJSON(w, v)
	}
	human(w)
	return nil
}

func newTable(w io.Writer, header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row(header))
	return tw
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

func formatStatus(s model.InboxTaskStatus) string {
	return theme.StatusStyle(string(s)).Render(string(s))
}

// parseDate reads an optional YYYY-MM-DD flag value as a UTC midnight.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q is not YYYY-MM-DD", model.ErrUnknownFilter, s)
	}
	d := timeline.Date(t.Year(), t.Month(), t.Day())
	return &d, nil
}

// parseInstant reads an RFC 3339 timestamp or a plain date. Empty means
// zero, which the engines replace with their clock.
func parseInstant(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := parseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return *d, nil
}

func parsePeriods(in []string) ([]timeline.Period, error) {
	var out []timeline.Period
	for _, s := range in {
		p, err := timeline.ParsePeriod(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrUnknownFilter, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func parseEisen(in []string) ([]model.Eisen, error) {
	var out []model.Eisen
	for _, s := range in {
		e, err := model.ParseEisen(s)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func parseDifficulty(s string) (*model.Difficulty, error) {
	if s == "" {
		return nil, nil
	}
	d, err := model.ParseDifficulty(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// genParamsFlags are the flags describing a recurrence. A prefix keeps
// several sets apart on one command, e.g. --catch-up-period.
type genParamsFlags struct {
	prefix string

	period              string
	eisen               []string
	difficulty          string
	actionableFromDay   int
	actionableFromMonth int
	dueAtTime           string
	dueAtDay            int
	dueAtMonth          int
}

func (g *genParamsFlags) name(flag string) string {
	if g.prefix == "" {
		return flag
	}
	return g.prefix + "-" + flag
}

func (g *genParamsFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&g.period, g.name("period"), "", "recurrence period: daily, weekly, monthly, quarterly or yearly")
	fs.StringSliceVar(&g.eisen, g.name("eisen"), nil, "Eisenhower categories of generated tasks")
	fs.StringVar(&g.difficulty, g.name("difficulty"), "", "difficulty of generated tasks: easy, medium or hard")
	fs.IntVar(&g.actionableFromDay, g.name("actionable-from-day"), 0, "day of the period tasks become actionable")
	fs.IntVar(&g.actionableFromMonth, g.name("actionable-from-month"), 0, "month of the period tasks become actionable")
	fs.StringVar(&g.dueAtTime, g.name("due-at-time"), "", "time of day tasks are due, HH:MM")
	fs.IntVar(&g.dueAtDay, g.name("due-at-day"), 0, "day of the period tasks are due")
	fs.IntVar(&g.dueAtMonth, g.name("due-at-month"), 0, "month of the period tasks are due")
}

// params builds the recurrence, or nil when no period was given.
func (g *genParamsFlags) params(fs *pflag.FlagSet) (*model.GenParams, error) {
	if g.period == "" {
		return nil, nil
	}
	period, err := timeline.ParsePeriod(g.period)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schedule.ErrInvalidRecurrenceParameters, err)
	}
	p := model.GenParams{Period: period}
	if p.Eisen, err = parseEisen(g.eisen); err != nil {
		return nil, err
	}
	if p.Difficulty, err = parseDifficulty(g.difficulty); err != nil {
		return nil, err
	}

	intFlag := func(flag string, v int) *int {
		if !fs.Changed(g.name(flag)) {
			return nil
		}
		return &v
	}
	p.ActionableFromDay = intFlag("actionable-from-day", g.actionableFromDay)
	p.ActionableFromMonth = intFlag("actionable-from-month", g.actionableFromMonth)
	p.DueAtDay = intFlag("due-at-day", g.dueAtDay)
	p.DueAtMonth = intFlag("due-at-month", g.dueAtMonth)
	if g.dueAtTime != "" {
		t := strings.TrimSpace(g.dueAtTime)
		p.DueAtTime = &t
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
