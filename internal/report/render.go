package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nhle/lifeplan/internal/theme"
)

// Render writes r as titled tables.
func Render(w io.Writer, r Report) error {
	title := fmt.Sprintf("%s report %s (%s to %s)", r.Period, r.Window.Label,
		r.Window.FirstDay.Format("2006-01-02"), r.Window.EndDay.Format("2006-01-02"))
	if _, err := fmt.Fprintln(w, theme.HeaderStyle.Render(title)); err != nil {
		return err
	}

	if r.Global != nil {
		renderBuckets(w, "Global", []Bucket{*r.Global})
	}
	renderBuckets(w, "By project", r.ByProject)
	if r.BreakdownPeriod != nil {
		renderBuckets(w, fmt.Sprintf("By %s period", *r.BreakdownPeriod), r.ByPeriod)
	}
	renderBuckets(w, "By big plan", r.ByBigPlan)
	renderBuckets(w, "By recurring task", r.ByRecurringTask)
	renderBuckets(w, "By metric", r.ByMetric)

	if len(r.Habits) > 0 {
		fmt.Fprintln(w, theme.SubHeaderStyle.Render("Habits"))
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"Habit", "Period", "Current", "Longest", "One skip", "Coverage", "Plot"})
		for _, h := range r.Habits {
			tw.AppendRow(table.Row{
				h.Name, h.Period, h.Streaks.Current, h.Streaks.Longest,
				h.Streaks.OneSkipLongest, formatCoverage(h.Coverage), colorPlot(h.Plot),
			})
		}
		tw.Render()
	}
	return nil
}

func renderBuckets(w io.Writer, title string, buckets []Bucket) {
	if len(buckets) == 0 {
		return
	}
	fmt.Fprintln(w, theme.SubHeaderStyle.Render(title))

	withPlans := buckets[0].BigPlans != nil
	header := table.Row{"", "Created", "Accepted", "Working", "Done", "Not done"}
	if withPlans {
		header = append(header, "Plans done", "Plans not done")
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	for _, b := range buckets {
		s := b.InboxTasks
		row := table.Row{b.Name, s.Created.Total, s.Accepted.Total, s.Working.Total, s.Done.Total, s.NotDone.Total}
		if withPlans && b.BigPlans != nil {
			row = append(row, b.BigPlans.Done, b.BigPlans.NotDone)
		}
		tw.AppendRow(row)
	}
	tw.Render()
}

func formatCoverage(cs []Coverage) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = fmt.Sprintf("%s %d/%d", c.Period, c.Done, c.Total)
	}
	return strings.Join(parts, ", ")
}

func colorPlot(plot string) string {
	var b strings.Builder
	for _, r := range plot {
		b.WriteString(theme.StreakStyle(r).Render(string(r)))
	}
	return b.String()
}
