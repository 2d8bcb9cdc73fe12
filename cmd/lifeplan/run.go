package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/lifeplan/internal/app"
	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/progress"
	"github.com/nhle/lifeplan/internal/recurrence"
	"github.com/nhle/lifeplan/internal/report"
	lpsync "github.com/nhle/lifeplan/internal/sync"
	"github.com/nhle/lifeplan/internal/timeline"
)

func (c *cli) generateCmd() *cobra.Command {
	var (
		rightNow  string
		targets   []string
		periods   []string
		filters   recurrence.Filters
		evenIfNot bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate inbox tasks from recurrences",
		Long: `Generate creates, or realigns, the inbox task of the current window of
every recurring task, metric and person. Running it twice for the same
instant changes nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := recurrence.Request{Filters: filters, SyncEvenIfNotModified: evenIfNot}
			var err error
			if req.RightNow, err = parseInstant(rightNow); err != nil {
				return err
			}
			for _, s := range targets {
				t, err := recurrence.ParseTarget(s)
				if err != nil {
					return err
				}
				req.Targets = append(req.Targets, t)
			}
			if req.Periods, err = parsePeriods(periods); err != nil {
				return err
			}

			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				var res recurrence.Result
				err := c.withProgress(cmd, "Generate", func(ctx context.Context, rep *progress.Reporter) (string, error) {
					var err error
					res, err = a.Recurrence.Generate(ctx, ws, req, rep)
					return fmt.Sprintf("created %d, updated %d, skipped %d", res.Created, res.Updated, res.Skipped), err
				})
				if err != nil {
					return err
				}
				if c.jsonOut {
					return printJSON(cmd.OutOrStdout(), res)
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&rightNow, "right-now", "", "generate as of this instant, RFC 3339 or YYYY-MM-DD")
	f.StringSliceVar(&targets, "target", nil, "projects, metrics or prm; defaults to all")
	f.StringSliceVar(&periods, "period", nil, "only recurrences with these periods")
	f.StringSliceVar(&filters.ProjectKeys, "project", nil, "only recurring tasks in these projects")
	f.StringSliceVar(&filters.RecurringTaskRefIDs, "recurring-task", nil, "only these recurring tasks")
	f.StringSliceVar(&filters.MetricKeys, "metric", nil, "only these metrics")
	f.StringSliceVar(&filters.PersonRefIDs, "person", nil, "only these persons")
	f.BoolVar(&evenIfNot, "sync-even-if-not-modified", false, "realign tasks even when the recurrence did not change")
	return cmd
}

func (c *cli) syncCmd() *cobra.Command {
	var (
		collections []string
		preference  string
		evenIfNot   bool
		refIDs      []string
		dropExt     bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local entities with the mirror",
		Long: `Sync pulls edits made on the mirror and pushes local ones. With
prefer_local (default) local values win when both sides changed; with
prefer_external the mirror wins. Mirror rows without a local entity are
removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pref, err := lpsync.ParsePreference(preference)
			if err != nil {
				return err
			}
			opts := lpsync.Options{
				Preference:            pref,
				SyncEvenIfNotModified: evenIfNot,
				FilterRefIDs:          refIDs,
				DropExternalSide:      dropExt,
			}

			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				var stats map[string]lpsync.Stats
				err := c.withProgress(cmd, "Sync", func(ctx context.Context, rep *progress.Reporter) (string, error) {
					var err error
					stats, err = a.Reconciler.SyncAll(ctx, ws, collections, opts, rep)
					return formatStats(stats), err
				})
				if err != nil {
					return err
				}
				if c.jsonOut {
					return printJSON(cmd.OutOrStdout(), stats)
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&collections, "collection", nil, "collections to sync: "+strings.Join(lpsync.AllKeys, ", "))
	f.StringVar(&preference, "preference", string(lpsync.PreferLocal), "prefer_local or prefer_external")
	f.BoolVar(&evenIfNot, "sync-even-if-not-modified", false, "copy values even when the winning side did not change")
	f.StringSliceVar(&refIDs, "ref-id", nil, "only these entities")
	f.BoolVar(&dropExt, "drop-external-side", false, "delete every mirror row first and push from scratch")
	return cmd
}

func formatStats(stats map[string]lpsync.Stats) string {
	var parts []string
	for _, key := range lpsync.AllKeys {
		s, ok := stats[key]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: +%d/~%d local, +%d/~%d external, %d dangling, %d failed",
			key, s.LocalCreated, s.LocalUpdated, s.ExternalCreated, s.ExternalUpdated, s.DanglingRemoved, s.Failed))
	}
	return strings.Join(parts, "\n")
}

func (c *cli) reportCmd() *cobra.Command {
	var (
		rightNow        string
		period          string
		breakdownPeriod string
		breakdowns      []string
		covers          []string
		sources         []string
		filters         report.Filters
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a period",
		Long: `Report counts created, accepted, working, done and not done inbox tasks in
the window of --period around now, optionally broken down by project,
finer period, big plan, recurring task or metric. Habits get streaks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := timeline.ParsePeriod(period)
			if err != nil {
				return fmt.Errorf("%w: %v", model.ErrUnknownFilter, err)
			}
			req := report.Request{Period: p, Filters: filters}
			if req.RightNow, err = parseInstant(rightNow); err != nil {
				return err
			}
			if breakdownPeriod != "" {
				bp, err := parsePeriods([]string{breakdownPeriod})
				if err != nil {
					return err
				}
				req.BreakdownPeriod = &bp[0]
			}
			for _, s := range sources {
				req.Sources = append(req.Sources, model.InboxTaskSource(s))
			}
			for _, b := range breakdowns {
				req.Breakdowns = append(req.Breakdowns, report.Breakdown(b))
			}
			for _, cv := range covers {
				req.Covers = append(req.Covers, report.Cover(cv))
			}

			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				r, err := a.Reports.Run(ctx, ws, req)
				if err != nil {
					return err
				}
				if c.jsonOut {
					return printJSON(cmd.OutOrStdout(), r)
				}
				return report.Render(cmd.OutOrStdout(), r)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&rightNow, "right-now", "", "report as of this instant, RFC 3339 or YYYY-MM-DD")
	f.StringVar(&period, "period", "", "daily, weekly, monthly, quarterly or yearly")
	f.StringVar(&breakdownPeriod, "breakdown-period", "", "bucket size of the periods breakdown")
	f.StringSliceVar(&breakdowns, "breakdown", nil, "global, projects, periods, big_plans, recurring_tasks, metrics")
	f.StringSliceVar(&covers, "cover", nil, "inbox_tasks, big_plans")
	f.StringSliceVar(&sources, "source", nil, "only inbox tasks from these sources")
	f.StringSliceVar(&filters.ProjectKeys, "project", nil, "only these projects")
	f.StringSliceVar(&filters.BigPlanRefIDs, "big-plan", nil, "only tasks of these big plans")
	f.StringSliceVar(&filters.RecurringTaskRefIDs, "recurring-task", nil, "only tasks of these recurring tasks")
	f.StringSliceVar(&filters.MetricKeys, "metric", nil, "only tasks of these metrics")
	f.StringSliceVar(&filters.PersonRefIDs, "person", nil, "only tasks of these persons")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}
