package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nhle/lifeplan/internal/app"
	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/progress"
)

func (c *cli) gcCmd() *cobra.Command {
	var graceDays int
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove inbox tasks archived longer than the grace period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				var res app.GCResult
				err := c.withProgress(cmd, "Garbage collection", func(ctx context.Context, rep *progress.Reporter) (string, error) {
					var err error
					res, err = a.GC(ctx, ws, graceDays, rep)
					return fmt.Sprintf("removed %d archived inbox tasks", res.Removed), err
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
	cmd.Flags().IntVar(&graceDays, "grace-days", -1, "days an archived task is kept; negative uses gc.grace_days")
	return cmd
}

func (c *cli) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Replay every event stream and check it matches the stored entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Verify(ctx); err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), map[string]string{"status": "ok"}, func(w io.Writer) {
					fmt.Fprintln(w, "All event streams are consistent")
				})
			})
		},
	}
}

var removableKinds = []model.EntityType{
	model.EntityProject,
	model.EntityRecurringTask,
	model.EntityInboxTask,
	model.EntityBigPlan,
	model.EntityMetric,
	model.EntityPerson,
	model.EntityVacation,
}

func (c *cli) removeCmd() *cobra.Command {
	validArgs := make([]string, len(removableKinds))
	for i, k := range removableKinds {
		validArgs[i] = string(k)
	}
	return &cobra.Command{
		Use:       "remove <entity_type> <ref_id>",
		Short:     "Hard-delete an entity, its events and its mirror links",
		Args:      cobra.ExactArgs(2),
		ValidArgs: validArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				err := c.withProgress(cmd, "Remove", func(ctx context.Context, rep *progress.Reporter) (string, error) {
					return "", a.Remove(ctx, model.EntityType(args[0]), args[1], rep)
				})
				return err
			})
		},
	}
}
