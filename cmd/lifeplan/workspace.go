package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/lifeplan/internal/app"
	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/ui/workspaceform"
)

func (c *cli) workspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Create and inspect workspaces",
	}
	cmd.AddCommand(c.workspaceInitCmd(), c.workspaceShowCmd())
	return cmd
}

func parseFeatures(in []string) (model.Features, error) {
	var f model.Features
	for _, s := range in {
		switch strings.TrimSpace(s) {
		case "all":
			f = model.DefaultFeatures()
		case "none":
			f = model.Features{}
		case "big_plans":
			f.BigPlans = true
		case "metrics":
			f.Metrics = true
		case "persons":
			f.Persons = true
		case "vacations":
			f.Vacations = true
		default:
			return model.Features{}, fmt.Errorf("%w: feature %q", model.ErrUnknownFilter, s)
		}
	}
	return f, nil
}

func (c *cli) workspaceInitCmd() *cobra.Command {
	var (
		timezone    string
		features    []string
		projectKey  string
		projectName string
	)
	cmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Create a workspace and its default project",
		Long: `Create a workspace and its default project. Metric and person tasks are
filed in the default project. Without a name on an interactive terminal a
form asks for the settings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			f, err := parseFeatures(features)
			if err != nil {
				return err
			}
			req := app.InitRequest{
				Name:        cfg.Workspace.Name,
				Timezone:    timezone,
				Features:    f,
				ProjectKey:  projectKey,
				ProjectName: projectName,
			}
			if req.Timezone == "" {
				req.Timezone = cfg.Workspace.Timezone
			}

			switch {
			case len(args) == 1:
				req.Name = args[0]
			case c.workspace != "":
				req.Name = c.workspace
			case !c.jsonOut && stdinIsTerminal():
				if req, err = workspaceform.Prompt(req); err != nil {
					return err
				}
			}

			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				ws, project, err := a.InitWorkspace(ctx, req)
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), ws, func(w io.Writer) {
					fmt.Fprintf(w, "Created workspace %q (%s) with default project %q\n", ws.Name, ws.Timezone, project.Key)
				})
			})
		},
	}
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone (workspace.timezone)")
	cmd.Flags().StringSliceVar(&features, "features", []string{"all"},
		"enabled features: all, none, big_plans, metrics, persons, vacations")
	cmd.Flags().StringVar(&projectKey, "project-key", "inbox", "key of the default project")
	cmd.Flags().StringVar(&projectName, "project-name", "Inbox", "name of the default project")
	return cmd
}

func (c *cli) workspaceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the selected workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				return c.output(cmd.OutOrStdout(), ws, func(w io.Writer) {
					tw := newTable(w, "Name", "Timezone", "Big plans", "Metrics", "Persons", "Vacations", "Ref ID")
					tw.AppendRow([]any{
						ws.Name, ws.Timezone, ws.Features.BigPlans, ws.Features.Metrics,
						ws.Features.Persons, ws.Features.Vacations, ws.RefID,
					})
					tw.Render()
				})
			})
		},
	}
}
