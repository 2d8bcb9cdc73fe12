package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/lifeplan/internal/app"
	"github.com/nhle/lifeplan/internal/model"
)

func projectKeys(ctx context.Context, a *app.App, ws model.Workspace) (map[string]string, error) {
	projects, err := a.Projects(ctx, ws, true)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]string, len(projects))
	for _, p := range projects {
		keys[p.RefID] = p.Key
	}
	return keys, nil
}

func (c *cli) projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	var parent string
	create := &cobra.Command{
		Use:   "create <key> <name...>",
		Short: "Create a project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				p, err := a.CreateProject(ctx, ws, args[0], strings.Join(args[1:], " "), parent)
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), p, func(w io.Writer) {
					fmt.Fprintf(w, "Created project %s %q (%s)\n", p.Key, p.Name, shortID(p.RefID))
				})
			})
		},
	}
	create.Flags().StringVar(&parent, "parent", "", "key of the parent project")

	var archived bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				projects, err := a.Projects(ctx, ws, archived)
				if err != nil {
					return err
				}
				keys := make(map[string]string, len(projects))
				for _, p := range projects {
					keys[p.RefID] = p.Key
				}
				return c.output(cmd.OutOrStdout(), projects, func(w io.Writer) {
					tw := newTable(w, "Key", "Name", "Parent", "Default", "Archived", "Ref ID")
					for _, p := range projects {
						parent := ""
						if p.ParentProjectRefID != nil {
							parent = keys[*p.ParentProjectRefID]
						}
						tw.AppendRow([]any{p.Key, p.Name, parent, p.RefID == ws.DefaultProjectRefID, p.Archived, shortID(p.RefID)})
					}
					tw.Render()
				})
			})
		},
	}
	list.Flags().BoolVar(&archived, "archived", false, "include archived projects")

	cmd.AddCommand(create, list)
	return cmd
}

func (c *cli) recurringTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recurring-task",
		Aliases: []string{"rt"},
		Short:   "Manage habits and chores",
	}

	var (
		project  string
		kind     string
		skipRule string
		mustDo   bool
		start    string
		end      string
		gen      genParamsFlags
	)
	create := &cobra.Command{
		Use:   "create <name...>",
		Short: "Create a habit or chore",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := model.ParseRecurringTaskType(kind)
			if err != nil {
				return err
			}
			params, err := gen.params(cmd.Flags())
			if err != nil {
				return err
			}
			if params == nil {
				return fmt.Errorf("--period is required")
			}
			f := model.RecurringTaskFields{
				Name:      strings.Join(args, " "),
				Type:      typ,
				GenParams: *params,
				MustDo:    mustDo,
			}
			if skipRule != "" {
				f.SkipRule = &skipRule
			}
			startAt, err := parseDate(start)
			if err != nil {
				return err
			}
			if startAt != nil {
				f.StartAtDate = *startAt
			}
			if f.EndAtDate, err = parseDate(end); err != nil {
				return err
			}

			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				rt, err := a.CreateRecurringTask(ctx, ws, project, f)
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), rt, func(w io.Writer) {
					fmt.Fprintf(w, "Created %s %s %q (%s)\n", rt.GenParams.Period, rt.Type, rt.Name, shortID(rt.RefID))
				})
			})
		},
	}
	create.Flags().StringVarP(&project, "project", "p", "", "project key; defaults to the workspace default project")
	create.Flags().StringVar(&kind, "type", string(model.RecurringTaskTypeChore), "habit or chore")
	create.Flags().StringVar(&skipRule, "skip-rule", "", `skip windows: "even", "odd" or a digit set`)
	create.Flags().BoolVar(&mustDo, "must-do", false, "generate even during vacations")
	create.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD; defaults to today")
	create.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	gen.register(create.Flags())

	var archived bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List recurring tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				tasks, err := a.RecurringTasks(ctx, ws, archived)
				if err != nil {
					return err
				}
				keys, err := projectKeys(ctx, a, ws)
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), tasks, func(w io.Writer) {
					tw := newTable(w, "Name", "Type", "Period", "Project", "Suspended", "Must do", "Ref ID")
					for _, rt := range tasks {
						tw.AppendRow([]any{
							rt.Name, rt.Type, rt.GenParams.Period, keys[rt.ProjectRefID],
							rt.Suspended, rt.MustDo, shortID(rt.RefID),
						})
					}
					tw.Render()
				})
			})
		},
	}
	list.Flags().BoolVar(&archived, "archived", false, "include archived recurring tasks")

	var resume bool
	suspend := &cobra.Command{
		Use:   "suspend <ref_id>",
		Short: "Stop, or with --resume restart, generating tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				rt, err := a.SuspendRecurringTask(ctx, args[0], !resume)
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), rt, func(w io.Writer) {
					fmt.Fprintf(w, "%q suspended: %t\n", rt.Name, rt.Suspended)
				})
			})
		},
	}
	suspend.Flags().BoolVar(&resume, "resume", false, "resume generation")

	archive := &cobra.Command{
		Use:   "archive <ref_id>",
		Short: "Archive a recurring task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				rt, err := a.ArchiveRecurringTask(ctx, args[0])
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), rt, func(w io.Writer) {
					fmt.Fprintf(w, "Archived %q\n", rt.Name)
				})
			})
		},
	}

	cmd.AddCommand(create, list, suspend, archive)
	return cmd
}

func (c *cli) inboxTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inbox-task",
		Aliases: []string{"it"},
		Short:   "Manage inbox tasks",
	}

	var (
		project    string
		bigPlan    string
		status     string
		eisen      []string
		difficulty string
		actionable string
		due        string
	)
	create := &cobra.Command{
		Use:   "create <name...>",
		Short: "Create an inbox task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := model.InboxTaskFields{Name: strings.Join(args, " ")}
			var err error
			if status != "" {
				if f.Status, err = model.ParseInboxTaskStatus(status); err != nil {
					return err
				}
			}
			if f.Eisen, err = parseEisen(eisen); err != nil {
				return err
			}
			if f.Difficulty, err = parseDifficulty(difficulty); err != nil {
				return err
			}
			if f.ActionableDate, err = parseDate(actionable); err != nil {
				return err
			}
			if f.DueDate, err = parseDate(due); err != nil {
				return err
			}

			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				t, err := a.CreateInboxTask(ctx, ws, project, bigPlan, f)
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), t, func(w io.Writer) {
					fmt.Fprintf(w, "Created inbox task %q (%s)\n", t.Name, shortID(t.RefID))
				})
			})
		},
	}
	create.Flags().StringVarP(&project, "project", "p", "", "project key; defaults to the workspace default project")
	create.Flags().StringVar(&bigPlan, "big-plan", "", "ref id of the big plan the task belongs to")
	create.Flags().StringVar(&status, "status", "", "initial status")
	create.Flags().StringSliceVar(&eisen, "eisen", nil, "Eisenhower categories")
	create.Flags().StringVar(&difficulty, "difficulty", "", "easy, medium or hard")
	create.Flags().StringVar(&actionable, "actionable", "", "actionable date, YYYY-MM-DD")
	create.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD")

	var archived bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List inbox tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				tasks, err := a.InboxTasks(ctx, ws, archived)
				if err != nil {
					return err
				}
				keys, err := projectKeys(ctx, a, ws)
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), tasks, func(w io.Writer) {
					tw := newTable(w, "Name", "Status", "Source", "Project", "Actionable", "Due", "Ref ID")
					for _, t := range tasks {
						tw.AppendRow([]any{
							t.Name, formatStatus(t.Status), t.Source, keys[t.ProjectRefID],
							formatDate(t.ActionableDate), formatDate(t.DueDate), shortID(t.RefID),
						})
					}
					tw.Render()
				})
			})
		},
	}
	list.Flags().BoolVar(&archived, "archived", false, "include archived inbox tasks")

	setStatus := &cobra.Command{
		Use:   "status <ref_id> <status>",
		Short: "Change the status of an inbox task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := model.ParseInboxTaskStatus(args[1])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				t, err := a.ChangeInboxTaskStatus(ctx, args[0], s)
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), t, func(w io.Writer) {
					fmt.Fprintf(w, "%q is now %s\n", t.Name, formatStatus(t.Status))
				})
			})
		},
	}

	archive := &cobra.Command{
		Use:   "archive <ref_id>",
		Short: "Archive an inbox task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				t, err := a.ArchiveInboxTask(ctx, args[0])
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), t, func(w io.Writer) {
					fmt.Fprintf(w, "Archived %q\n", t.Name)
				})
			})
		},
	}

	cmd.AddCommand(create, list, setStatus, archive)
	return cmd
}

func (c *cli) bigPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "big-plan",
		Aliases: []string{"bp"},
		Short:   "Manage big plans",
	}

	var project, actionable, due string
	create := &cobra.Command{
		Use:   "create <name...>",
		Short: "Create a big plan",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := model.BigPlanFields{Name: strings.Join(args, " ")}
			var err error
			if f.ActionableDate, err = parseDate(actionable); err != nil {
				return err
			}
			if f.DueDate, err = parseDate(due); err != nil {
				return err
			}
			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				bp, err := a.CreateBigPlan(ctx, ws, project, f)
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), bp, func(w io.Writer) {
					fmt.Fprintf(w, "Created big plan %q (%s)\n", bp.Name, shortID(bp.RefID))
				})
			})
		},
	}
	create.Flags().StringVarP(&project, "project", "p", "", "project key; defaults to the workspace default project")
	create.Flags().StringVar(&actionable, "actionable", "", "actionable date, YYYY-MM-DD")
	create.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD")

	setStatus := &cobra.Command{
		Use:   "status <ref_id> <status>",
		Short: "Change the status of a big plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := model.ParseInboxTaskStatus(args[1])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				bp, err := a.ChangeBigPlanStatus(ctx, args[0], s)
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), bp, func(w io.Writer) {
					fmt.Fprintf(w, "%q is now %s\n", bp.Name, formatStatus(bp.Status))
				})
			})
		},
	}

	cmd.AddCommand(create, setStatus)
	return cmd
}

func (c *cli) metricCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metric",
		Short: "Manage metrics",
	}

	var gen genParamsFlags
	create := &cobra.Command{
		Use:   "create <key> <name...>",
		Short: "Create a metric, optionally with a collection schedule",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := gen.params(cmd.Flags())
			if err != nil {
				return err
			}
			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				m, err := a.CreateMetric(ctx, ws, args[0], strings.Join(args[1:], " "), params)
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), m, func(w io.Writer) {
					fmt.Fprintf(w, "Created metric %s %q (%s)\n", m.Key, m.Name, shortID(m.RefID))
				})
			})
		},
	}
	gen.register(create.Flags())

	cmd.AddCommand(create)
	return cmd
}

func (c *cli) personCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "person",
		Short: "Manage persons",
	}

	var (
		birthday string
		prepDays int
		catchUp  = genParamsFlags{prefix: "catch-up"}
	)
	create := &cobra.Command{
		Use:   "create <name...>",
		Short: "Create a person with catch-up and birthday reminders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := catchUp.params(cmd.Flags())
			if err != nil {
				return err
			}
			var bday *model.Birthday
			if birthday != "" {
				b, err := model.ParseBirthday(birthday)
				if err != nil {
					return fmt.Errorf("%w: %v", model.ErrUnknownFilter, err)
				}
				bday = &b
			}
			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				p, err := a.CreatePerson(ctx, ws, strings.Join(args, " "), params, bday, prepDays)
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), p, func(w io.Writer) {
					fmt.Fprintf(w, "Created person %q (%s)\n", p.Name, shortID(p.RefID))
				})
			})
		},
	}
	create.Flags().StringVar(&birthday, "birthday", "", "birthday, MM-DD")
	create.Flags().IntVar(&prepDays, "preparation-days", model.DefaultBirthdayPreparationDays,
		"days before the birthday the reminder becomes actionable")
	catchUp.register(create.Flags())

	cmd.AddCommand(create)
	return cmd
}

func (c *cli) vacationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vacation",
		Short: "Manage vacations",
	}

	var start, end string
	create := &cobra.Command{
		Use:   "create <name...>",
		Short: "Create a vacation; only must-do recurrences generate during it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDate(start)
			if err != nil {
				return err
			}
			to, err := parseDate(end)
			if err != nil {
				return err
			}
			if from == nil || to == nil {
				return fmt.Errorf("--start and --end are required")
			}
			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				v, err := a.CreateVacation(ctx, ws, strings.Join(args, " "), *from, *to)
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), v, func(w io.Writer) {
					fmt.Fprintf(w, "Created vacation %q from %s to %s\n",
						v.Name, formatDate(&v.StartDate), formatDate(&v.EndDate))
				})
			})
		},
	}
	create.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	create.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")

	list := &cobra.Command{
		Use:   "list",
		Short: "List vacations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, a *app.App, ws model.Workspace) error {
				vacations, err := a.Vacations(ctx, ws)
				if err != nil {
					return err
				}
				return c.output(cmd.OutOrStdout(), vacations, func(w io.Writer) {
					tw := newTable(w, "Name", "Start", "End", "Ref ID")
					for _, v := range vacations {
						tw.AppendRow([]any{v.Name, formatDate(&v.StartDate), formatDate(&v.EndDate), shortID(v.RefID)})
					}
					tw.Render()
				})
			})
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}
