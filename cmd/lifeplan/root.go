package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nhle/lifeplan/internal/app"
	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/progress"
	"github.com/nhle/lifeplan/internal/ui/progressview"
)

// cli carries the global flags and the options every command opens the
// application with.
type cli struct {
	v          *viper.Viper
	configPath string
	workspace  string
	jsonOut    bool
	tui        bool
	verbose    bool

	// opts is passed to app.Open; tests inject a clock and a mirror.
	opts app.Options
}

func newRootCmd(opts app.Options) *cobra.Command {
	c := &cli{v: model.NewViper(), opts: opts}

	root := &cobra.Command{
		Use:   "lifeplan",
		Short: "Plan recurring work, mirror it and report on it",
		Long: `lifeplan keeps projects, recurring tasks, big plans, metrics and people in
a local event-sourced store. It generates inbox tasks from recurrences,
reconciles them with an external mirror and summarizes periods.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", model.DefaultConfigPath(), "config file")
	pf.String("db", "", "database file (database_path)")
	pf.String("mirror", "", "mirror kind: memory, file or http (mirror.kind)")
	pf.StringVarP(&c.workspace, "workspace", "w", "", "workspace name; defaults to the only workspace")
	pf.BoolVar(&c.jsonOut, "json", false, "print JSON instead of tables")
	pf.BoolVar(&c.tui, "tui", false, "follow long operations in a full-screen view")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "log to stderr")
	_ = c.v.BindPFlag("database_path", pf.Lookup("db"))
	_ = c.v.BindPFlag("mirror.kind", pf.Lookup("mirror"))

	root.AddCommand(
		c.workspaceCmd(),
		c.projectCmd(),
		c.recurringTaskCmd(),
		c.inboxTaskCmd(),
		c.bigPlanCmd(),
		c.metricCmd(),
		c.personCmd(),
		c.vacationCmd(),
		c.generateCmd(),
		c.syncCmd(),
		c.reportCmd(),
		c.gcCmd(),
		c.verifyCmd(),
		c.removeCmd(),
		c.serveCmd(),
		c.credentialCmd(),
	)
	return root
}

func (c *cli) config() (*model.AppConfig, error) {
	return model.LoadConfigFrom(c.v, c.configPath)
}

func (c *cli) logger(cmd *cobra.Command) *log.Logger {
	if c.opts.Logger != nil {
		return c.opts.Logger
	}
	if c.verbose {
		return log.New(cmd.ErrOrStderr(), "lifeplan: ", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

func (c *cli) open(cmd *cobra.Command) (*app.App, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	opts := c.opts
	opts.Logger = c.logger(cmd)
	return app.Open(cfg, opts)
}

// withApp opens the application for the duration of fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	a, err := c.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

// withWorkspace is withApp plus the workspace selected by --workspace.
func (c *cli) withWorkspace(
	cmd *cobra.Command,
	fn func(ctx context.Context, a *app.App, ws model.Workspace) error,
) error {
	return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
		ws, err := a.Workspace(ctx, c.workspace)
		if err != nil {
			return fmt.Errorf("workspace %q: %w", c.workspace, err)
		}
		return fn(ctx, a, ws)
	})
}

// withProgress runs fn with a reporter matching the output flags: the
// full-screen view for --tui, JSON lines on stderr for --json and the
// console otherwise. With --json stdout is left to the caller's result.
func (c *cli) withProgress(
	cmd *cobra.Command,
	title string,
	fn func(ctx context.Context, rep *progress.Reporter) (string, error),
) error {
	if c.tui && !c.jsonOut {
		return progressview.Run(cmd.Context(), title, fn)
	}

	out := cmd.OutOrStdout()
	var rep *progress.Reporter
	if c.jsonOut {
		rep = progress.New(progress.NewJSON(cmd.ErrOrStderr()))
	} else {
		rep = progress.New(progress.NewConsole(out))
	}
	summary, err := fn(cmd.Context(), rep)
	if err != nil {
		return err
	}
	if summary != "" && !c.jsonOut {
		fmt.Fprintln(out, summary)
	}
	return nil
}

func stdinIsTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
