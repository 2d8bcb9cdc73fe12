package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/lifeplan/internal/app"
	"github.com/nhle/lifeplan/internal/progress"
	"github.com/nhle/lifeplan/internal/server"
	lpsync "github.com/nhle/lifeplan/internal/sync"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	var (
		watch      bool
		preference string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, optionally syncing in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pref, err := lpsync.ParsePreference(preference)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				logger := c.logger(cmd)

				var watcher *lpsync.Watcher
				if watch {
					rep := progress.Noop()
					if c.verbose {
						rep = progress.New(progress.NewConsole(cmd.ErrOrStderr()))
					}
					watcher = a.NewWatcher(c.workspace, lpsync.Options{Preference: pref}, rep)
					watcher.Start(ctx)
					defer watcher.Stop()
				}

				srv := &http.Server{
					Addr: a.Config.Server.Addr,
					Handler: server.New(server.Config{
						App:       a,
						Workspace: c.workspace,
						Watcher:   watcher,
					}),
					ReadHeaderTimeout: 10 * time.Second,
				}

				errCh := make(chan error, 1)
				go func() {
					errCh <- srv.ListenAndServe()
				}()
				logger.Printf("serving on http://%s/v0", srv.Addr)

				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				case <-ctx.Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address (server.addr)")
	_ = c.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	cmd.Flags().BoolVar(&watch, "watch", false, "sync every sync.watch_interval_sec seconds")
	cmd.Flags().StringVar(&preference, "preference", string(lpsync.PreferLocal), "preference of the background sync")
	return cmd
}
