package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lawnchairsociety/statcalc/internal/logger"
	"github.com/lawnchairsociety/statcalc/internal/server"
	"github.com/lawnchairsociety/statcalc/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		address string
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calculator over WebSocket on /ws",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Address = address
			}
			if cmd.Flags().Changed("watch") {
				a.cfg.Watch.Enabled = watch
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().StringVar(&address, "addr", "", "Listen address (overrides server.address)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload the JSON store when the file changes (overrides watch.enabled)")
	return cmd
}

// serve runs the WebSocket server and, for the JSON store, the file watcher
// until ctx is cancelled or either fails.
func (a *app) serve(ctx context.Context) error {
	svc, err := a.service()
	if err != nil {
		return err
	}
	srv := server.NewServer(a.cfg.Server, svc, a.text)

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Watch.Enabled {
		js, ok := a.store.(*store.JSONStore)
		if !ok {
			logger.Warning("Store watching only applies to the json driver", "driver", a.cfg.Store.Driver)
		} else {
			w, err := store.NewWatcher(js, a.cfg.Watch.Debounce)
			if err != nil {
				return err
			}
			w.OnReload(srv.NotifyReload)
			g.Go(func() error {
				if err := w.Run(gctx); err != nil {
					return fmt.Errorf("store watcher: %w", err)
				}
				return nil
			})
		}
	}

	g.Go(func() error {
		logger.Info("Starting statcalc server",
			"address", a.cfg.Server.Address,
			"driver", a.cfg.Store.Driver,
			"language", a.text.Language().String())
		if err := srv.ListenAndServe(gctx); err != nil {
			return fmt.Errorf("websocket server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
