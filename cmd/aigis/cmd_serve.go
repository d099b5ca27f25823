package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koustreak/aigis/internal/opsserver"
)

func serveCmd(withApp appRunner) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, readiness, metrics and engine cache endpoints",
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = a.cfg.Ops.Address
			}
			ready := map[string]opsserver.Pinger{"credential_store": a.store}
			if a.files != nil {
				ready["object_store"] = a.files
			}
			srv := opsserver.New(opsserver.Config{
				Address: addr,
				Ready:   ready,
				Metrics: a.metrics.Handler(),
				Cache:   a.cache,
				Log:     a.log,
			})
			err := srv.ListenAndServe(ctx)
			a.log.Infof("shutting down, disposing %d engines", a.cache.Len())
			return err
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
