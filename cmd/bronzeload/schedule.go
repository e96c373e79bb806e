package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/animus-labs/bronze-loader/internal/platform/httpserver"
	"github.com/spf13/cobra"
)

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run on the configured cadence until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if a.cfg.HealthAddr != "" {
				go a.serveHealth(ctx)
			}
			return a.scheduler.Start(ctx)
		},
	}
}

func (a *app) serveHealth(ctx context.Context) {
	probes := httpserver.Probes{
		Service: "bronzeload",
		LastRun: func() any {
			if last, ok := a.scheduler.LastRun(); ok {
				return last
			}
			return nil
		},
		Checks: []httpserver.ReadinessCheck{
			{Name: "minio", Check: a.checkSource},
			{Name: "warehouse", Check: a.checkWarehouse},
		},
		CheckTimeout: 2 * time.Second,
	}
	cfg := httpserver.Config{Addr: a.cfg.HealthAddr}
	if err := httpserver.Serve(ctx, a.logger, cfg, probes.Handler(a.logger)); err != nil {
		a.logger.Error("probe server failed", "error", err)
	}
}
