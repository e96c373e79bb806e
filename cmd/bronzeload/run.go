package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one run now, retrying on failure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := a.scheduler.Trigger(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("run %s %s: %d objects, %d rows\n", report.RunID, report.State, report.Objects, report.Rows)
			return nil
		},
	}
}
