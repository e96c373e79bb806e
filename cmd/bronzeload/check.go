package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the source bucket and warehouse tables are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			var errs []error
			if err := a.checkSource(ctx); err != nil {
				errs = append(errs, fmt.Errorf("source: %w", err))
			} else {
				cmd.Printf("source bucket %s: ok\n", a.cfg.Bucket)
			}
			if err := a.checkWarehouse(ctx); err != nil {
				errs = append(errs, fmt.Errorf("warehouse: %w", err))
			} else {
				cmd.Printf("warehouse %s.%s/%s: ok\n", a.cfg.Tables.Schema, a.cfg.Tables.Raw, a.cfg.Tables.Stage)
			}
			return errors.Join(errs...)
		},
	}
}
