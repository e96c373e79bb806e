package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "bronzeload",
		Short: "Copy objects from a bronze bucket into a warehouse raw table",
		Long: `bronzeload lists a source bucket, downloads every object into a run-scoped
local directory, stages the files in the warehouse and bulk-ingests them into
the raw table with a single command.

Delivery is at-least-once: objects are never removed from the bucket, so each
run ingests everything still present.

Exit Codes:
  0  - Success
  1  - Run failed
  2  - Invalid configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file; environment variables override it")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file to load before reading the environment (default ./.env if present)")

	cmd.AddCommand(newRunCmd(opts), newScheduleCmd(opts), newCheckCmd(opts))
	return cmd
}
