package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/commonwf/internal/cli"
)

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "List the overrides that can be applied to a builder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		return cli.WriteValue(cmd.OutOrStdout(), map[string]any{"overrides": eng.Overrides().Definitions()}, cfg.Output)
	},
}

func init() {
	rootCmd.AddCommand(overridesCmd)
}
