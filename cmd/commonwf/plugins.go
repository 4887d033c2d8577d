package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/commonwf/pkg/registry"
	"github.com/aretw0/commonwf/pkg/workflows/relax"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins [workflow]",
	Short: "List the engines implementing a common workflow",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workflow := relax.Workflow
		if len(args) == 1 {
			workflow = args[0]
		}
		eng, err := newEngine()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, name := range eng.WorkflowPlugins(workflow) {
			fmt.Fprintln(out, name)
		}
		prefix := registry.EntryPointName(workflow, "")
		for _, name := range eng.Plugins().Missing(registry.CategoryWorkflows) {
			if plugin, ok := strings.CutPrefix(name, prefix); ok {
				fmt.Fprintf(out, "%s (not installed)\n", plugin)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
}
