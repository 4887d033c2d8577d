package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/aretw0/commonwf/internal/cli"
	"github.com/aretw0/commonwf/internal/presentation/graph"
	"github.com/aretw0/commonwf/pkg/workflows/relax"
)

var specCmd = &cobra.Command{
	Use:   "spec <plugin>",
	Short: "Describe the inputs accepted by a relax engine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		gen, err := eng.Generator(relax.Workflow, args[0])
		if err != nil {
			return err
		}
		spec, err := gen.Spec()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if engines, _ := cmd.Flags().GetBool("engines"); engines {
			return cli.ShowEngines(out, spec, cli.Profile(out))
		}
		if asGraph, _ := cmd.Flags().GetBool("graph"); asGraph {
			_, err := io.WriteString(out, graph.GenerateMermaid(spec))
			return err
		}
		return cli.WriteValue(out, spec.Inputs().Describe(), cfg.Output)
	},
}

func init() {
	rootCmd.AddCommand(specCmd)
	specCmd.Flags().Bool("engines", false, "only show the engine steps and their required code plugins")
	specCmd.Flags().Bool("graph", false, "render the input namespace as a Mermaid flowchart")
}
