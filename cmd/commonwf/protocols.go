package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/commonwf/pkg/workflows/relax"
)

var protocolsCmd = &cobra.Command{
	Use:   "protocols <plugin>",
	Short: "List the protocols of a relax engine",
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
		reg, ok := gen.Protocols()
		if !ok {
			return fmt.Errorf("`%s` does not define protocols", gen.Process())
		}

		out := cmd.OutOrStdout()
		for _, name := range reg.Names() {
			desc, _ := reg.Description(name)
			marker := " "
			if name == reg.DefaultName() {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-22s %s\n", marker, name, desc)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(protocolsCmd)
}
