package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/commonwf"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of commonwf",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "commonwf version %s\n", commonwf.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
