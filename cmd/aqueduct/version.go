package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/aqueduct"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of aqueduct",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "aqueduct version %s\n", strings.TrimSpace(aqueduct.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
