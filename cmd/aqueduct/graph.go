package main

import (
	"fmt"

	"github.com/aretw0/aqueduct"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the network graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the workspace graph. Nodes whose
properties fall outside engineering bounds are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return withWorkspace(cmd, func(a *app, ws *aqueduct.Workspace) error {
			if asJSON {
				return printJSON(cmd, ws.CurrentGraph())
			}
			fmt.Fprint(cmd.OutOrStdout(), ws.Mermaid())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("json", false, "Print the graph as JSON instead of Mermaid")
}
