package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aqueduct",
	Short: "Aqueduct is an AI-assisted editor for water supply and sewage networks",
	Long: `Aqueduct keeps a typed graph of a utility network (sources, pumps, tanks,
treatment stages) and lets an AI model propose changes to it. Every answer is
validated against the node palette before it replaces the graph.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().StringP("workspace", "w", "", "Workspace to open (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("graph", "", "Read the graph from a JSON file instead of the workspace store")
}
