package main

import (
	"fmt"

	"github.com/aretw0/aqueduct"
	"github.com/spf13/cobra"
)

var promptCmd = &cobra.Command{
	Use:   "prompt [instruction...|-]",
	Short: "Print the request that would be sent to the AI model",
	Long: `Builds the model request for the workspace graph and the given instruction
without calling any backend. Use --json for the full payload.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		return withWorkspace(cmd, func(a *app, ws *aqueduct.Workspace) error {
			payload, err := ws.BuildRequest(text)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, payload)
			}
			fmt.Fprintln(cmd.OutOrStdout(), payload.Prompt)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().Bool("json", false, "Print the full payload (system instruction, bounds, examples) as JSON")
}
