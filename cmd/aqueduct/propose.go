package main

import (
	"errors"

	"github.com/aretw0/aqueduct"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/spf13/cobra"
)

var proposeCmd = &cobra.Command{
	Use:   "propose [instruction...|-]",
	Short: "Ask the AI model to change the workspace graph",
	Long: `Sends the workspace graph and the instruction to the configured model. A
valid answer replaces the graph and is persisted; --dry-run only prints it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		model, _ := cmd.Flags().GetString("model")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		asJSON, _ := cmd.Flags().GetBool("json")

		return withWorkspace(cmd, func(a *app, ws *aqueduct.Workspace) error {
			if model == "" {
				model = a.cfg.Backend.DefaultModel
			}

			var p domain.ValidatedProposal
			if dryRun {
				p, err = ws.Suggest(cmd.Context(), ws.CurrentGraph(), model, text)
			} else {
				p, err = ws.Propose(cmd.Context(), model, text)
			}
			if err != nil {
				a.logger.Debug("proposal failed", "model", model, "err", err)
				return errors.New(domain.Localize(err))
			}
			return printProposal(cmd, ws, p, asJSON)
		})
	},
}

func init() {
	rootCmd.AddCommand(proposeCmd)
	proposeCmd.Flags().StringP("model", "m", "", "Model identifier (defaults to backend.default_model)")
	proposeCmd.Flags().Bool("dry-run", false, "Print the proposal without committing it")
	proposeCmd.Flags().Bool("json", false, "Print the validated proposal as JSON")
}
