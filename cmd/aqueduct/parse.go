package main

import (
	"errors"
	"os"

	"github.com/aretw0/aqueduct"
	"github.com/aretw0/aqueduct/internal/presentation/tui"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file|->",
	Short: "Validate a raw model answer against the palette",
	Long: `Reads a model answer (plain JSON or a fenced json block), validates it and
prints the resulting proposal. The workspace graph is not changed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readFileOrStdin(cmd, args[0])
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		return withWorkspace(cmd, func(a *app, ws *aqueduct.Workspace) error {
			p, err := ws.ParseResponse(raw)
			if err != nil {
				return errors.New(domain.Localize(err))
			}
			return printProposal(cmd, ws, p, asJSON)
		})
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().Bool("json", false, "Print the validated proposal as JSON")
}

func readFileOrStdin(cmd *cobra.Command, name string) (string, error) {
	if name == "-" {
		return readInput(cmd, []string{"-"})
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// printProposal writes the proposal report followed by the advisories of
// the proposed graph.
func printProposal(cmd *cobra.Command, ws *aqueduct.Workspace, p domain.ValidatedProposal, asJSON bool) error {
	if asJSON {
		return printJSON(cmd, p)
	}
	if err := printMarkdown(cmd, tui.ProposalMarkdown(p)); err != nil {
		return err
	}
	tui.PrintAdvisories(cmd.OutOrStdout(), ws.Rules().Evaluate(domain.Snapshot{Nodes: p.Nodes, Edges: p.Edges}))
	return nil
}
