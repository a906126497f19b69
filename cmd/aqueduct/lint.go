package main

import (
	"errors"

	"github.com/aretw0/aqueduct"
	"github.com/aretw0/aqueduct/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var errAdvisories = errors.New("graph has values outside engineering bounds")

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check the graph against engineering bounds",
	Long: `Evaluates every node property covered by the rule set (capacity, volume,
settling time, oxygen concentration) and reports values outside bounds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		strict, _ := cmd.Flags().GetBool("strict")
		asJSON, _ := cmd.Flags().GetBool("json")

		return withWorkspace(cmd, func(a *app, ws *aqueduct.Workspace) error {
			advisories := ws.Advisories()
			if asJSON {
				if err := printJSON(cmd, advisories); err != nil {
					return err
				}
			} else {
				tui.PrintAdvisories(cmd.OutOrStdout(), advisories)
			}
			if strict && len(advisories) > 0 {
				return errAdvisories
			}
			return nil
		})
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the engineering bounds included in every prompt",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		rules, err := a.rules()
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, rules.Rules())
		}
		_, err = cmd.OutOrStdout().Write([]byte(rules.Describe()))
		return err
	},
}

func init() {
	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(rulesCmd)
	lintCmd.Flags().Bool("strict", false, "Exit with an error when any advisory is reported")
	lintCmd.Flags().Bool("json", false, "Print advisories as JSON")
	rulesCmd.Flags().Bool("json", false, "Print the rules as JSON")
}
