package main

import (
	"os"

	"github.com/aretw0/aqueduct/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var paletteCmd = &cobra.Command{
	Use:   "palette",
	Short: "List the node kinds and their default properties",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		pal, err := a.palette()
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, pal.Entries())
		}
		return printMarkdown(cmd, tui.PaletteMarkdown(pal.Entries()))
	},
}

func init() {
	rootCmd.AddCommand(paletteCmd)
	paletteCmd.Flags().Bool("json", false, "Print the palette as JSON")
}

// printMarkdown renders markdown with glamour when stdout is a terminal.
func printMarkdown(cmd *cobra.Command, md string) error {
	render := tui.NewRenderer(os.Stdout)
	out, err := render(md)
	if err != nil {
		out = md
	}
	_, err = cmd.OutOrStdout().Write([]byte(out))
	return err
}
