package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Manage persisted workspaces",
	Long:  `List, inspect, and remove workspace graphs held by the configured storage driver.`,
}

var workspaceLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all persisted workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := a.sessions().List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing workspaces: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No persisted workspaces found.")
			return nil
		}

		fmt.Fprintln(out, "Workspaces:")
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
		return nil
	},
}

var workspaceInspectCmd = &cobra.Command{
	Use:   "inspect <workspace-id>",
	Short: "Print the graph of a workspace as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.sessions().Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading workspace '%s': %w", args[0], err)
		}
		return printJSON(cmd, snap)
	},
}

var workspaceRmCmd = &cobra.Command{
	Use:   "rm <workspace-id>...",
	Short: "Remove one or more workspaces",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		sessions := a.sessions()
		failed := 0
		for _, id := range args {
			if err := sessions.Delete(cmd.Context(), id); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed workspace '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d workspaces could not be removed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workspaceCmd)
	workspaceCmd.AddCommand(workspaceLsCmd)
	workspaceCmd.AddCommand(workspaceInspectCmd)
	workspaceCmd.AddCommand(workspaceRmCmd)
}
