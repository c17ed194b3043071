package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <module>",
		Short: "List imports of a module that have no implementation or stub",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exitIf(c.app.Command(cmd.Context(), c.target(), "suggest", map[string]string{"module": args[0]}))
		},
	}
}

func (c *CLI) newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <module>",
		Short: "Dump the daemon's graph node for a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exitIf(c.app.Command(cmd.Context(), c.target(), "inspect", map[string]string{"module": args[0]}))
		},
	}
}

func (c *CLI) newHangCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "hang",
		Short:  "Block the daemon for 100 seconds (timeout debugging)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exitIf(c.app.Command(cmd.Context(), c.target(), "hang", nil))
		},
	}
}
