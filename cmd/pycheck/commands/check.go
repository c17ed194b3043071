package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Type check the source roots, starting the daemon when needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exitIf(c.app.Check(cmd.Context(), c.target(), "check"))
		},
	}
}

func (c *CLI) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Type check, restarting the daemon on option or version drift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exitIf(c.app.Check(cmd.Context(), c.target(), "run"))
		},
	}
}

func (c *CLI) newRecheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recheck",
		Short: "Re-check the same files as the previous check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exitIf(c.app.Command(cmd.Context(), c.target(), "recheck", nil))
		},
	}
}
