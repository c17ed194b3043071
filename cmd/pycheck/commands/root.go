// Package commands implements the CLI commands for pycheck.
package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.trai.ch/pycheck/internal/build"
)

// CLI represents the command line interface for pycheck.
type CLI struct {
	app        Application
	rootCmd    *cobra.Command
	statusFile string
}

// Application represents the application logic interface.
type Application interface {
	StatusFile(override string) string
	Start(ctx context.Context, statusFile string) error
	Restart(ctx context.Context, statusFile string) error
	Status(ctx context.Context, statusFile string) error
	Stop(ctx context.Context, statusFile string) error
	Kill(statusFile string) error
	Check(ctx context.Context, statusFile, command string) (int, error)
	Command(ctx context.Context, statusFile, command string, args map[string]string) (int, error)
	ServeDaemon(ctx context.Context, statusFile string) error
	ServeWorker(ctx context.Context, statusFile string) error
}

// ExitError carries a non-zero exit status out of command execution,
// optionally wrapping the failure that caused it.
type ExitError struct {
	Code int
	Err  error
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "exit status " + strconv.Itoa(e.Code)
}

// Unwrap exposes the wrapped failure.
func (e *ExitError) Unwrap() error { return e.Err }

// exitIf maps an (exit status, error) pair onto command error handling.
func exitIf(status int, err error) error {
	if err != nil {
		if status == 0 {
			status = 2
		}
		return &ExitError{Code: status, Err: err}
	}
	if status != 0 {
		return &ExitError{Code: status}
	}
	return nil
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "pycheck",
		Short:         "Incremental Python type checking through a long-lived daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}
	rootCmd.PersistentFlags().StringVar(&c.statusFile, "status-file", "", "Override the daemon status file location")

	rootCmd.AddCommand(c.newStartCmd())
	rootCmd.AddCommand(c.newRestartCmd())
	rootCmd.AddCommand(c.newStatusCmd())
	rootCmd.AddCommand(c.newStopCmd())
	rootCmd.AddCommand(c.newKillCmd())
	rootCmd.AddCommand(c.newCheckCmd())
	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newRecheckCmd())
	rootCmd.AddCommand(c.newSuggestCmd())
	rootCmd.AddCommand(c.newInspectCmd())
	rootCmd.AddCommand(c.newHangCmd())
	rootCmd.AddCommand(c.newDaemonCmd())
	rootCmd.AddCommand(c.newWorkerCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// target resolves the status file the invoked command should use.
func (c *CLI) target() string {
	return c.app.StatusFile(c.statusFile)
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
