package commands

import (
	"github.com/reeflective/console"
	"github.com/spf13/cobra"
)

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive fixctl shell",
		Long:  "Launches a console REPL that accepts fixctl subcommands, with history and completion.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runShell()
		},
	}
}

// runShell starts a reeflective/console REPL that dispatches every typed
// line to rootCmd, the same way the plain command-line invocation does.
func runShell() error {
	app := console.New("fixctl")

	menu := app.ActiveMenu()
	menu.SetCommands(func() *cobra.Command {
		rootCmd.SetArgs(nil)
		return rootCmd
	})
	menu.Prompt().Primary = func() string { return "fixctl > " }

	return app.Start()
}
