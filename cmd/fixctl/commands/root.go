package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// client is the admin HTTP client, initialized in PersistentPreRunE.
	client *adminClient

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the fixengine admin API address (host:port).
	serverAddr string
)

// rootCmd is the top-level cobra command for fixctl.
var rootCmd = &cobra.Command{
	Use:   "fixctl",
	Short: "CLI client for the fixengine session daemon",
	Long:  "fixctl communicates with the fixengine daemon's admin HTTP API to inspect and operate FIX sessions.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		client = newAdminClient(serverAddr)
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:8222",
		"fixengine admin API address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(monitorCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
