// atma-ctl is the operator CLI: trigger an SOS, inspect or export the event log.
//
// Usage:
//
//	atma-ctl sos [--message=<text>] [--lat=<lat> --lon=<lon>] [--photo=<jpeg>]
//	atma-ctl history [--limit=<n>]
//	atma-ctl stats
//	atma-ctl export -o <file.xlsx>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "atma-ctl",
	Short: "Operator CLI for the AtmaSecure alert pipeline",
	Long:  "atma-ctl triggers manual SOS alerts and reads the detection event log\nusing the same configuration as the atma-secure service.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(sosCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
