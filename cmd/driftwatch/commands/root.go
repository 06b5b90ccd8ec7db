// Package commands implements the driftwatch CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "driftwatch",
	Short: "Contract drift detection for JSON APIs",
	Long: `driftwatch infers the actual shape of an API from sampled traffic,
diffs it against the declared OpenAPI contract, and scores each
divergence by the clients it would break.

Run it as a long-lived service collecting traffic windows:

  driftwatch serve --config config/driftwatch.yaml

Or as a one-shot analysis over captured inputs, suitable for CI:

  driftwatch analyze --contract openapi.yaml --traffic traffic.json --usage usage.json`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
