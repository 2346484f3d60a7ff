// Package main is the entry point for the errorflow binary.
// It serves the simulated error API and offers offline generation and catalog tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	outputText = "text"
	outputJSON = "json"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for errorflow
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "errorflow",
		Short: "Simulated application errors with safe, policy-gated debug disclosure",
		Long: `errorflow generates realistic application errors for UX and error-handling demos.

Every error carries a user-facing message that is always safe to show and a debug
block that is only revealed when the disclosure policy allows it.

Examples:
  errorflow serve --config errorflow.yaml
  errorflow generate --category system --count 3 --debug
  errorflow catalog
  errorflow validate my-catalog.yaml`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newGenerateCmd(),
		newCatalogCmd(),
		newValidateCmd(),
	)

	return rootCmd
}

func checkOutput(output string) error {
	switch output {
	case outputText, outputJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output %q, use %s or %s", output, outputText, outputJSON)
	}
}
