package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Cross-partition inference proxy for AWS Bedrock",
	Long: `Gateway proxies model invocation requests from an isolated AWS
partition to Bedrock in the commercial partition.

It provides:
  - Bearer-token authentication of inbound callers
  - Commercial-partition credential resolution from a secret store
  - Transport selection across internet, VPN tunnel, and Direct Connect
  - Automatic inference-profile creation for models that require one
  - A per-request audit trail in DynamoDB or SQLite`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.CompletionOptions.DisableDefaultCmd = false
}
