package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/cli"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate gateway configuration",
	Long: `Load the configuration file, apply defaults and environment
overrides, and check it for errors without starting the server.

Examples:
  # Validate the default config
  gateway validate

  # Validate a specific file
  gateway validate --config /etc/gateway/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	fmt.Println("✓ Configuration valid")
	fmt.Println()
	fmt.Printf("Listen address:   %s\n", cfg.Server.ListenAddress)
	fmt.Printf("Default transport: %s\n", cfg.Transport.Default)

	configured := []string{}
	if cfg.Transport.InternetEndpoint != "" {
		configured = append(configured, "internet")
	}
	if cfg.Transport.TunnelEndpoint != "" {
		configured = append(configured, "tunnel")
	}
	if cfg.Transport.DedicatedEndpoint != "" {
		configured = append(configured, "dedicated")
	}
	fmt.Printf("Transports:       %v\n", configured)
	fmt.Printf("Audit backend:    %s\n", cfg.Audit.Backend)
	fmt.Printf("Metrics enabled:  %t\n", cfg.Telemetry.Metrics.Enabled)

	return nil
}
