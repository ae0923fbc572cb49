package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"atlas-gw/atlas/pkg/cli"
	"atlas-gw/atlas/pkg/config"
	"atlas-gw/atlas/pkg/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate the configuration file without starting the engine.

Checks YAML syntax, applies defaults and environment overrides, and
verifies every endpoint definition, routing setting, and monitor
threshold.

Examples:
  # Validate the default config
  atlas validate

  # Validate a specific file
  atlas validate --config /etc/atlas/atlas.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}

	fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
	fmt.Printf("  Endpoints: %d\n", len(cfg.Endpoints))
	for _, clientType := range registry.ClientTypes {
		n := 0
		for _, ep := range cfg.Endpoints {
			if ep.ClientType == clientType {
				n++
			}
		}
		if n > 0 {
			fmt.Printf("    %s: %d\n", clientType, n)
		}
	}
	fmt.Printf("  Strategy: %s\n", cfg.Routing.Strategy)
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddress)
	return nil
}
