package config

import (
	"fmt"

	"github.com/firstsee/servicehost/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the ServiceHost configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  servicehost config validate

  # Validate specific config file
  servicehost config validate --config /etc/servicehost/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load and validate configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Determine path for display
	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Additional validation checks
	var warnings []string

	if cfg.Listener.MaxInFlight == 0 {
		warnings = append(warnings, "No admission limit configured - concurrent dispatches are unbounded")
	}
	if cfg.API.Enabled && !cfg.Metrics.Enabled {
		warnings = append(warnings, "Metrics disabled - the API server will not expose /metrics")
	}

	// Print results
	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Listener bind:   %s\n", cfg.Listener.Bind)
	fmt.Printf("  API port:        %d\n", cfg.API.Port)
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
