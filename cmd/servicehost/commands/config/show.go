package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/firstsee/servicehost/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective ServiceHost configuration.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show default config as YAML
  servicehost config show

  # Show as JSON
  servicehost config show --output json

  # Show specific config file
  servicehost config show --config /etc/servicehost/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	switch showOutput {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	case "yaml":
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, _ = os.Stdout.Write(out)
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use yaml or json)", showOutput)
	}
}
