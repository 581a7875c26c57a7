package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/firstsee/servicehost/pkg/config"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

var schemaOutput string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate JSON schema for configuration",
	Long: `Generate a JSON schema describing the ServiceHost configuration file.

Point your editor at the generated schema to get completion and
validation while editing config.yaml.

Examples:
  # Print schema to stdout
  servicehost config schema

  # Save schema to file
  servicehost config schema --output config.schema.json`,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "Output file (default: stdout)")
}

func runSchema(cmd *cobra.Command, args []string) error {
	schemaJSON, err := json.MarshalIndent(buildSchema(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if schemaOutput != "" {
		if err := os.WriteFile(schemaOutput, schemaJSON, 0644); err != nil {
			return fmt.Errorf("failed to write schema file: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "JSON schema written to %s\n", schemaOutput)
		return nil
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(schemaJSON))
	return nil
}

// buildSchema reflects the configuration struct into a draft 2020-12
// schema whose keys match the snake_case names used in the YAML file.
func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		KeyNamer:                  toSnakeCase,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Version = "https://json-schema.org/draft/2020-12/schema"
	schema.Title = "ServiceHost Configuration"
	schema.Description = "Configuration schema for the ServiceHost daemon"
	return schema
}

// toSnakeCase maps Go field names onto the snake_case keys the YAML
// configuration uses, keeping acronyms intact (API becomes api, not
// a_p_i).
func toSnakeCase(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := rune(name[i])
		if unicode.IsUpper(c) {
			prevLower := i > 0 && unicode.IsLower(rune(name[i-1]))
			nextLower := i+1 < len(name) && unicode.IsLower(rune(name[i+1]))
			if i > 0 && (prevLower || nextLower) {
				b.WriteByte('_')
			}
			c = unicode.ToLower(c)
		}
		b.WriteRune(c)
	}
	return b.String()
}
