package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/firstsee/servicehost/pkg/host"
)

// Validate checks the configuration against its struct tags and the
// listener-specific rules.
func Validate(cfg *Config) error {
	v := validator.New()

	// bindspec checks the scheme://host:port/path/ form, trailing
	// separator included.
	if err := v.RegisterValidation("bindspec", validateBindSpec); err != nil {
		return fmt.Errorf("failed to register bindspec validator: %w", err)
	}

	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

func validateBindSpec(fl validator.FieldLevel) bool {
	_, err := host.ParseBindSpec(fl.Field().String())
	return err == nil
}
