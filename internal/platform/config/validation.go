package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration and returns an error if invalid.
// Validation fails fast - the service should not start with invalid config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	return c.validateDrivers()
}

// validateDrivers checks settings that only matter for the selected drivers.
func (c *Config) validateDrivers() error {
	var errs []string

	switch c.Backend.Driver {
	case BackendREST:
		if c.Backend.REST.BaseURL == "" {
			errs = append(errs, "backend.rest.base_url is required when backend.driver is rest")
		}
		if c.Backend.REST.AnonKey == "" {
			errs = append(errs, "backend.rest.anon_key is required when backend.driver is rest")
		}
	case BackendSQL:
		if c.Database.Driver == "" || c.Database.DSN == "" {
			errs = append(errs, "database.driver and database.dsn are required when backend.driver is sql")
		}
	}

	switch c.Storage.Driver {
	case "minio":
		if c.Storage.Endpoint == "" {
			errs = append(errs, "storage.endpoint is required when storage.driver is minio")
		}
	case "rest":
		if c.Backend.Driver != BackendREST {
			errs = append(errs, "storage.driver rest requires backend.driver rest")
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
}

// formatValidationErrors converts validator errors to a readable format.
func formatValidationErrors(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	errs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		errs = append(errs, formatFieldError(e))
	}

	return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
}

// formatFieldError formats a single field validation error.
func formatFieldError(e validator.FieldError) string {
	field := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "timezone":
		return fmt.Sprintf("%s must be an IANA timezone name", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}

// formatFieldPath converts "Config.Server.Port" to "server.port".
func formatFieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}

	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}

	return strings.Join(parts, ".")
}
