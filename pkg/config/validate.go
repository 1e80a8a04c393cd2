// Package config holds the configuration types of pollcat: engine settings,
// proxy specs and injectable dependencies.
package config

// ValidatableConfig is implemented by configuration types that can check themselves.
type ValidatableConfig interface {
	Validate() []error
}

// Validate collects the validation errors of all given configurations.
func Validate(cfgs ...ValidatableConfig) []error {
	var out []error

	for _, cfg := range cfgs {
		out = append(out, cfg.Validate()...)
	}

	return out
}
