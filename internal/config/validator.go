package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/nix-community/nixpkgs-review/internal/allow"
	"github.com/nix-community/nixpkgs-review/internal/logging"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // The config field path (e.g., "pr.eval")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidEvalModes returns the list of valid pr.eval values.
func ValidEvalModes() []string {
	return []string{EvalOfborg, EvalLocal}
}

// ValidCheckoutOptions returns the list of valid pr.checkout values.
func ValidCheckoutOptions() []string {
	return []string{CheckoutMerge, CheckoutCommit}
}

// ValidBuildGraphs returns the list of valid build_graph values.
func ValidBuildGraphs() []string {
	return []string{BuildGraphNix, BuildGraphNom}
}

// Validate checks the Config for invalid values and returns all validation
// errors found. Regex list fields are compiled as a side effect; a Config
// that validated cleanly exposes them via PackageRegexps and
// SkippedPackageRegexps.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateAllow()...)
	errors = append(errors, c.validateEnums()...)
	errors = append(errors, c.validateSystems()...)
	errors = append(errors, c.validateParallelism()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.compileRegexes()...)

	return errors
}

func (c *Config) validateAllow() []ValidationError {
	var errors []ValidationError

	for _, feature := range c.Allow {
		if !slices.Contains(allow.ValidFeatures(), feature) {
			errors = append(errors, ValidationError{
				Field:   "allow",
				Value:   feature,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(allow.ValidFeatures(), ", ")),
			})
		}
	}

	return errors
}

func (c *Config) validateEnums() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidEvalModes(), c.PR.Eval) {
		errors = append(errors, ValidationError{
			Field:   "pr.eval",
			Value:   c.PR.Eval,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidEvalModes(), ", ")),
		})
	}

	if !slices.Contains(ValidCheckoutOptions(), c.PR.Checkout) {
		errors = append(errors, ValidationError{
			Field:   "pr.checkout",
			Value:   c.PR.Checkout,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidCheckoutOptions(), ", ")),
		})
	}

	if !slices.Contains(ValidBuildGraphs(), c.BuildGraph) {
		errors = append(errors, ValidationError{
			Field:   "build_graph",
			Value:   c.BuildGraph,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBuildGraphs(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateSystems() []ValidationError {
	var errors []ValidationError

	if len(c.Systems) == 0 {
		errors = append(errors, ValidationError{
			Field:   "systems",
			Value:   c.Systems,
			Message: "cannot be empty; use \"current\" for the host platform",
		})
	}
	for i, system := range c.Systems {
		if strings.TrimSpace(system) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("systems[%d]", i),
				Value:   system,
				Message: "system name cannot be empty",
			})
		}
	}

	return errors
}

func (c *Config) validateParallelism() []ValidationError {
	var errors []ValidationError

	if c.NumParallelEvals <= 0 {
		errors = append(errors, ValidationError{
			Field:   "num_parallel_evals",
			Value:   c.NumParallelEvals,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(logging.ValidLevels(), strings.ToUpper(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(logging.ValidLevels(), ", ")),
		})
	}

	return errors
}

// compileRegexes eagerly compiles both regex list fields so an invalid
// pattern fails the whole load naming the offending pattern and field.
func (c *Config) compileRegexes() []ValidationError {
	var errors []ValidationError

	compile := func(patterns []string, field string) []*regexp.Regexp {
		compiled := make([]*regexp.Regexp, 0, len(patterns))
		for _, pattern := range patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				errors = append(errors, ValidationError{
					Field:   field,
					Value:   pattern,
					Message: fmt.Sprintf("not a valid regex: %v", err),
				})
				continue
			}
			compiled = append(compiled, re)
		}
		return compiled
	}

	c.packageRegexps = compile(c.PackageRegexes, "package_regex")
	c.skippedPackageRegexps = compile(c.SkippedPackageRegexes, "skipped_package_regexes")

	return errors
}
