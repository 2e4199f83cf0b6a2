package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "pr.eval",
		Value:   "remote",
		Message: "must be one of: ofborg, local",
	}

	expected := "pr.eval: must be one of: ofborg, local (got: remote)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "build_graph", Value: "bazel", Message: "is invalid"},
		}
		expected := "build_graph: is invalid (got: bazel)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "pr.eval", Value: "bad", Message: "is invalid"},
			{Field: "num_parallel_evals", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "pr.eval") || !strings.Contains(result, "num_parallel_evals") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

func TestConfig_Validate_Enums(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		field    string
		hasError bool
	}{
		{"valid ofborg eval", func(c *Config) { c.PR.Eval = "ofborg" }, "pr.eval", false},
		{"valid local eval", func(c *Config) { c.PR.Eval = "local" }, "pr.eval", false},
		{"invalid eval", func(c *Config) { c.PR.Eval = "remote" }, "pr.eval", true},
		{"eval case sensitive", func(c *Config) { c.PR.Eval = "Ofborg" }, "pr.eval", true},
		{"valid merge checkout", func(c *Config) { c.PR.Checkout = "merge" }, "pr.checkout", false},
		{"valid commit checkout", func(c *Config) { c.PR.Checkout = "commit" }, "pr.checkout", false},
		{"invalid checkout", func(c *Config) { c.PR.Checkout = "rebase" }, "pr.checkout", true},
		{"valid nix graph", func(c *Config) { c.BuildGraph = "nix" }, "build_graph", false},
		{"valid nom graph", func(c *Config) { c.BuildGraph = "nom" }, "build_graph", false},
		{"invalid graph", func(c *Config) { c.BuildGraph = "bazel" }, "build_graph", true},
		{"valid allow entry", func(c *Config) { c.Allow = []string{"ifd"} }, "allow", false},
		{"invalid allow entry", func(c *Config) { c.Allow = []string{"everything"} }, "allow", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()

			found := false
			for _, err := range errs {
				if err.Field == tt.field {
					found = true
				}
			}
			if found != tt.hasError {
				t.Errorf("Validate() errors for %s = %v, want error = %v", tt.field, errs, tt.hasError)
			}
		})
	}
}

func TestConfig_Validate_Parallelism(t *testing.T) {
	tests := []struct {
		name     string
		value    int
		hasError bool
	}{
		{"one is valid", 1, false},
		{"many is valid", 16, false},
		{"zero is invalid", 0, true},
		{"negative is invalid", -3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.NumParallelEvals = tt.value
			errs := cfg.Validate()
			if (len(errs) > 0) != tt.hasError {
				t.Errorf("Validate() with num_parallel_evals=%d = %v, want error = %v", tt.value, errs, tt.hasError)
			}
		})
	}
}

func TestConfig_Validate_Systems(t *testing.T) {
	t.Run("empty list is invalid", func(t *testing.T) {
		cfg := Default()
		cfg.Systems = []string{}
		if errs := cfg.Validate(); len(errs) == 0 {
			t.Error("empty systems should fail validation")
		}
	})

	t.Run("blank entry is invalid", func(t *testing.T) {
		cfg := Default()
		cfg.Systems = []string{"x86_64-linux", " "}
		if errs := cfg.Validate(); len(errs) == 0 {
			t.Error("blank system entry should fail validation")
		}
	})
}

func TestConfig_Validate_Regexes(t *testing.T) {
	t.Run("valid patterns compile", func(t *testing.T) {
		cfg := Default()
		cfg.PackageRegexes = []string{"^python3.*", "firefox"}
		cfg.SkippedPackageRegexes = []string{"-unwrapped$"}
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Fatalf("Validate() = %v, want no errors", errs)
		}
		if len(cfg.PackageRegexps()) != 2 {
			t.Errorf("PackageRegexps() = %d patterns, want 2", len(cfg.PackageRegexps()))
		}
		if len(cfg.SkippedPackageRegexps()) != 1 {
			t.Errorf("SkippedPackageRegexps() = %d patterns, want 1", len(cfg.SkippedPackageRegexps()))
		}
	})

	t.Run("invalid pattern names field and pattern", func(t *testing.T) {
		cfg := Default()
		cfg.SkippedPackageRegexes = []string{"[unclosed"}
		errs := cfg.Validate()
		if len(errs) != 1 {
			t.Fatalf("Validate() = %v, want exactly one error", errs)
		}
		if errs[0].Field != "skipped_package_regexes" {
			t.Errorf("error field = %q, want skipped_package_regexes", errs[0].Field)
		}
		if errs[0].Value != "[unclosed" {
			t.Errorf("error value = %v, want the offending pattern", errs[0].Value)
		}
	})
}

func TestConfig_Validate_LoggingLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"
	errs := cfg.Validate()
	if len(errs) != 1 || errs[0].Field != "logging.level" {
		t.Errorf("Validate() = %v, want single logging.level error", errs)
	}
}
