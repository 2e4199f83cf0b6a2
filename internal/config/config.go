// Package config resolves the effective nixpkgs-review configuration from
// three layers in increasing precedence: compiled-in defaults, the optional
// TOML config file at $XDG_CONFIG_HOME/nixpkgs-review/config.toml, and CLI
// flags (bound through viper). Loading is fail-fast: enum fields are checked
// against their fixed value sets, regex lists are compiled eagerly, and any
// violation aborts with a descriptive error instead of producing a partial
// configuration.
package config

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"github.com/spf13/viper"
)

// Evaluation modes for PR reviews.
const (
	EvalOfborg = "ofborg"
	EvalLocal  = "local"
)

// Checkout strategies.
const (
	CheckoutMerge  = "merge"
	CheckoutCommit = "commit"
)

// Build graph backends.
const (
	BuildGraphNix = "nix"
	BuildGraphNom = "nom"
)

// SystemCurrent is the sentinel meaning "the system this process runs on".
const SystemCurrent = "current"

// Config is the process-wide effective configuration.
type Config struct {
	// Allow lists the permissive evaluation features to enable.
	// Valid values: "aliases", "ifd", "url-literals".
	Allow []string `mapstructure:"allow"`
	// BuildArgs are extra arguments passed verbatim to the builder.
	BuildArgs string `mapstructure:"build_args"`
	// NoShell suppresses the interactive review shell; the process exits
	// with a status reflecting overall success instead.
	NoShell bool `mapstructure:"no_shell"`
	// Remote is the nixpkgs repository reviews are fetched from.
	Remote string `mapstructure:"remote"`
	// Run is a command executed in the review shell instead of an
	// interactive session.
	Run string `mapstructure:"run"`
	// Sandbox forces sandboxed builds.
	Sandbox bool `mapstructure:"sandbox"`
	// Packages restricts the review to the named attrs (empty = no limit).
	Packages []string `mapstructure:"package"`
	// PackageRegexes restricts the review to attrs matching any pattern.
	PackageRegexes []string `mapstructure:"package_regex"`
	// SkippedPackages excludes the named attrs from the review.
	SkippedPackages []string `mapstructure:"skipped_packages"`
	// SkippedPackageRegexes excludes attrs matching any pattern.
	SkippedPackageRegexes []string `mapstructure:"skipped_package_regexes"`
	// Systems lists the target platforms, or ["current"] for the host
	// platform only.
	Systems []string `mapstructure:"systems"`
	// BuildGraph selects the builder backend: "nix" or "nom".
	BuildGraph string `mapstructure:"build_graph"`
	// PrintResult prints the markdown report to stdout after the run.
	PrintResult bool `mapstructure:"print_result"`
	// ExtraNixpkgsConfig is a nixpkgs config attrset merged into the
	// sandbox build environment.
	ExtraNixpkgsConfig string `mapstructure:"extra_nixpkgs_config"`
	// NumParallelEvals bounds how many evaluations run concurrently.
	// Must be positive.
	NumParallelEvals int `mapstructure:"num_parallel_evals"`
	// Token is the GitHub API token; usually supplied via flag or
	// GITHUB_TOKEN rather than the config file.
	Token string `mapstructure:"token"`

	Logging LoggingConfig `mapstructure:"logging"`
	PR      PRConfig      `mapstructure:"pr"`
	Rev     RevConfig     `mapstructure:"rev"`
	Wip     WipConfig     `mapstructure:"wip"`

	// Compiled eagerly during Validate.
	packageRegexps        []*regexp.Regexp
	skippedPackageRegexps []*regexp.Regexp
}

// PRConfig holds options specific to reviewing pull requests.
type PRConfig struct {
	// Eval selects where the affected-attr computation comes from:
	// "ofborg" (precomputed) or "local".
	Eval string `mapstructure:"eval"`
	// Checkout selects the tree state to build: "merge" or "commit".
	Checkout string `mapstructure:"checkout"`
	// PostResult posts the review report as a PR comment.
	PostResult bool `mapstructure:"post_result"`
}

// RevConfig holds options specific to reviewing bare commits.
type RevConfig struct {
	// Branch is the base branch the commit is compared against.
	Branch string `mapstructure:"branch"`
}

// WipConfig holds options specific to reviewing uncommitted changes.
type WipConfig struct {
	// Branch is the base branch the working tree is compared against.
	Branch string `mapstructure:"branch"`
	// Staged limits the review to staged changes only.
	Staged bool `mapstructure:"staged"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	// Level is the log level: "DEBUG", "INFO", "WARN", "ERROR".
	Level string `mapstructure:"level"`
}

// PackageRegexps returns the compiled include patterns.
// Only valid after a successful Validate.
func (c *Config) PackageRegexps() []*regexp.Regexp { return c.packageRegexps }

// SkippedPackageRegexps returns the compiled exclude patterns.
// Only valid after a successful Validate.
func (c *Config) SkippedPackageRegexps() []*regexp.Regexp { return c.skippedPackageRegexps }

// Default returns a Config with the compiled-in defaults.
func Default() *Config {
	return &Config{
		Allow:                 []string{},
		BuildArgs:             "",
		NoShell:               false,
		Remote:                "https://github.com/NixOS/nixpkgs",
		Run:                   "",
		Sandbox:               false,
		Packages:              []string{},
		PackageRegexes:        []string{},
		SkippedPackages:       []string{},
		SkippedPackageRegexes: []string{},
		Systems:               []string{SystemCurrent},
		BuildGraph:            defaultBuildGraph(),
		PrintResult:           false,
		ExtraNixpkgsConfig:    "{ }",
		NumParallelEvals:      1,
		Logging:               LoggingConfig{Level: "INFO"},
		PR: PRConfig{
			Eval:       EvalOfborg,
			Checkout:   CheckoutMerge,
			PostResult: false,
		},
		Rev: RevConfig{Branch: "master"},
		Wip: WipConfig{Branch: "master", Staged: false},
	}
}

// defaultBuildGraph prefers nom when it is on PATH, matching what users of
// the graph-optimizing builder expect, and falls back to plain nix.
func defaultBuildGraph() string {
	if _, err := exec.LookPath("nom"); err == nil {
		return BuildGraphNom
	}
	return BuildGraphNix
}

// SetDefaults registers the compiled-in defaults with viper so they apply
// even without a config file.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("allow", defaults.Allow)
	viper.SetDefault("build_args", defaults.BuildArgs)
	viper.SetDefault("no_shell", defaults.NoShell)
	viper.SetDefault("remote", defaults.Remote)
	viper.SetDefault("run", defaults.Run)
	viper.SetDefault("sandbox", defaults.Sandbox)
	viper.SetDefault("package", defaults.Packages)
	viper.SetDefault("package_regex", defaults.PackageRegexes)
	viper.SetDefault("skipped_packages", defaults.SkippedPackages)
	viper.SetDefault("skipped_package_regexes", defaults.SkippedPackageRegexes)
	viper.SetDefault("systems", defaults.Systems)
	viper.SetDefault("build_graph", defaults.BuildGraph)
	viper.SetDefault("print_result", defaults.PrintResult)
	viper.SetDefault("extra_nixpkgs_config", defaults.ExtraNixpkgsConfig)
	viper.SetDefault("num_parallel_evals", defaults.NumParallelEvals)
	viper.SetDefault("token", defaults.Token)

	viper.SetDefault("logging.level", defaults.Logging.Level)

	viper.SetDefault("pr.eval", defaults.PR.Eval)
	viper.SetDefault("pr.checkout", defaults.PR.Checkout)
	viper.SetDefault("pr.post_result", defaults.PR.PostResult)

	viper.SetDefault("rev.branch", defaults.Rev.Branch)

	viper.SetDefault("wip.branch", defaults.Wip.Branch)
	viper.SetDefault("wip.staged", defaults.Wip.Staged)
}

// Load reads the merged configuration from viper into a Config and validates
// it. Any validation error aborts loading; no partial config is returned.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nixpkgs-review")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nixpkgs-review"
	}
	return filepath.Join(home, ".config", "nixpkgs-review")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.toml")
}
