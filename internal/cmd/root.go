// Package cmd wires the nixpkgs-review commands: pr reviews pull requests,
// rev reviews a bare commit, wip reviews uncommitted local changes.
//
// Configuration is resolved in three layers of increasing precedence:
// compiled-in defaults, the TOML config file, and CLI flags. Every flag is
// bound to its config key through viper, so anything settable on the command
// line can also live in the config file.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nix-community/nixpkgs-review/internal/allow"
	"github.com/nix-community/nixpkgs-review/internal/config"
	"github.com/nix-community/nixpkgs-review/internal/errors"
	"github.com/nix-community/nixpkgs-review/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "nixpkgs-review",
	Short: "Review nixpkgs pull requests by building their changed packages",
	Long: `nixpkgs-review determines which packages a change to nixpkgs affects,
builds them, and drops you into a shell with every successfully built
package in scope so you can test the result.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A config file that exists but cannot be parsed must abort the
		// run rather than silently falling back to defaults.
		if configFileErr != nil {
			return configFileErr
		}
		if cmd.Flags().Changed("system") {
			system, err := cmd.Flags().GetString("system")
			if err != nil {
				return err
			}
			viper.Set("systems", strings.Fields(system))
		}
		return nil
	},
}

// configFileErr records a malformed config file found during initialization.
// Cobra runs OnInitialize hooks where errors cannot be returned, so the
// error is surfaced from PersistentPreRunE instead.
var configFileErr error

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default is "+config.ConfigFile()+")")
	pf.StringSlice("allow", nil, "permissive evaluation features to enable ("+strings.Join(allow.ValidFeatures(), ", ")+")")
	pf.String("build-args", "", "extra arguments passed to the builder")
	pf.Bool("no-shell", false, "skip the interactive shell; exit status reflects build success")
	pf.String("remote", "", "nixpkgs repository to fetch from")
	pf.String("run", "", "run this command in the review shell instead of an interactive session")
	pf.Bool("sandbox", false, "force sandboxed builds")
	pf.StringSlice("package", nil, "review only the named attrs")
	pf.StringSlice("package-regex", nil, "review only attrs matching any pattern")
	pf.StringSlice("skip-package", nil, "exclude the named attrs from the review")
	pf.StringSlice("skip-package-regex", nil, "exclude attrs matching any pattern")
	pf.StringSlice("systems", nil, `target platforms, or "current" for the host platform`)
	pf.String("system", "", "target platform")
	_ = pf.MarkDeprecated("system", "use --systems instead")
	pf.String("build-graph", "", "builder backend: nix or nom")
	pf.Bool("print-result", false, "print the markdown report to stdout")
	pf.String("extra-nixpkgs-config", "", "nixpkgs config attrset merged into the build environment")
	pf.Int("num-parallel-evals", 0, "how many evaluations run concurrently")
	pf.String("token", "", "GitHub API token (also read from GITHUB_TOKEN)")
	pf.String("log-level", "", "log level ("+strings.Join(logging.ValidLevels(), ", ")+")")

	bind := func(key, flag string) {
		if err := viper.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}
	bind("config", "config")
	bind("allow", "allow")
	bind("build_args", "build-args")
	bind("no_shell", "no-shell")
	bind("remote", "remote")
	bind("run", "run")
	bind("sandbox", "sandbox")
	bind("package", "package")
	bind("package_regex", "package-regex")
	bind("skipped_packages", "skip-package")
	bind("skipped_package_regexes", "skip-package-regex")
	bind("systems", "systems")
	bind("build_graph", "build-graph")
	bind("print_result", "print-result")
	bind("extra_nixpkgs_config", "extra-nixpkgs-config")
	bind("num_parallel_evals", "num-parallel-evals")
	bind("token", "token")
	bind("logging.level", "log-level")
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigFile(config.ConfigFile())
	}
	viper.SetConfigType("toml")

	viper.SetEnvPrefix("NIXPKGS_REVIEW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; a malformed one is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			configFileErr = fmt.Errorf("failed to read config file %s: %w", viper.ConfigFileUsed(), err)
		}
	}
}
