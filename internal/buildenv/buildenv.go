// Package buildenv constructs the process-wide build environment shared by
// every review session in one invocation: a derived nixpkgs configuration
// expression combining the alias policy with any user-supplied extra config,
// exported to child processes via NIXPKGS_CONFIG.
package buildenv

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nix-community/nixpkgs-review/internal/logging"
)

// Buildenv is the single-instance-per-invocation sandbox description.
// It is read-only after construction and must be closed after the last
// review session has been released.
type Buildenv struct {
	dir        string
	configPath string
	prevConfig string
	hadPrev    bool
	logger     *logging.Logger
}

// New derives the nixpkgs config expression from the alias policy and the
// extra config attrset, writes it to a temporary file, and exports it via
// NIXPKGS_CONFIG. The extra config must be a nix attrset.
func New(allowAliases bool, extraNixpkgsConfig string, logger *logging.Logger) (*Buildenv, error) {
	extra := strings.TrimSpace(extraNixpkgsConfig)
	if !strings.HasPrefix(extra, "{") || !strings.HasSuffix(extra, "}") {
		return nil, fmt.Errorf("extra_nixpkgs_config must be a nix attrset, got %q", extraNixpkgsConfig)
	}

	dir, err := os.MkdirTemp("", "nixpkgs-review-env-")
	if err != nil {
		return nil, fmt.Errorf("failed to create build environment directory: %w", err)
	}

	expr := fmt.Sprintf("pkgs: { allowAliases = %s; } // %s\n", strconv.FormatBool(allowAliases), extra)
	configPath := filepath.Join(dir, "config.nix")
	if err := os.WriteFile(configPath, []byte(expr), 0o644); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write nixpkgs config: %w", err)
	}

	env := &Buildenv{
		dir:        dir,
		configPath: configPath,
		logger:     logger,
	}
	env.prevConfig, env.hadPrev = os.LookupEnv("NIXPKGS_CONFIG")
	if err := os.Setenv("NIXPKGS_CONFIG", configPath); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to export NIXPKGS_CONFIG: %w", err)
	}

	logger.Debug("build environment ready", "config", configPath, "allow_aliases", allowAliases)
	return env, nil
}

// NixpkgsConfigPath returns the path of the derived config expression.
func (e *Buildenv) NixpkgsConfigPath() string { return e.configPath }

// Close restores the previous NIXPKGS_CONFIG value and removes the derived
// config. Safe to call more than once.
func (e *Buildenv) Close() error {
	if e.dir == "" {
		return nil
	}
	dir := e.dir
	e.dir = ""

	var err error
	if e.hadPrev {
		err = os.Setenv("NIXPKGS_CONFIG", e.prevConfig)
	} else {
		err = os.Unsetenv("NIXPKGS_CONFIG")
	}
	if removeErr := os.RemoveAll(dir); removeErr != nil && err == nil {
		err = removeErr
	}
	return err
}
