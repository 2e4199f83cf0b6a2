package nix

import (
	"io"

	"github.com/nix-community/nixpkgs-review/internal/logging"
)

// BuildOptions carries the builder configuration for one invocation.
type BuildOptions struct {
	// Graph selects the builder backend: "nix" or "nom".
	Graph string
	// ExtraArgs are appended verbatim to the builder command line.
	ExtraArgs string
	// Sandbox forces sandboxed builds.
	Sandbox bool
	// System is the target platform all attrs in the batch share.
	System string
}

// Build builds the buildable attrs in the package set rooted at dir and
// records each attr's outcome in place. A failing attr never fails the
// call: the builder runs with keep-going and outcomes are determined
// per-attr by store-path validity afterwards.
func Build(x Executor, stdout, stderr io.Writer, dir string, attrs []Attr, opts BuildOptions, logger *logging.Logger) {
	var names []string
	for i := range attrs {
		if attrs[i].Buildable() {
			names = append(names, attrs[i].Name)
		}
	}
	if len(names) == 0 {
		logger.Info("nothing to build", "system", opts.System)
		return
	}

	command := "nix"
	if opts.Graph == "nom" {
		command = "nom"
	}

	args := []string{"--extra-experimental-features", "nix-command",
		"build", "--no-link", "--keep-going", "-f", dir,
		"--option", "system", opts.System}
	if opts.Sandbox {
		args = append(args, "--option", "sandbox", "true")
	}
	args = append(args, SplitArgs(opts.ExtraArgs)...)
	args = append(args, names...)

	logger.Info("building attrs", "system", opts.System, "count", len(names), "backend", command)
	if err := x.RunStream(dir, stdout, stderr, command, args...); err != nil {
		// Expected when any attr fails under keep-going; per-attr
		// outcomes are resolved below.
		logger.Debug("builder exited non-zero", "system", opts.System, "error", err.Error())
	}

	for i := range attrs {
		if !attrs[i].Buildable() {
			continue
		}
		if attrs[i].Path == "" {
			attrs[i].Failed = true
			continue
		}
		if err := x.RunQuiet(dir, "nix-store", "--check-validity", attrs[i].Path); err != nil {
			attrs[i].Failed = true
		}
	}
}
