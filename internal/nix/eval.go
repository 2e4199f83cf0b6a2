package nix

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nix-community/nixpkgs-review/internal/allow"
	"github.com/nix-community/nixpkgs-review/internal/errors"
)

// ListPackages evaluates the package set rooted at dir for one system and
// returns a mapping from attribute path to package name (including the
// version), the shape both sides of a local-evaluation diff use.
func ListPackages(x Executor, dir, system string, a allow.AllowedFeatures) (map[string]string, error) {
	args := []string{"-f", dir, "-qaP", "--json", "--show-trace", "--system", system}
	args = append(args, a.NixOptions()...)

	out, err := x.Run(dir, "nix-env", args...)
	if err != nil {
		return nil, errors.NewEvalError(
			fmt.Sprintf("nix-env failed to list packages: %s", strings.TrimSpace(string(out))), err).
			WithSystem(system)
	}

	var listed map[string]struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(out, &listed); err != nil {
		return nil, errors.NewEvalError("nix-env produced unparseable output", err).WithSystem(system)
	}

	packages := make(map[string]string, len(listed))
	for attr, info := range listed {
		packages[attr] = info.Name
	}
	return packages, nil
}

// DiffPackageNames returns the attribute paths whose package changed between
// the base and head evaluations: attrs that are new in head or whose
// name-with-version differs. The result is sorted.
func DiffPackageNames(base, head map[string]string) []string {
	var changed []string
	for attr, name := range head {
		if baseName, ok := base[attr]; !ok || baseName != name {
			changed = append(changed, attr)
		}
	}
	sort.Strings(changed)
	return changed
}

// EvalAttrs resolves the named attrs against the package set rooted at dir,
// reporting for each whether it exists, is marked broken, and which store
// path it builds to. The result is ordered by attr name.
func EvalAttrs(x Executor, dir, system string, a allow.AllowedFeatures, names []string) ([]Attr, error) {
	if len(names) == 0 {
		return nil, nil
	}

	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	exprFile, err := writeAttrExpr(dir, system, sorted)
	if err != nil {
		return nil, errors.NewEvalError("failed to write eval expression", err).WithSystem(system)
	}
	defer os.Remove(exprFile)

	args := []string{"--extra-experimental-features", "nix-command",
		"eval", "--json", "--impure", "--file", exprFile}
	args = append(args, a.NixOptions()...)

	out, err := x.Run(dir, "nix", args...)
	if err != nil {
		return nil, errors.NewEvalError(
			fmt.Sprintf("nix eval failed: %s", strings.TrimSpace(string(out))), err).
			WithSystem(system)
	}

	var resolved []struct {
		Name   string `json:"name"`
		Exists bool   `json:"exists"`
		Broken bool   `json:"broken"`
		Path   string `json:"path"`
	}
	if err := json.Unmarshal(out, &resolved); err != nil {
		return nil, errors.NewEvalError("nix eval produced unparseable output", err).WithSystem(system)
	}

	attrs := make([]Attr, 0, len(resolved))
	for _, r := range resolved {
		attrs = append(attrs, Attr{
			Name:   r.Name,
			System: system,
			Exists: r.Exists,
			Broken: r.Broken,
			Path:   r.Path,
		})
	}
	return attrs, nil
}

// writeAttrExpr renders the attr-resolution expression to a temp file and
// returns its path.
func writeAttrExpr(dir, system string, names []string) (string, error) {
	var quoted strings.Builder
	for _, name := range names {
		quoted.WriteString("    ")
		quoted.WriteString(strconv.Quote(name))
		quoted.WriteString("\n")
	}

	nixpkgs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	expr := fmt.Sprintf(`let
  pkgs = import %s { system = %s; };
  lib = pkgs.lib;
  resolve = name:
    let
      pkg = lib.attrByPath (lib.splitString "." name) null pkgs;
      exists = pkg != null && lib.isDerivation pkg;
      broken = exists && (builtins.tryEval (pkg.meta.broken or false)).value;
      path =
        if exists && !broken
        then (builtins.tryEval (toString (pkg.outPath or ""))).value
        else "";
    in {
      inherit name exists broken path;
    };
in map resolve [
%s]
`, strconv.Quote(nixpkgs), strconv.Quote(system), quoted.String())

	f, err := os.CreateTemp("", "nixpkgs-review-eval-*.nix")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(expr); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
