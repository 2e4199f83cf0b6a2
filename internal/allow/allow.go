// Package allow defines the closed vocabulary of permissive evaluation
// features a review run may opt into, and the immutable feature set built
// from the user's selection.
package allow

import (
	"fmt"
	"strconv"
	"strings"
)

// Feature names accepted by New. The vocabulary is fixed; anything else is
// rejected at construction time.
const (
	FeatureAliases     = "aliases"
	FeatureIFD         = "ifd"
	FeatureURLLiterals = "url-literals"
)

// ValidFeatures returns the list of recognized feature names.
func ValidFeatures() []string {
	return []string{FeatureAliases, FeatureIFD, FeatureURLLiterals}
}

// AllowedFeatures is an immutable set of permissive evaluation features.
// The zero value allows nothing.
type AllowedFeatures struct {
	aliases     bool
	ifd         bool
	urlLiterals bool
}

// New builds an AllowedFeatures set from a list of feature names.
// Any name outside the fixed vocabulary fails construction.
func New(features []string) (AllowedFeatures, error) {
	var a AllowedFeatures
	for _, f := range features {
		switch f {
		case FeatureAliases:
			a.aliases = true
		case FeatureIFD:
			a.ifd = true
		case FeatureURLLiterals:
			a.urlLiterals = true
		default:
			return AllowedFeatures{}, fmt.Errorf(
				"unknown feature %q, valid features are: %s",
				f, strings.Join(ValidFeatures(), ", "))
		}
	}
	return a, nil
}

// Aliases reports whether package alias resolution is allowed.
func (a AllowedFeatures) Aliases() bool { return a.aliases }

// IFD reports whether import-from-derivation is allowed during evaluation.
func (a AllowedFeatures) IFD() bool { return a.ifd }

// URLLiterals reports whether URL literals are allowed during evaluation.
func (a AllowedFeatures) URLLiterals() bool { return a.urlLiterals }

// NixOptions returns the nix command-line options enforcing this feature set
// during evaluation.
func (a AllowedFeatures) NixOptions() []string {
	return []string{
		"--option", "allow-import-from-derivation", strconv.FormatBool(a.ifd),
		"--option", "allow-url-literals", strconv.FormatBool(a.urlLiterals),
	}
}
